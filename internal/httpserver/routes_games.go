package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/minigames/apps/go-server/assets"
)

type gameTile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	Rules string `json:"rules"`
}

// mountGames registers the home list and rules pages.
func (s *Server) mountGames(r chi.Router) {
	r.Get("/games", s.handleGames)
	r.Get("/games/{kind}/rules", s.handleRules)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	out := make([]gameTile, 0, len(s.d.Catalog.Games))
	for _, g := range s.d.Catalog.Games {
		out = append(out, gameTile{ID: g.ID, Name: g.Name, Path: g.Path, Rules: "/games/" + g.ID + "/rules"})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	k, ok := parseKind(w, r)
	if !ok {
		return
	}
	var entry *assets.GameEntry
	for i := range s.d.Catalog.Games {
		if s.d.Catalog.Games[i].ID == string(k) {
			entry = &s.d.Catalog.Games[i]
			break
		}
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "unknown_game")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
