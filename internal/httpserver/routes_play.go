package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/apps/go-server/internal/game"
	"github.com/robalobadob/minigames/apps/go-server/internal/gate"
	"github.com/robalobadob/minigames/apps/go-server/internal/score"
	"github.com/robalobadob/minigames/apps/go-server/internal/store"
)

// resultRes is what the result page renders. Clock is the formatted
// duration for timed games; Milestones and Progress fill the memory-matrix
// progress bar.
type resultRes struct {
	game.Outcome
	Clock      string           `json:"clock,omitempty"`
	Milestones []game.Milestone `json:"milestones,omitempty"`
	Progress   *int             `json:"progress,omitempty"`
}

type bestEntry struct {
	Game    score.Kind `json:"game"`
	Title   string     `json:"title"`
	Score   *float64   `json:"score"`
	Display string     `json:"display"`
}

type bestRes struct {
	Username string      `json:"username"`
	Best     []bestEntry `json:"best"`
	Error    string      `json:"error,omitempty"`
}

// mountPlay registers the gated game-session endpoints.
func (s *Server) mountPlay(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(s.d.Gate.Require)

		// POST on the bare segment names a game kind; every other route
		// addresses a session id.
		r.Post("/play/{id}", s.handleMount)
		r.Get("/play/{id}", s.withSession(s.handleView))
		r.Post("/play/{id}/move", s.withSession(s.handleMove))
		r.Post("/play/{id}/restart", s.withSession(s.handleRestart))
		r.Post("/play/{id}/continue", s.withSession(s.handleContinue))
		r.Get("/play/{id}/result", s.withSession(s.handleResult))
		r.Delete("/play/{id}", s.handleUnmount)
		r.Get("/me/best", s.handleMyBest)
	})
}

// handleMount starts a fresh session of the named game for the signed-in user.
func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	k, err := score.ParseKind(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_game")
		return
	}
	m, err := game.NewMachine(k, s.d.Catalog)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_game")
		return
	}
	opts := game.Options{Clock: s.d.Clock, OnCandidate: s.offer}
	if s.d.NewRand != nil {
		opts.Rand = s.d.NewRand()
	}
	sess := game.NewSession(gate.User(r.Context()), m, opts)
	if err := sess.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, "start_failed")
		return
	}
	if err := s.d.Store.Save(r.Context(), sess); err != nil {
		sess.Discard()
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// offer hands a score candidate to the best-value tracker. It runs under
// the session lock, so the backend work happens on its own goroutine.
func (s *Server) offer(owner string, k score.Kind, value float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.d.SubmitTimeout)
		defer cancel()
		_, _ = s.d.Tracker.Offer(ctx, owner, k, value)
	}()
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *game.Session)

// withSession loads {id} for the signed-in user.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.d.Store.Get(r.Context(), gate.User(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, sess *game.Session) {
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request, sess *game.Session) {
	var mv game.Move
	if err := json.NewDecoder(r.Body).Decode(&mv); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	if err := sess.Apply(mv); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request, sess *game.Session) {
	if err := sess.Restart(); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request, sess *game.Session) {
	if err := sess.Continue(); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// handleResult hands out the round's Outcome once.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request, sess *game.Session) {
	o, ok := sess.TakeOutcome()
	if !ok {
		writeError(w, http.StatusNotFound, "no_result")
		return
	}
	res := resultRes{Outcome: o}
	if o.Time != nil {
		res.Clock = score.FormatClock(*o.Time)
	}
	if o.Kind == score.MemoryMatrix && o.Level != nil {
		ms, pct := game.Milestones(*o.Level)
		res.Milestones = ms
		res.Progress = &pct
	}
	writeJSON(w, http.StatusOK, res)
}

// handleUnmount discards the session and its timers.
func (s *Server) handleUnmount(w http.ResponseWriter, r *http.Request) {
	err := s.d.Store.Delete(r.Context(), gate.User(r.Context()), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMyBest lists the signed-in user's best values. When the backend
// is unreachable every entry shows the placeholder.
func (s *Server) handleMyBest(w http.ResponseWriter, r *http.Request) {
	u := gate.User(r.Context())
	res := bestRes{Username: u, Best: make([]bestEntry, 0, len(score.Kinds()))}
	best, err := s.d.Tracker.Best(r.Context(), u)
	if err != nil {
		res.Error = "Could not load best scores"
	}
	for _, k := range score.Kinds() {
		v, ok := best[k]
		e := bestEntry{Game: k, Title: k.Title(), Display: score.Display(k, v, ok)}
		if ok {
			e.Score = &v
		}
		res.Best = append(res.Best, e)
	}
	writeJSON(w, http.StatusOK, res)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrBadMove):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrDiscarded):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
