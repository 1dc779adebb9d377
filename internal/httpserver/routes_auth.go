package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/apps/go-server/internal/gate"
	"github.com/robalobadob/minigames/apps/go-server/internal/scoreapi"
)

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authRes struct {
	Username string `json:"username"`
}

// mountAuth registers the auth endpoints. Register and login are rate
// limited per client IP.
func (s *Server) mountAuth(r chi.Router) {
	limited := r.With()
	if s.d.Limiter != nil {
		limited = r.With(s.d.Limiter.Middleware)
	}
	limited.Post("/auth/register", s.handleRegister)
	limited.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)
	r.With(s.d.Gate.Require).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authRes{Username: gate.User(r.Context())})
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, http.StatusCreated, s.d.Gate.Register)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, http.StatusOK, s.d.Gate.Login)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, okStatus int,
	call func(context.Context, http.ResponseWriter, string, string) (string, error)) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := call(r.Context(), w, body.Username, body.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, okStatus, authRes{Username: u})
}

// writeAuthError maps gate and backend failures to responses. Backend
// messages are passed through unchanged.
func writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *scoreapi.APIError
	switch {
	case gate.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		writeError(w, apiErr.Status, apiErr.Message)
	default:
		log.Warn().Err(err).Msg("auth backend unreachable")
		writeError(w, http.StatusBadGateway, "Authentication failed")
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.d.Gate.Logout(r.Context(), w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
