// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the minigames backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", the game list and rules pages.
//   - Auth endpoints (rate limited): /auth/register, /auth/login, /auth/logout, /auth/me.
//   - Gated play endpoints: mount, move, restart, continue, result, unmount.
//   - Leaderboards: ranked REST reads and a live websocket view.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Every game session belongs to the user who mounted it; other users
//     get 404 for its id.
//   - Score candidates are offered to the best-value tracker on their own
//     goroutine, never under a session lock.

package httpserver

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/apps/go-server/assets"
	"github.com/robalobadob/minigames/apps/go-server/internal/bestscore"
	"github.com/robalobadob/minigames/apps/go-server/internal/events"
	"github.com/robalobadob/minigames/apps/go-server/internal/game"
	"github.com/robalobadob/minigames/apps/go-server/internal/gate"
	"github.com/robalobadob/minigames/apps/go-server/internal/leaderboard"
	"github.com/robalobadob/minigames/apps/go-server/internal/logging"
	"github.com/robalobadob/minigames/apps/go-server/internal/score"
	"github.com/robalobadob/minigames/apps/go-server/internal/store"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Catalog     *assets.Catalog
	Store       store.Store
	Gate        *gate.Gate
	Limiter     *gate.IPLimiter
	Tracker     *bestscore.Tracker
	Bus         *events.Dispatcher
	Leaderboard leaderboard.Source
	Origin      string

	// Clock and NewRand drive game sessions; nil picks real time and
	// randomly seeded generators.
	Clock   game.Clock
	NewRand func() *rand.Rand
	// SubmitTimeout bounds one best-value submission.
	SubmitTimeout time.Duration
}

// Server bundles the router and its collaborators.
type Server struct {
	r *chi.Mux
	d Deps
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	if d.SubmitTimeout <= 0 {
		d.SubmitTimeout = 10 * time.Second
	}
	if d.Origin == "" {
		d.Origin = "http://localhost:5173"
	}
	s := &Server{r: chi.NewRouter(), d: d}

	// A user's last logout ends every game they still have open.
	d.Gate.OnLogout(func(username string) {
		n := d.Store.DeleteOwner(context.Background(), username)
		d.Tracker.Forget(username)
		log.Debug().Str("user", username).Int("sessions", n).Msg("sessions discarded on logout")
	})

	// --- middleware ---
	s.r.Use(chimw.RequestID)       // add X-Request-ID
	s.r.Use(chimw.RealIP)          // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(logging.RequestLogger) // one log line per request
	s.r.Use(chimw.Recoverer)       // recover from panics
	s.r.Use(cors(d.Origin))        // credentials-friendly CORS

	// Websocket connections outlive the request timeout.
	s.r.Get("/ws/leaderboard", s.handleLeaderboardSocket)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"minigames-go","endpoints":["/health","/games","/auth/*","/play/*","/leaderboard","/ws/leaderboard"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		s.mountGames(r)
		s.mountAuth(r)
		s.mountPlay(r)
		s.mountLeaderboard(r)

		// JSON 404 for easier debugging
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
		})
	})

	return s
}

// Start serves HTTP on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseKind reads the {kind} URL param, answering 404 for unknown games.
func parseKind(w http.ResponseWriter, r *http.Request) (score.Kind, bool) {
	k, err := score.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_game")
		return "", false
	}
	return k, true
}
