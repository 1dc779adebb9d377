// apps/go-server/internal/scoreserver/server.go
//
// Development double of the remote score backend.
// Serves the same REST contract the game server consumes, under /api/v1:
//   POST /auth/register, POST /auth/login, POST /auth/logout
//   GET  /users/{username}
//   PUT  /scores                    (cookie user must match body username)
//   GET  /leaderboard               (every user, all games)
//   GET  /leaderboard/{game}?limit= (top N in the game's direction)
//
// Errors are JSON {"message": "..."}; successful reads wrap payloads in
// {"data": ...}. Sessions are an HS256 JWT in an http-only cookie.

package scoreserver

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

const (
	cookieName   = "token"
	defaultLimit = 10
	maxLimit     = 100
)

// Options configure the double.
type Options struct {
	DBPath     string
	Secret     string
	Migrations fs.FS
	BcryptCost int
}

// Server is the dev backend.
type Server struct {
	r      *chi.Mux
	db     *sql.DB
	secret []byte
	cost   int
}

// New opens the database, applies migrations and registers routes.
func New(opts Options) (*Server, error) {
	db, err := openDB(opts.DBPath)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, opts.Migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	s := &Server{r: chi.NewRouter(), db: db, secret: []byte(opts.Secret), cost: cost}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(10 * time.Second))

	s.r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)
		r.Get("/users/{username}", s.handleUser)
		r.With(s.requireAuth).Put("/scores", s.handlePutScore)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/leaderboard/{game}", s.handleGameLeaderboard)
	})
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	return s, nil
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler { return s.r }

// Close releases the database.
func (s *Server) Close() error { return s.db.Close() }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("dev score backend listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ------------------------------- AUTH --------------------------------------

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	u := strings.TrimSpace(body.Username)
	if n := utf8.RuneCountInString(u); n < 3 || n > 50 {
		writeMessage(w, http.StatusBadRequest, "Username must be 3-50 characters")
		return
	}
	if utf8.RuneCountInString(body.Password) < 6 {
		writeMessage(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}
	h, err := bcrypt.GenerateFromPassword([]byte(body.Password), s.cost)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Could not register")
		return
	}
	if err := createUser(r.Context(), s.db, u, string(h)); err != nil {
		if errors.Is(err, ErrUserExists) {
			writeMessage(w, http.StatusConflict, "Username already exists")
			return
		}
		log.Error().Err(err).Msg("create user")
		writeMessage(w, http.StatusInternalServerError, "Could not register")
		return
	}
	if err := s.setSession(w, u); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Could not register")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Registered", "username": u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	u := strings.TrimSpace(body.Username)
	h, err := passwordHash(r.Context(), s.db, u)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(h), []byte(body.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := s.setSession(w, u); err != nil {
		writeMessage(w, http.StatusInternalServerError, "Could not log in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged in", "username": u})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", HttpOnly: true, MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// ------------------------------- DATA --------------------------------------

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	row, err := userRow(r.Context(), s.db, chi.URLParam(r, "username"))
	if errors.Is(err, sql.ErrNoRows) {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("load user")
		writeMessage(w, http.StatusInternalServerError, "Could not load user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": row})
}

type scoreBody struct {
	Username string  `json:"username"`
	Game     string  `json:"game"`
	Score    float64 `json:"score"`
}

func (s *Server) handlePutScore(w http.ResponseWriter, r *http.Request) {
	var body scoreBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if body.Username != sessionUser(r.Context()) {
		writeMessage(w, http.StatusForbidden, "Cannot update another user's score")
		return
	}
	k, err := score.ParseKind(body.Game)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Unknown game")
		return
	}
	if math.IsNaN(body.Score) || math.IsInf(body.Score, 0) {
		writeMessage(w, http.StatusBadRequest, "Invalid score")
		return
	}
	if err := putScore(r.Context(), s.db, body.Username, k, body.Score); err != nil {
		log.Error().Err(err).Msg("put score")
		writeMessage(w, http.StatusInternalServerError, "Could not save score")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Score updated"})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := allRows(r.Context(), s.db, "")
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeMessage(w, http.StatusInternalServerError, "Could not load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (s *Server) handleGameLeaderboard(w http.ResponseWriter, r *http.Request) {
	k, err := score.ParseKind(chi.URLParam(r, "game"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Unknown game")
		return
	}
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeMessage(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxLimit)
	}
	rows, err := topRows(r.Context(), s.db, k, limit)
	if err != nil {
		log.Error().Err(err).Msg("game leaderboard")
		writeMessage(w, http.StatusInternalServerError, "Could not load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

// ------------------------------ JWT & cookies ------------------------------

func (s *Server) setSession(w http.ResponseWriter, username string) error {
	exp := time.Now().Add(24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"exp":      exp.Unix(),
		"iat":      time.Now().Unix(),
	})
	ss, err := t.SignedString(s.secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    ss,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
	return nil
}

type ctxUserKey struct{}

// requireAuth enforces a valid session cookie and puts its username into
// the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(cookieName)
		if err != nil || c.Value == "" {
			writeMessage(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		claims := jwt.MapClaims{}
		t, err := jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !t.Valid {
			writeMessage(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		username, _ := claims["username"].(string)
		if ok, err := userExists(r.Context(), s.db, username); err != nil || !ok {
			writeMessage(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxUserKey{}, username)))
	})
}

func sessionUser(ctx context.Context) string {
	u, _ := ctx.Value(ctxUserKey{}).(string)
	return u
}

// ------------------------------- small util --------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
