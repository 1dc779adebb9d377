// apps/go-server/internal/gate/gate.go
//
// Session/auth gate for the game server.
// Responsibilities:
//   - Validate credentials locally before any backend call.
//   - Delegate register/login/logout to the score backend.
//   - Keep the signed-in username and a per-sign-in session id in an HS256
//     JWT cookie until logout.
//   - Reject gated routes for visitors without a valid cookie, or whose
//     session id the backend no longer holds (logged out, server restarted).
//
// Notes:
//   - Backend error messages are passed through unchanged.
//   - Logout never fails: backend errors are logged and ignored and the
//     cookie is cleared. Logout hooks run once the user's last sign-in ends.

package gate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Validation errors, returned before any network call.
var (
	ErrUsernameLength = errors.New("username must be 3-50 characters")
	ErrPasswordLength = errors.New("password must be at least 6 characters")
)

const (
	minUsername = 3
	maxUsername = 50
	minPassword = 6
)

// Backend performs the remote side of authentication. Each sign-in is
// keyed by a session id minted by the gate.
type Backend interface {
	Register(ctx context.Context, sid, username, password string) error
	Login(ctx context.Context, sid, username, password string) error
	// Logout ends sid and returns how many sign-ins of username remain.
	Logout(ctx context.Context, sid, username string) (int, error)
	// Active reports whether sid is still a live sign-in of username.
	Active(username, sid string) bool
}

// Options configure the session cookie.
type Options struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Gate signs users in and out and guards routes.
type Gate struct {
	backend Backend
	opts    Options
	now     func() time.Time

	mu       sync.Mutex
	onLogout []func(username string)
}

func New(backend Backend, opts Options) *Gate {
	if opts.CookieName == "" {
		opts.CookieName = "mg_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 14 * 24 * time.Hour
	}
	return &Gate{backend: backend, opts: opts, now: time.Now}
}

// Validate trims username and checks both credentials against the local
// rules. It returns the trimmed username.
func Validate(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < minUsername || n > maxUsername {
		return "", ErrUsernameLength
	}
	if utf8.RuneCountInString(password) < minPassword {
		return "", ErrPasswordLength
	}
	return username, nil
}

// IsValidation reports whether err came from Validate.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUsernameLength) || errors.Is(err, ErrPasswordLength)
}

// OnLogout registers fn to run when a user's last sign-in logs out.
func (g *Gate) OnLogout(fn func(username string)) {
	g.mu.Lock()
	g.onLogout = append(g.onLogout, fn)
	g.mu.Unlock()
}

// Register creates the account and signs the user in.
func (g *Gate) Register(ctx context.Context, w http.ResponseWriter, username, password string) (string, error) {
	return g.authenticate(ctx, w, username, password, g.backend.Register)
}

// Login signs an existing user in.
func (g *Gate) Login(ctx context.Context, w http.ResponseWriter, username, password string) (string, error) {
	return g.authenticate(ctx, w, username, password, g.backend.Login)
}

func (g *Gate) authenticate(ctx context.Context, w http.ResponseWriter, username, password string,
	call func(context.Context, string, string, string) error) (string, error) {
	u, err := Validate(username, password)
	if err != nil {
		return "", err
	}
	sid := uuid.NewString()
	if err := call(ctx, sid, u, password); err != nil {
		return "", err
	}
	tok, exp, err := g.sign(u, sid)
	if err != nil {
		return "", err
	}
	g.setCookie(w, tok, exp)
	log.Info().Str("user", u).Msg("signed in")
	return u, nil
}

// Logout ends the sign-in carried by r and returns its username, if any.
// It always clears the cookie. Other sign-ins of the same user keep their
// backend session and games.
func (g *Gate) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) string {
	g.clearCookie(w)
	username, sid, ok := g.session(r)
	if !ok {
		return ""
	}
	remaining, err := g.backend.Logout(ctx, sid, username)
	if err != nil {
		log.Warn().Err(err).Str("user", username).Msg("backend logout failed")
	}
	if remaining > 0 {
		log.Info().Str("user", username).Int("remaining", remaining).Msg("signed out one session")
		return username
	}
	g.mu.Lock()
	hooks := append([]func(string){}, g.onLogout...)
	g.mu.Unlock()
	for _, fn := range hooks {
		fn(username)
	}
	log.Info().Str("user", username).Msg("signed out")
	return username
}

// Username returns the signed-in user of r, if any. It checks the token
// only; Require also checks the backend session.
func (g *Gate) Username(r *http.Request) (string, bool) {
	u, _, ok := g.session(r)
	return u, ok
}

// session returns the username and session id of r's token.
func (g *Gate) session(r *http.Request) (string, string, bool) {
	tok := bearerOrCookie(r, g.opts.CookieName)
	if tok == "" {
		return "", "", false
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(g.opts.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(g.now))
	if err != nil || !t.Valid {
		return "", "", false
	}
	username, _ := claims["username"].(string)
	sid, _ := claims["sid"].(string)
	return username, sid, username != ""
}

// ctxUserKey is the context key type for the signed-in username.
type ctxUserKey struct{}

// Require rejects requests without a valid session with 401 and puts the
// username into the request context otherwise. A well-signed token whose
// backend session is gone is cleared as well.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, sid, ok := g.session(r)
		if !ok {
			http.Error(w, `{"error":"login required"}`, http.StatusUnauthorized)
			return
		}
		if !g.backend.Active(u, sid) {
			log.Debug().Str("user", u).Msg("token without backend session")
			g.clearCookie(w)
			http.Error(w, `{"error":"login required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// WithUser returns ctx carrying username.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxUserKey{}, username)
}

// User returns the username put into ctx by Require.
func User(ctx context.Context) string {
	u, _ := ctx.Value(ctxUserKey{}).(string)
	return u
}

// ------------------------------ JWT & cookies ------------------------------

func (g *Gate) sign(username, sid string) (string, time.Time, error) {
	now := g.now()
	exp := now.Add(g.opts.TTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": username,
		"sid":      sid,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(g.opts.Secret))
	return ss, exp, err
}

func (g *Gate) setCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.opts.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.opts.Secure,
		SameSite: g.sameSite(),
		Expires:  exp,
	})
}

func (g *Gate) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.opts.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   g.opts.Secure,
		SameSite: g.sameSite(),
		MaxAge:   -1,
	})
}

func (g *Gate) sameSite() http.SameSite {
	if g.opts.Secure {
		return http.SameSiteNoneMode // cross-site cookies must be Secure
	}
	return http.SameSiteLaxMode
}

// bearerOrCookie extracts a bearer token from the Authorization header or
// the session cookie.
func bearerOrCookie(r *http.Request, cookie string) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(cookie); err == nil {
		return c.Value
	}
	return ""
}
