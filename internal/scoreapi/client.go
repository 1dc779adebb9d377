// apps/go-server/internal/scoreapi/client.go
//
// Client for the remote score-tracking backend.
// Responsibilities:
//   - Auth: register, login, logout (cookie-based backend session kept in a jar).
//   - Reads: a user's best values, the full leaderboard, one game's top N.
//   - Writes: PUT /scores with a new personal best.
//
// Notes:
//   - All paths live under /api/v1 of the configured base URL.
//   - Non-2xx responses become *APIError carrying the backend's message
//     unmodified, so callers can show it to the user as-is.
//   - No retries: every call fails independently and the user re-triggers it.

package scoreapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// Prefix is the versioned base path of the backend API.
const Prefix = "/api/v1"

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// ErrMalformed wraps response bodies that could not be decoded.
var ErrMalformed = errors.New("malformed response")

// Client talks to the backend on behalf of one browser session.
type Client struct {
	base string
	http *http.Client
}

// New builds a client with its own cookie jar.
func New(baseURL string, timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		base: strings.TrimRight(baseURL, "/") + Prefix,
		http: &http.Client{Jar: jar, Timeout: timeout},
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type scoreUpdate struct {
	Username string     `json:"username"`
	Game     score.Kind `json:"game"`
	Score    float64    `json:"score"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/register", credentials{username, password}, nil)
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/login", credentials{username, password}, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// User fetches the best values recorded for username.
func (c *Client) User(ctx context.Context, username string) (score.UserScores, error) {
	var out envelope[score.UserScores]
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(username), nil, &out)
	return out.Data, err
}

// UpdateScore stores a new best value for username in game k.
func (c *Client) UpdateScore(ctx context.Context, username string, k score.Kind, value float64) error {
	return c.do(ctx, http.MethodPut, "/scores", scoreUpdate{Username: username, Game: k, Score: value}, nil)
}

// Leaderboard returns every player's row, all games.
func (c *Client) Leaderboard(ctx context.Context) ([]score.PlayerScoreRow, error) {
	var out envelope[[]score.PlayerScoreRow]
	if err := c.do(ctx, http.MethodGet, "/leaderboard", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GameLeaderboard returns the backend's top limit rows for k, unranked.
func (c *Client) GameLeaderboard(ctx context.Context, k score.Kind, limit int) ([]score.PlayerScoreRow, error) {
	if limit <= 0 {
		limit = 10
	}
	var out envelope[[]score.PlayerScoreRow]
	path := "/leaderboard/" + url.PathEscape(string(k)) + "?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		if eb.Message == "" {
			eb.Message = "Request failed"
		}
		return &APIError{Status: resp.StatusCode, Message: eb.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformed, method, path, err)
	}
	return nil
}
