package httpserver

import (
	"bytes"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/minigames/apps/go-server/assets"
	"github.com/robalobadob/minigames/apps/go-server/internal/bestscore"
	"github.com/robalobadob/minigames/apps/go-server/internal/events"
	"github.com/robalobadob/minigames/apps/go-server/internal/game"
	"github.com/robalobadob/minigames/apps/go-server/internal/gate"
	"github.com/robalobadob/minigames/apps/go-server/internal/leaderboard"
	"github.com/robalobadob/minigames/apps/go-server/internal/scoreapi"
	"github.com/robalobadob/minigames/apps/go-server/internal/scoreserver"
	"github.com/robalobadob/minigames/apps/go-server/internal/store"
)

// harness runs the game server against the development score backend.
type harness struct {
	t        *testing.T
	url      string
	backend  string
	clock    *game.ManualClock
	catalog  *assets.Catalog
	bus      *events.Dispatcher
	stopping func()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend, err := scoreserver.New(scoreserver.Options{
		DBPath:     filepath.Join(t.TempDir(), "scores.db"),
		Secret:     "backend",
		Migrations: assets.Migrations(),
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	bsrv := httptest.NewServer(backend.Handler())

	cat, err := assets.LoadCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	h := &harness{t: t, backend: bsrv.URL, catalog: cat}
	h.start()
	t.Cleanup(func() {
		h.stopping()
		bsrv.Close()
		_ = backend.Close()
	})
	return h
}

// start runs a fresh game server process state (sessions, store, bus)
// with the same cookie secret, stopping the previous one.
func (h *harness) start() {
	if h.stopping != nil {
		h.stopping()
	}
	sessions := scoreapi.NewSessions(h.backend, 2*time.Second)
	h.bus = events.NewDispatcher()
	h.clock = game.NewManualClock()
	var seed atomic.Uint64

	srv := New(Deps{
		Catalog:     h.catalog,
		Store:       store.NewMemoryStore(),
		Gate:        gate.New(sessions, gate.Options{Secret: "front", TTL: time.Hour}),
		Limiter:     gate.NewIPLimiter(6000, 1000),
		Tracker:     bestscore.NewTracker(func(u string) bestscore.Backend { return sessions.For(u) }, h.bus),
		Bus:         h.bus,
		Leaderboard: sessions.Public(),
		Clock:       h.clock,
		NewRand: func() *rand.Rand {
			n := seed.Add(1)
			return rand.New(rand.NewPCG(n, n*31))
		},
	})
	ts := httptest.NewServer(srv.Router())
	h.url = ts.URL
	h.stopping = ts.Close
}

// browser is one cookie-keeping client.
type browser struct {
	h *harness
	c *http.Client
}

func (h *harness) browser() *browser {
	jar, _ := cookiejar.New(nil)
	return &browser{h: h, c: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (b *browser) do(method, path string, body any, out any) int {
	b.h.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, b.h.url+path, rd)
	resp, err := b.c.Do(req)
	if err != nil {
		b.h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			b.h.t.Fatalf("%s %s: decode %s: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode
}

func (b *browser) register(name string) {
	b.h.t.Helper()
	if code := b.do(http.MethodPost, "/auth/register", credentialsReq{name, "secret1"}, nil); code != http.StatusCreated {
		b.h.t.Fatalf("register %s: status %d", name, code)
	}
}

type viewRes struct {
	ID        string          `json:"id"`
	Game      string          `json:"game"`
	State     game.State      `json:"state"`
	HasResult bool            `json:"hasResult"`
	Board     json.RawMessage `json:"board"`
}

type errorRes struct {
	Error string `json:"error"`
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHealthAndGames(t *testing.T) {
	h := newHarness(t)
	b := h.browser()

	var ok map[string]bool
	if code := b.do(http.MethodGet, "/health", nil, &ok); code != http.StatusOK || !ok["ok"] {
		t.Fatalf("unexpected health %d %v", code, ok)
	}

	var tiles []gameTile
	b.do(http.MethodGet, "/games", nil, &tiles)
	if len(tiles) != 4 || tiles[0].ID != "emojigame" {
		t.Fatalf("unexpected game list %+v", tiles)
	}

	var rules assets.GameEntry
	if code := b.do(http.MethodGet, "/games/cardflipgame/rules", nil, &rules); code != http.StatusOK || len(rules.Rules) == 0 {
		t.Fatalf("expected card flip rules, got %d %+v", code, rules)
	}
	var e errorRes
	if code := b.do(http.MethodGet, "/games/chess/rules", nil, &e); code != http.StatusNotFound || e.Error != "unknown_game" {
		t.Fatalf("expected unknown_game, got %d %+v", code, e)
	}
}

func TestAuthGate(t *testing.T) {
	h := newHarness(t)
	b := h.browser()

	var e errorRes
	if code := b.do(http.MethodPost, "/play/emojigame", nil, &e); code != http.StatusUnauthorized || e.Error != "login required" {
		t.Fatalf("expected 401 login required, got %d %+v", code, e)
	}
	if code := b.do(http.MethodPost, "/auth/register", credentialsReq{"al", "secret1"}, &e); code != http.StatusBadRequest || !strings.Contains(e.Error, "3-50") {
		t.Fatalf("expected validation error, got %d %+v", code, e)
	}

	b.register("alice")
	var me authRes
	if code := b.do(http.MethodGet, "/auth/me", nil, &me); code != http.StatusOK || me.Username != "alice" {
		t.Fatalf("expected alice, got %d %+v", code, me)
	}

	other := h.browser()
	if code := other.do(http.MethodPost, "/auth/register", credentialsReq{"alice", "secret1"}, &e); code != http.StatusConflict || e.Error != "Username already exists" {
		t.Fatalf("expected backend message passed through, got %d %+v", code, e)
	}
	if code := other.do(http.MethodPost, "/auth/login", credentialsReq{"alice", "wrong!!"}, &e); code != http.StatusUnauthorized || e.Error != "Invalid credentials" {
		t.Fatalf("expected invalid credentials, got %d %+v", code, e)
	}
}

func TestEmojiRoundSubmitsBestAndConsumesResult(t *testing.T) {
	h := newHarness(t)
	b := h.browser()
	b.register("alice")

	var v viewRes
	if code := b.do(http.MethodPost, "/play/emojigame", nil, &v); code != http.StatusCreated || v.State != game.StateInProgress {
		t.Fatalf("mount: %d %+v", code, v)
	}

	h.clock.Advance(5 * time.Second)
	for _, it := range h.catalog.Emoji {
		b.do(http.MethodPost, "/play/"+v.ID+"/move", game.Move{Item: it.ID}, &v)
	}
	if v.State != game.StateWon || !v.HasResult {
		t.Fatalf("expected won with result, got %+v", v)
	}

	var res resultRes
	if code := b.do(http.MethodGet, "/play/"+v.ID+"/result", nil, &res); code != http.StatusOK {
		t.Fatalf("result: %d", code)
	}
	if res.Result != game.ResultWin || res.Score != len(h.catalog.Emoji) || res.Clock != "00:05" {
		t.Fatalf("unexpected result %+v", res)
	}
	var e errorRes
	if code := b.do(http.MethodGet, "/play/"+v.ID+"/result", nil, &e); code != http.StatusNotFound || e.Error != "no_result" {
		t.Fatalf("expected result consumed, got %d %+v", code, e)
	}

	eventually(t, "best value submitted", func() bool {
		var best bestRes
		b.do(http.MethodGet, "/me/best", nil, &best)
		return best.Best[0].Display == "00:05"
	})

	var board leaderboard.Snapshot
	b.do(http.MethodGet, "/leaderboard/emojigame?limit=5", nil, &board)
	if len(board.Rows) != 1 || board.Rows[0].Username != "alice" || board.Rows[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
}

func TestSessionsAreOwnerScopedAndLogoutDiscards(t *testing.T) {
	h := newHarness(t)
	alice := h.browser()
	alice.register("alice")
	bob := h.browser()
	bob.register("bob")

	var v viewRes
	alice.do(http.MethodPost, "/play/cardflipgame", nil, &v)

	if code := bob.do(http.MethodGet, "/play/"+v.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected other users to get 404, got %d", code)
	}
	if code := alice.do(http.MethodPost, "/play/"+v.ID+"/move", game.Move{Index: ptr(99)}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected bad move, got %d", code)
	}
	if code := alice.do(http.MethodPost, "/play/"+v.ID+"/continue", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("expected continue rejected for card flip, got %d", code)
	}

	alice.do(http.MethodPost, "/auth/logout", nil, nil)
	if code := alice.do(http.MethodGet, "/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected cookie cleared, got %d", code)
	}
	if code := alice.do(http.MethodPost, "/auth/login", credentialsReq{"alice", "secret1"}, nil); code != http.StatusOK {
		t.Fatalf("relogin: %d", code)
	}
	if code := alice.do(http.MethodGet, "/play/"+v.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected session discarded on logout, got %d", code)
	}
	if h.clock.Pending() != 0 {
		t.Fatalf("expected no timers left, got %d", h.clock.Pending())
	}
}

func TestLogoutOnOneDeviceKeepsTheOther(t *testing.T) {
	h := newHarness(t)
	laptop := h.browser()
	laptop.register("alice")
	phone := h.browser()
	if code := phone.do(http.MethodPost, "/auth/login", credentialsReq{"alice", "secret1"}, nil); code != http.StatusOK {
		t.Fatalf("login: %d", code)
	}

	var v viewRes
	if code := phone.do(http.MethodPost, "/play/emojigame", nil, &v); code != http.StatusCreated {
		t.Fatalf("mount: %d", code)
	}
	laptop.do(http.MethodPost, "/auth/logout", nil, nil)

	var e errorRes
	if code := laptop.do(http.MethodPost, "/play/emojigame", nil, &e); code != http.StatusUnauthorized || e.Error != "login required" {
		t.Fatalf("expected logged-out device rejected, got %d %+v", code, e)
	}

	h.clock.Advance(7 * time.Second)
	for _, it := range h.catalog.Emoji {
		if code := phone.do(http.MethodPost, "/play/"+v.ID+"/move", game.Move{Item: it.ID}, &v); code != http.StatusOK {
			t.Fatalf("expected the other device's game to survive, got %d", code)
		}
	}
	if v.State != game.StateWon {
		t.Fatalf("expected won, got %s", v.State)
	}
	eventually(t, "best value recorded for the remaining device", func() bool {
		var best bestRes
		phone.do(http.MethodGet, "/me/best", nil, &best)
		return best.Best[0].Display == "00:07"
	})
}

func TestRestartForcesSignInAgain(t *testing.T) {
	h := newHarness(t)
	b := h.browser()
	b.register("frank")

	h.start()

	var e errorRes
	if code := b.do(http.MethodPost, "/play/emojigame", nil, &e); code != http.StatusUnauthorized || e.Error != "login required" {
		t.Fatalf("expected 401 for a token without backend session, got %d %+v", code, e)
	}
	if code := b.do(http.MethodGet, "/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("expected /auth/me rejected, got %d", code)
	}
	if code := b.do(http.MethodPost, "/auth/login", credentialsReq{"frank", "secret1"}, nil); code != http.StatusOK {
		t.Fatalf("relogin: %d", code)
	}
	if code := b.do(http.MethodPost, "/play/emojigame", nil, nil); code != http.StatusCreated {
		t.Fatalf("expected play after signing in again, got %d", code)
	}
}

func TestUnmountStopsTimers(t *testing.T) {
	h := newHarness(t)
	b := h.browser()
	b.register("carol")

	var v viewRes
	b.do(http.MethodPost, "/play/memorymatrix", nil, &v)
	if h.clock.Pending() == 0 {
		t.Fatalf("expected the reveal timer to be pending")
	}
	if code := b.do(http.MethodDelete, "/play/"+v.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("unmount: %d", code)
	}
	if h.clock.Pending() != 0 {
		t.Fatalf("expected timers stopped, got %d", h.clock.Pending())
	}
	if code := b.do(http.MethodDelete, "/play/"+v.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected second unmount 404, got %d", code)
	}
}

func TestMatrixMissResultCarriesMilestones(t *testing.T) {
	h := newHarness(t)
	b := h.browser()
	b.register("dave")

	var v viewRes
	b.do(http.MethodPost, "/play/memorymatrix", nil, &v)
	var board game.MatrixView
	_ = json.Unmarshal(v.Board, &board)
	if !board.Revealing || len(board.Pattern) == 0 {
		t.Fatalf("expected pattern revealed, got %+v", board)
	}
	inPattern := map[game.Cell]bool{}
	for _, c := range board.Pattern {
		inPattern[c] = true
	}

	h.clock.Advance(game.RevealFor(len(board.Pattern)))
	var miss game.Cell
	for r := 0; r < board.Side; r++ {
		for c := 0; c < board.Side; c++ {
			if !inPattern[game.Cell{Row: r, Col: c}] {
				miss = game.Cell{Row: r, Col: c}
			}
		}
	}
	b.do(http.MethodPost, "/play/"+v.ID+"/move", game.Move{Row: ptr(miss.Row), Col: ptr(miss.Col)}, &v)
	if v.State != game.StateLost {
		t.Fatalf("expected lost, got %s", v.State)
	}

	var res resultRes
	b.do(http.MethodGet, "/play/"+v.ID+"/result", nil, &res)
	if res.Level == nil || *res.Level != 1 || len(res.Milestones) != 7 || res.Progress == nil || *res.Progress != 6 {
		t.Fatalf("unexpected matrix result %+v", res)
	}
}

func TestLeaderboardSocketRefreshesOnSubmission(t *testing.T) {
	h := newHarness(t)
	b := h.browser()
	b.register("erin")

	wsURL := "ws" + strings.TrimPrefix(h.url, "http") + "/ws/leaderboard"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() map[string]any {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m map[string]any
		_ = json.Unmarshal(data, &m)
		return m
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"game":"chess"}`))
	if m := read(); m["error"] != "unknown_game" {
		t.Fatalf("expected unknown_game frame, got %v", m)
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"game":"emojigame"}`))
	first := read()
	if first["game"] != "emojigame" || len(first["rows"].([]any)) != 0 {
		t.Fatalf("expected empty emoji board, got %v", first)
	}

	var v viewRes
	b.do(http.MethodPost, "/play/emojigame", nil, &v)
	h.clock.Advance(9 * time.Second)
	for _, it := range h.catalog.Emoji {
		b.do(http.MethodPost, "/play/"+v.ID+"/move", game.Move{Item: it.ID}, &v)
	}

	next := read()
	rows, _ := next["rows"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["username"] != "erin" {
		t.Fatalf("expected refreshed board with erin, got %v", next)
	}
}

func TestLeaderboardDegradesWhenBackendDown(t *testing.T) {
	cat, err := assets.LoadCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	srv := New(Deps{
		Catalog:     cat,
		Store:       store.NewMemoryStore(),
		Gate:        gate.New(scoreapi.NewSessions("http://127.0.0.1:1", time.Second), gate.Options{Secret: "x"}),
		Tracker:     bestscore.NewTracker(func(string) bestscore.Backend { return scoreapi.New("http://127.0.0.1:1", time.Second) }, nil),
		Bus:         events.NewDispatcher(),
		Leaderboard: scoreapi.New("http://127.0.0.1:1", time.Second),
	})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

	var res allRes
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if rec.Code != http.StatusOK || res.Error == "" || len(res.Boards) != 4 || len(res.Boards[0].Rows) != 0 {
		t.Fatalf("expected empty boards with error, got %d %s", rec.Code, rec.Body.String())
	}
}

func ptr(n int) *int { return &n }
