package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/apps/go-server/internal/events"
	"github.com/robalobadob/minigames/apps/go-server/internal/leaderboard"
	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 1 << 10
)

type allRes struct {
	Boards []leaderboard.Board `json:"boards"`
	Error  string              `json:"error,omitempty"`
}

// selectMsg is a client frame on the leaderboard socket.
type selectMsg struct {
	Game string `json:"game"`
}

// mountLeaderboard registers the ranked REST reads.
func (s *Server) mountLeaderboard(r chi.Router) {
	r.Get("/leaderboard", s.handleLeaderboard)
	r.Get("/leaderboard/{kind}", s.handleGameLeaderboard)
}

// handleLeaderboard ranks every game from one backend read. A failed read
// degrades to empty boards.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	boards, err := leaderboard.All(r.Context(), s.d.Leaderboard)
	if err != nil {
		log.Warn().Err(err).Msg("leaderboard fetch failed")
		res := allRes{Boards: make([]leaderboard.Board, 0, len(score.Kinds())), Error: leaderboard.NoData}
		for _, k := range score.Kinds() {
			res.Boards = append(res.Boards, leaderboard.Board{Game: k, Title: k.Title(), Rows: []score.RankedRow{}})
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusOK, allRes{Boards: boards})
}

func (s *Server) handleGameLeaderboard(w http.ResponseWriter, r *http.Request) {
	k, ok := parseKind(w, r)
	if !ok {
		return
	}
	limit := leaderboard.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, leaderboard.Fetch(r.Context(), s.d.Leaderboard, k, limit))
}

// ------------------------------ websocket ----------------------------------

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == s.d.Origin || o == "http://"+r.Host || o == "https://"+r.Host
		},
	}
}

// handleLeaderboardSocket runs one live leaderboard view.
// The client sends {"game":"<kind>"} to select a board (also accepted as
// ?game= on connect); the server pushes a ranked snapshot for the latest
// selection, and again whenever a score for that game is submitted.
func (s *Server) handleLeaderboardSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already answered
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan any, 8)
	push := func(v any) {
		select {
		case out <- v:
		default:
			log.Warn().Msg("leaderboard socket backlog full, frame dropped")
		}
	}

	view := leaderboard.NewView(ctx, s.d.Leaderboard, leaderboard.DefaultLimit, func(snap leaderboard.Snapshot) {
		push(snap)
	})
	unsubscribe := s.d.Bus.Subscribe(func(ev events.LeaderboardChanged) {
		if ev.Game == view.Selected() {
			view.Refresh()
		}
	})

	writerDone := make(chan struct{})
	go s.socketWriter(conn, out, writerDone)

	defer func() {
		unsubscribe()
		view.Close()
		close(out)
		<-writerDone
	}()

	if g := r.URL.Query().Get("game"); g != "" {
		selectGame(view, g, push)
	}

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg selectMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			push(map[string]string{"error": "bad_json"})
			continue
		}
		selectGame(view, msg.Game, push)
	}
}

func selectGame(view *leaderboard.View, g string, push func(any)) {
	k, err := score.ParseKind(g)
	if err != nil {
		push(map[string]string{"error": "unknown_game"})
		return
	}
	view.Select(k)
}

// socketWriter owns all writes on conn: queued frames and keepalive pings.
func (s *Server) socketWriter(conn *websocket.Conn, out <-chan any, done chan<- struct{}) {
	defer close(done)
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	broken := false
	for {
		select {
		case v, ok := <-out:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
				return
			}
			if broken {
				continue
			}
			b, err := json.Marshal(v)
			if err != nil {
				log.Error().Err(err).Msg("encode leaderboard frame")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				broken = true
				_ = conn.Close() // unblocks the reader
			}
		case <-ping.C:
			if broken {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				broken = true
				_ = conn.Close()
			}
		}
	}
}
