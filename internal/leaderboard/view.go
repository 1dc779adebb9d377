// apps/go-server/internal/leaderboard/view.go
//
// Live leaderboard view.
// A View belongs to one viewer (one websocket). The viewer can switch the
// selected game at any rate; each selection starts a fetch tagged with a
// monotonically increasing sequence number, and a result is delivered only
// if its sequence is still the latest when it arrives. Older results are
// dropped without error.
//
// Closing the view cancels its context, abandoning every in-flight fetch.
// Selections arriving after Close are ignored.

package leaderboard

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// DefaultLimit is the number of rows a view asks for.
const DefaultLimit = 10

// NoData is the viewer-facing message for a failed fetch.
const NoData = "No data available"

// Source is the read side of the score backend.
type Source interface {
	Leaderboard(ctx context.Context) ([]score.PlayerScoreRow, error)
	GameLeaderboard(ctx context.Context, k score.Kind, limit int) ([]score.PlayerScoreRow, error)
}

// Snapshot is one delivered result. On failure Rows is empty and Error
// holds a message for the viewer.
type Snapshot struct {
	Seq   uint64            `json:"seq,omitempty"`
	Game  score.Kind        `json:"game"`
	Title string            `json:"title"`
	Rows  []score.RankedRow `json:"rows"`
	Error string            `json:"error,omitempty"`
}

// View fetches and ranks one game's leaderboard at a time.
type View struct {
	src   Source
	limit int
	emit  func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders sequence bumps against deliveries, so a stale result can
	// never be emitted after a newer one.
	mu     sync.Mutex
	seq    uint64
	game   score.Kind
	closed bool
}

// NewView builds a view. emit is called from fetch goroutines, one call at
// a time, and must not block for long.
func NewView(parent context.Context, src Source, limit int, emit func(Snapshot)) *View {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ctx, cancel := context.WithCancel(parent)
	return &View{src: src, limit: limit, emit: emit, ctx: ctx, cancel: cancel}
}

// Select switches the view to k and starts a fetch. It returns the
// sequence number of that fetch, or 0 once the view is closed.
func (v *View) Select(k score.Kind) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0
	}
	v.seq++
	v.game = k
	v.wg.Add(1) // under mu: Close waits only after closed is set
	go v.fetch(v.seq, k)
	return v.seq
}

// Refresh re-fetches the current selection. It is a no-op before the first
// Select.
func (v *View) Refresh() {
	v.mu.Lock()
	k := v.game
	v.mu.Unlock()
	if k == "" {
		return
	}
	v.Select(k)
}

// Selected returns the current game, or "" before the first Select.
func (v *View) Selected() score.Kind {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.game
}

// Close abandons in-flight fetches and waits for their goroutines.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.cancel()
	v.wg.Wait()
}

func (v *View) fetch(seq uint64, k score.Kind) {
	defer v.wg.Done()

	snap := Fetch(v.ctx, v.src, k, v.limit)
	if v.ctx.Err() != nil {
		return
	}
	snap.Seq = seq

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.seq {
		log.Debug().Uint64("seq", seq).Uint64("latest", v.seq).Msg("stale leaderboard result dropped")
		return
	}
	v.emit(snap)
}

// Fetch loads and ranks the top limit rows of k. A failed fetch yields an
// empty board with Error set.
func Fetch(ctx context.Context, src Source, k score.Kind, limit int) Snapshot {
	if limit <= 0 {
		limit = DefaultLimit
	}
	snap := Snapshot{Game: k, Title: k.Title(), Rows: []score.RankedRow{}}
	rows, err := src.GameLeaderboard(ctx, k, limit)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("game", string(k)).Msg("leaderboard fetch failed")
		}
		snap.Error = NoData
		return snap
	}
	snap.Rows = score.Rank(rows, k)
	return snap
}
