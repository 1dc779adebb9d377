// apps/go-server/internal/bestscore/tracker.go
//
// Per-user best-value cache sitting between the game sessions and the
// score backend.
// Responsibilities:
//   - Load a user's four best values once (de-duplicated across concurrent
//     callers) and keep them in memory.
//   - Accept score candidates from the games and submit only strict
//     improvements, updating the cache optimistically.
//   - Announce every successful submission on the leaderboard event bus.
//
// Notes:
//   - A failed load is not cached; the next caller retries.
//   - The shared load is detached from any one caller's context, so a
//     cancelled request abandons only its own wait.
//   - When the load fails, a candidate is compared against "no best yet"
//     and nothing is cached.
//   - A failed submission rolls the cached value back unless a later offer
//     already replaced it.

package bestscore

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/robalobadob/minigames/apps/go-server/internal/events"
	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// Backend is the slice of the score API the tracker needs for one user.
type Backend interface {
	User(ctx context.Context, username string) (score.UserScores, error)
	UpdateScore(ctx context.Context, username string, k score.Kind, value float64) error
}

// loadTimeout bounds one shared best-value load.
const loadTimeout = 10 * time.Second

// Tracker caches best values per user.
type Tracker struct {
	backendFor  func(username string) Backend
	bus         *events.Dispatcher
	group       singleflight.Group
	loadTimeout time.Duration

	mu     sync.Mutex
	best   map[string]map[score.Kind]float64
	offers map[string]*sync.Mutex
}

// NewTracker builds a tracker. backendFor returns the client that carries
// username's backend session; bus may be nil.
func NewTracker(backendFor func(username string) Backend, bus *events.Dispatcher) *Tracker {
	return &Tracker{
		backendFor:  backendFor,
		bus:         bus,
		loadTimeout: loadTimeout,
		best:        make(map[string]map[score.Kind]float64),
		offers:      make(map[string]*sync.Mutex),
	}
}

// Best returns a copy of username's cached best values, loading them on
// first use.
func (t *Tracker) Best(ctx context.Context, username string) (map[score.Kind]float64, error) {
	t.mu.Lock()
	cached, ok := t.best[username]
	if ok {
		out := clone(cached)
		t.mu.Unlock()
		return out, nil
	}
	t.mu.Unlock()

	ch := t.group.DoChan(username, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.loadTimeout)
		defer cancel()
		us, err := t.backendFor(username).User(lctx, username)
		if err != nil {
			return nil, err
		}
		loaded := make(map[score.Kind]float64, len(score.Kinds()))
		for _, k := range score.Kinds() {
			if b, ok := us.Best(k); ok {
				loaded[k] = b
			}
		}
		t.mu.Lock()
		t.best[username] = loaded
		out := clone(loaded)
		t.mu.Unlock()
		return out, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.(map[score.Kind]float64)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Offer submits value for username in game k when it strictly beats the
// known best. It reports whether a submission was made and succeeded.
func (t *Tracker) Offer(ctx context.Context, username string, k score.Kind, value float64) (bool, error) {
	lock := t.offerLock(username)
	lock.Lock()
	defer lock.Unlock()

	bests, err := t.Best(ctx, username)
	if err != nil {
		log.Warn().Err(err).Str("user", username).Msg("best value load failed")
		bests = nil
	}
	prev, hasPrev := bests[k]
	if !score.Better(k, value, prev, hasPrev) {
		return false, nil
	}

	t.set(username, k, value)
	if err := t.backendFor(username).UpdateScore(ctx, username, k, value); err != nil {
		t.rollback(username, k, value, prev, hasPrev)
		log.Warn().Err(err).Str("user", username).Str("game", string(k)).Float64("score", value).Msg("score submit failed")
		return false, err
	}

	log.Info().Str("user", username).Str("game", string(k)).Float64("score", value).Msg("new best submitted")
	if t.bus != nil {
		t.bus.Publish(events.LeaderboardChanged{Game: k, Username: username, Score: value})
	}
	return true, nil
}

// Forget drops username's cached values, e.g. on logout.
func (t *Tracker) Forget(username string) {
	t.mu.Lock()
	delete(t.best, username)
	delete(t.offers, username)
	t.mu.Unlock()
}

func (t *Tracker) offerLock(username string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.offers[username]
	if !ok {
		l = &sync.Mutex{}
		t.offers[username] = l
	}
	return l
}

func (t *Tracker) set(username string, k score.Kind, v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Without a loaded entry the next offer reloads from the backend.
	if m, ok := t.best[username]; ok {
		m[k] = v
	}
}

func (t *Tracker) rollback(username string, k score.Kind, tried, prev float64, hadPrev bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.best[username]
	if !ok || m[k] != tried {
		return
	}
	if hadPrev {
		m[k] = prev
	} else {
		delete(m, k)
	}
}

func clone(m map[score.Kind]float64) map[score.Kind]float64 {
	out := make(map[score.Kind]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
