// apps/go-server/internal/events/dispatcher.go
//
// Process-wide "leaderboard data changed" signal.
// Views subscribe when they mount and call the returned function when they
// unmount; the best-value tracker publishes after every successful score
// submission. Handlers run on the publisher's goroutine and must not block.

package events

import (
	"sync"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// LeaderboardChanged is published after a score submission succeeded.
type LeaderboardChanged struct {
	Game     score.Kind `json:"game"`
	Username string     `json:"username"`
	Score    float64    `json:"score"`
}

// Handler receives events.
type Handler func(LeaderboardChanged)

// Dispatcher fans LeaderboardChanged events out to subscribers.
type Dispatcher struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[uint64]Handler)}
}

// Subscribe registers h and returns the function that removes it.
// Unsubscribing twice is harmless.
func (d *Dispatcher) Subscribe(h Handler) (unsubscribe func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs[id] = h
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber.
func (d *Dispatcher) Publish(ev LeaderboardChanged) {
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.subs))
	for _, h := range d.subs {
		hs = append(hs, h)
	}
	d.mu.RUnlock()
	for _, h := range hs {
		h(ev)
	}
}

// Subscribers reports how many handlers are registered.
func (d *Dispatcher) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}
