package game

import (
	"testing"
	"time"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

func TestSessionStartsNotStarted(t *testing.T) {
	s := NewSession("tester", NewRPS(), Options{Clock: NewManualClock()})
	if s.State() != StateNotStarted {
		t.Fatalf("expected not started, got %s", s.State())
	}
	_ = s.Apply(Move{Choice: "rock"})
	if s.State() != StateNotStarted {
		t.Fatalf("expected move before start to be ignored")
	}
	if s.ID == "" {
		t.Fatalf("expected session id")
	}
}

func TestRestartCancelsPendingReveal(t *testing.T) {
	g := NewMemoryMatrix()
	s, clock, _ := startSession(t, g)

	clock.Advance(2 * time.Second)
	if err := s.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	// the first round's reveal would have ended at t=3s
	clock.Advance(1500 * time.Millisecond)
	if !s.Snapshot().Board.(MatrixView).Revealing {
		t.Fatalf("stale reveal timer ended the new round's reveal")
	}
	clock.Advance(RevealFor(PatternSizeFor(1)))
	if s.Snapshot().Board.(MatrixView).Revealing {
		t.Fatalf("expected new round's reveal to end")
	}
}

func TestRestartCancelsPendingMismatchRevert(t *testing.T) {
	g := NewCardFlip(testCatalog(t).Cards)
	s, clock, _ := startSession(t, g)
	a, b := mismatch(g)
	flip(t, s, a)
	flip(t, s, b)

	clock.Advance(500 * time.Millisecond)
	_ = s.Restart()
	first := 0
	flip(t, s, first)

	clock.Advance(600 * time.Millisecond) // old revert was due at 1s
	view := s.Snapshot().Board.(CardView)
	if !view.Cards[first].Up || view.Flips != 1 {
		t.Fatalf("stale revert touched the new round: %+v", view)
	}
	if view.Remaining != CardFlipSeconds {
		t.Fatalf("expected fresh countdown, got %d", view.Remaining)
	}
	clock.Advance(500 * time.Millisecond)
	if got := s.Snapshot().Board.(CardView).Remaining; got != CardFlipSeconds-1 {
		t.Fatalf("expected exactly one live countdown, remaining=%d", got)
	}
}

func TestDiscardStopsTimers(t *testing.T) {
	g := NewEmojiClick(testCatalog(t).Emoji)
	s, clock, _ := startSession(t, g)
	clock.Advance(2 * time.Second)
	s.Discard()
	s.Discard()

	if clock.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", clock.Pending())
	}
	clock.Advance(10 * time.Second)
	if got := g.elapsed; got != 2 {
		t.Fatalf("expected elapsed frozen at 2, got %d", got)
	}
	if err := s.Apply(Move{Item: g.items[0].ID}); err != ErrDiscarded {
		t.Fatalf("expected ErrDiscarded, got %v", err)
	}
	if err := s.Restart(); err != ErrDiscarded {
		t.Fatalf("expected ErrDiscarded on restart, got %v", err)
	}
}

func TestRestartClearsOutcome(t *testing.T) {
	g := NewEmojiClick(testCatalog(t).Emoji)
	s, _, _ := startSession(t, g)
	id := g.items[0].ID
	_ = s.Apply(Move{Item: id})
	_ = s.Apply(Move{Item: id})
	if !s.Snapshot().HasResult {
		t.Fatalf("expected pending result")
	}
	_ = s.Restart()
	if s.Snapshot().HasResult {
		t.Fatalf("expected restart to drop the old result")
	}
	if s.State() != StateInProgress {
		t.Fatalf("expected in progress, got %s", s.State())
	}
}

func TestNewMachine(t *testing.T) {
	cat := testCatalog(t)
	for _, k := range score.Kinds() {
		m, err := NewMachine(k, cat)
		if err != nil {
			t.Fatalf("NewMachine(%s): %v", k, err)
		}
		if m.Kind() != k || m.State() != StateNotStarted {
			t.Fatalf("unexpected machine for %s", k)
		}
	}
	if _, err := NewMachine("tetris", cat); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestRealClockAfter(t *testing.T) {
	done := make(chan struct{})
	RealClock{}.After(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected callback to fire")
	}

	ticks := make(chan struct{}, 10)
	tm := RealClock{}.Every(time.Millisecond, func() { ticks <- struct{}{} })
	<-ticks
	tm.Stop()
	tm.Stop()
}
