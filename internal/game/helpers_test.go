package game

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/robalobadob/minigames/apps/go-server/assets"
	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

type candidates struct {
	mu     sync.Mutex
	values []float64
}

func (c *candidates) record(_ string, _ score.Kind, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
}

func (c *candidates) all() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.values...)
}

func testCatalog(t *testing.T) *assets.Catalog {
	t.Helper()
	cat, err := assets.LoadCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cat
}

func startSession(t *testing.T, m Machine) (*Session, *ManualClock, *candidates) {
	t.Helper()
	clock := NewManualClock()
	cands := &candidates{}
	s := NewSession("tester", m, Options{
		Clock:       clock,
		Rand:        rand.New(rand.NewPCG(7, 11)),
		OnCandidate: cands.record,
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s, clock, cands
}

func ip(n int) *int { return &n }
