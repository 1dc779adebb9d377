package game

import (
	"testing"
	"time"
)

func emojiIDs(g *EmojiClick) []string {
	ids := make([]string, len(g.items))
	for i, it := range g.items {
		ids[i] = it.ID
	}
	return ids
}

func TestEmojiClickWinsWithAllUniqueClicks(t *testing.T) {
	g := NewEmojiClick(testCatalog(t).Emoji)
	s, clock, cands := startSession(t, g)

	clock.Advance(5 * time.Second)
	for _, id := range emojiIDs(g) {
		if err := s.Apply(Move{Item: id}); err != nil {
			t.Fatalf("click %s: %v", id, err)
		}
	}
	if s.State() != StateWon {
		t.Fatalf("expected won, got %s", s.State())
	}
	o, ok := s.TakeOutcome()
	if !ok {
		t.Fatalf("expected outcome")
	}
	if o.Result != ResultWin || o.Score != len(g.items) || *o.Total != len(g.items) || *o.Time != 5 {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if got := cands.all(); len(got) != 1 || got[0] != 5 {
		t.Fatalf("expected best-time candidate 5, got %v", got)
	}
	if _, ok := s.TakeOutcome(); ok {
		t.Fatalf("expected outcome to be consumed once")
	}
}

func TestEmojiClickRepeatLoses(t *testing.T) {
	g := NewEmojiClick(testCatalog(t).Emoji)
	s, _, cands := startSession(t, g)
	ids := emojiIDs(g)

	_ = s.Apply(Move{Item: ids[0]})
	_ = s.Apply(Move{Item: ids[1]})
	_ = s.Apply(Move{Item: ids[0]})

	if s.State() != StateLost {
		t.Fatalf("expected lost, got %s", s.State())
	}
	o, _ := s.TakeOutcome()
	if o.Result != ResultLose || o.Score != 2 {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if len(cands.all()) != 0 {
		t.Fatalf("expected no candidate on loss")
	}

	// further clicks are ignored
	if err := s.Apply(Move{Item: ids[2]}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if _, ok := s.TakeOutcome(); ok {
		t.Fatalf("expected no second outcome")
	}
}

// The full display order is re-shuffled after every successful click,
// including items that were already clicked.
func TestEmojiClickReshufflesWholeOrder(t *testing.T) {
	g := NewEmojiClick(testCatalog(t).Emoji)
	s, _, _ := startSession(t, g)
	ids := emojiIDs(g)

	changed := 0
	for _, id := range ids[:5] {
		before := s.Snapshot().Board.(EmojiView).Items
		_ = s.Apply(Move{Item: id})
		after := s.Snapshot().Board.(EmojiView).Items
		if len(after) != len(ids) {
			t.Fatalf("expected %d items on display, got %d", len(ids), len(after))
		}
		for i := range before {
			if before[i].ID != after[i].ID {
				changed++
				break
			}
		}
	}
	if changed == 0 {
		t.Fatalf("expected display order to change after clicks")
	}
	if s.State() != StateInProgress {
		t.Fatalf("expected still in progress, got %s", s.State())
	}
}

func TestEmojiClickUnknownItem(t *testing.T) {
	g := NewEmojiClick(testCatalog(t).Emoji)
	s, _, _ := startSession(t, g)
	if err := s.Apply(Move{Item: "no-such-emoji"}); err != ErrBadMove {
		t.Fatalf("expected ErrBadMove, got %v", err)
	}
}

func TestEmojiClickElapsedTicks(t *testing.T) {
	g := NewEmojiClick(testCatalog(t).Emoji)
	s, clock, _ := startSession(t, g)
	clock.Advance(3500 * time.Millisecond)
	if got := s.Snapshot().Board.(EmojiView).Elapsed; got != 3 {
		t.Fatalf("expected 3 elapsed seconds, got %d", got)
	}
}
