// apps/go-server/internal/game/engine.go
//
// Engine construction for the four minigames.
// Responsibilities:
//   - Map a game kind to a fresh engine built from the embedded decks.
//   - Shared helpers used by several engines (shuffling).
//
// Notes:
//   - Decks come from the assets catalog (emoji items, card images).
//   - Engines are not safe for concurrent use on their own; Session
//     serializes access.
package game

import (
	"fmt"
	"math/rand/v2"

	"github.com/robalobadob/minigames/apps/go-server/assets"
	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// NewMachine constructs an engine for k in StateNotStarted.
func NewMachine(k score.Kind, cat *assets.Catalog) (Machine, error) {
	switch k {
	case score.EmojiClick:
		return NewEmojiClick(cat.Emoji), nil
	case score.RPS:
		return NewRPS(), nil
	case score.CardFlip:
		return NewCardFlip(cat.Cards), nil
	case score.MemoryMatrix:
		return NewMemoryMatrix(), nil
	}
	return nil, fmt.Errorf("%w: %q", score.ErrUnknownKind, k)
}

// shuffled returns a Fisher–Yates shuffled copy of items.
func shuffled[T any](rng *rand.Rand, items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
