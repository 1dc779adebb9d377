// apps/go-server/internal/score/kind.go
//
// Game identifiers shared by the engine, the score backend client and the
// leaderboard. Each kind carries its wire id (used in URLs and PUT /scores),
// the backend field name holding the player's best value, and the
// ordering direction used to compare values.

package score

import (
	"errors"
	"strings"
)

// Kind identifies one of the four minigames.
type Kind string

const (
	EmojiClick   Kind = "emojigame"
	MemoryMatrix Kind = "memorymatrix"
	RPS          Kind = "rockpaperscissor"
	CardFlip     Kind = "cardflipgame"
)

// Direction tells which end of the number line is the better score.
type Direction int

const (
	LowerIsBetter Direction = iota
	HigherIsBetter
)

func (d Direction) String() string {
	if d == HigherIsBetter {
		return "desc"
	}
	return "asc"
}

// ErrUnknownKind is returned by ParseKind for ids outside the catalog.
var ErrUnknownKind = errors.New("unknown game")

type kindInfo struct {
	field string
	dir   Direction
	title string
}

var kinds = map[Kind]kindInfo{
	EmojiClick:   {field: "emojiGameHighScore", dir: LowerIsBetter, title: "Emoji Game"},
	MemoryMatrix: {field: "memoryMatrixHighScore", dir: HigherIsBetter, title: "Memory Matrix"},
	RPS:          {field: "rockPaperScissorHighScore", dir: HigherIsBetter, title: "Rock Paper Scissor"},
	CardFlip:     {field: "cardFlipGameHighScore", dir: LowerIsBetter, title: "Card Flip Memory Game"},
}

// Kinds returns every game in home-screen order.
func Kinds() []Kind {
	return []Kind{EmojiClick, MemoryMatrix, RPS, CardFlip}
}

// ParseKind maps a wire id (case-insensitive, trimmed) to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kinds[k]; !ok {
		return "", ErrUnknownKind
	}
	return k, nil
}

// Valid reports whether k is one of the known games.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Field is the name of the best-value field on the backend user record.
func (k Kind) Field() string { return kinds[k].field }

// Direction is the ordering direction for k's scores.
func (k Kind) Direction() Direction { return kinds[k].dir }

// Title is the human-readable name shown on the home list.
func (k Kind) Title() string { return kinds[k].title }

// TimeBased reports whether k's score is a duration in seconds.
func (k Kind) TimeBased() bool { return kinds[k].dir == LowerIsBetter }

// kindForField reverses Field.
func kindForField(field string) (Kind, bool) {
	for k, info := range kinds {
		if info.field == field {
			return k, true
		}
	}
	return "", false
}
