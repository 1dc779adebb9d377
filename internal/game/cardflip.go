package game

import (
	"time"

	"github.com/robalobadob/minigames/apps/go-server/assets"
	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

const (
	// CardFlipSeconds is the countdown each round starts from.
	CardFlipSeconds = 120
	// MismatchDelay is how long a non-matching pair stays face up.
	MismatchDelay = time.Second
)

// Card is one face of the deck; every image appears on two cards.
type Card struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// CardFlip is the pair-matching game against a countdown.
type CardFlip struct {
	images    []assets.Item
	deck      []Card
	flipped   []int
	matched   map[string]bool
	flips     int
	remaining int
	state     State
	env       Env
}

// CardView hides the faces of cards that are down.
type CardView struct {
	Cards     []CardFace `json:"cards"`
	Flips     int        `json:"flips"`
	Matched   int        `json:"matched"`
	Pairs     int        `json:"pairs"`
	Remaining int        `json:"remaining"`
	Clock     string     `json:"clock"`
}

type CardFace struct {
	ID    int    `json:"id"`
	Up    bool   `json:"up"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

func NewCardFlip(images []assets.Item) *CardFlip {
	return &CardFlip{images: images, remaining: CardFlipSeconds, state: StateNotStarted}
}

func (g *CardFlip) Kind() score.Kind { return score.CardFlip }
func (g *CardFlip) State() State     { return g.state }

func (g *CardFlip) View() any {
	faces := make([]CardFace, len(g.deck))
	for i, c := range g.deck {
		f := CardFace{ID: c.ID}
		if g.faceUp(i) {
			f.Up, f.Name, f.Image = true, c.Name, c.Image
		}
		faces[i] = f
	}
	return CardView{
		Cards:     faces,
		Flips:     g.flips,
		Matched:   len(g.matched),
		Pairs:     len(g.images),
		Remaining: g.remaining,
		Clock:     score.FormatClock(g.remaining),
	}
}

func (g *CardFlip) faceUp(i int) bool {
	if g.matched[g.deck[i].Name] {
		return true
	}
	for _, f := range g.flipped {
		if f == i {
			return true
		}
	}
	return false
}

func (g *CardFlip) start(env Env) {
	g.env = env
	deck := make([]Card, 0, 2*len(g.images))
	for range 2 {
		for _, img := range g.images {
			deck = append(deck, Card{ID: len(deck) + 1, Name: img.ID, Image: img.Image})
		}
	}
	g.deck = shuffled(env.Rand(), deck)
	g.flipped = nil
	g.matched = make(map[string]bool, len(g.images))
	g.flips = 0
	g.remaining = CardFlipSeconds
	g.state = StateInProgress
	env.Every(time.Second, g.tick)
}

func (g *CardFlip) tick() {
	if g.state != StateInProgress {
		return
	}
	if g.remaining > 0 {
		g.remaining--
	}
	if g.remaining == 0 && len(g.matched) < len(g.images) {
		g.state = StateTimedOut
		g.env.Finish(Outcome{
			Result:   ResultLose,
			Score:    len(g.matched),
			Total:    intp(len(g.images)),
			Time:     intp(CardFlipSeconds),
			Flips:    intp(g.flips),
			TimedOut: true,
		})
	}
}

// Flip turns the card at position i face up.
func (g *CardFlip) Flip(i int) error {
	if g.state != StateInProgress {
		return nil
	}
	if i < 0 || i >= len(g.deck) {
		return ErrBadMove
	}
	if len(g.flipped) >= 2 || g.faceUp(i) {
		return nil
	}
	g.flipped = append(g.flipped, i)
	g.flips++
	if len(g.flipped) < 2 {
		return nil
	}

	first, second := g.deck[g.flipped[0]], g.deck[g.flipped[1]]
	if first.Name != second.Name {
		g.env.After(MismatchDelay, g.revert)
		return nil
	}
	g.matched[first.Name] = true
	g.flipped = nil
	if len(g.matched) == len(g.images) {
		elapsed := CardFlipSeconds - g.remaining
		g.state = StateWon
		g.env.Candidate(float64(elapsed))
		g.env.Finish(Outcome{
			Result: ResultWin,
			Score:  len(g.matched),
			Total:  intp(len(g.images)),
			Time:   intp(elapsed),
			Flips:  intp(g.flips),
		})
	}
	return nil
}

func (g *CardFlip) revert() {
	g.flipped = nil
}
