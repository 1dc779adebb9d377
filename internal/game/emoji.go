package game

import (
	"time"

	"github.com/robalobadob/minigames/apps/go-server/assets"
	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// EmojiClick: click every emoji exactly once. After each successful click
// the whole display order is re-shuffled, clicked items included; items are
// tracked by id, never by position.
type EmojiClick struct {
	items   []assets.Item
	known   map[string]bool
	order   []assets.Item
	clicked map[string]bool
	score   int
	elapsed int
	state   State
	env     Env
}

// EmojiView is what the client renders.
type EmojiView struct {
	Items   []assets.Item `json:"items"`
	Score   int           `json:"score"`
	Total   int           `json:"total"`
	Elapsed int           `json:"elapsed"`
}

func NewEmojiClick(items []assets.Item) *EmojiClick {
	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}
	return &EmojiClick{items: items, known: known, order: items, state: StateNotStarted}
}

func (g *EmojiClick) Kind() score.Kind { return score.EmojiClick }
func (g *EmojiClick) State() State     { return g.state }

func (g *EmojiClick) View() any {
	order := make([]assets.Item, len(g.order))
	copy(order, g.order)
	return EmojiView{Items: order, Score: g.score, Total: len(g.items), Elapsed: g.elapsed}
}

func (g *EmojiClick) start(env Env) {
	g.env = env
	g.order = shuffled(env.Rand(), g.items)
	g.clicked = make(map[string]bool, len(g.items))
	g.score = 0
	g.elapsed = 0
	g.state = StateInProgress
	env.Every(time.Second, g.tick)
}

func (g *EmojiClick) tick() {
	if g.state == StateInProgress {
		g.elapsed++
	}
}

// Click registers a click on the item with the given id.
func (g *EmojiClick) Click(id string) error {
	if g.state != StateInProgress {
		return nil
	}
	if !g.known[id] {
		return ErrBadMove
	}
	total := len(g.items)
	if g.clicked[id] {
		g.state = StateLost
		g.env.Finish(Outcome{Result: ResultLose, Score: g.score, Total: intp(total), Time: intp(g.elapsed)})
		return nil
	}

	g.clicked[id] = true
	g.score = len(g.clicked)
	if g.score == total {
		g.state = StateWon
		g.env.Candidate(float64(g.elapsed))
		g.env.Finish(Outcome{Result: ResultWin, Score: g.score, Total: intp(total), Time: intp(g.elapsed)})
		return nil
	}
	g.order = shuffled(g.env.Rand(), g.order)
	return nil
}
