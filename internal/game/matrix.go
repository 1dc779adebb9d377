package game

import (
	"time"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

const (
	MatrixMaxLevel   = 15
	matrixMinSide    = 3
	matrixMaxSide    = 8
	matrixMaxPattern = 10
	revealPerCell    = time.Second
	minReveal        = 3 * time.Second
)

// SideFor is the grid side length at level: 3+level, capped at 8.
func SideFor(level int) int {
	return min(matrixMinSide+level, matrixMaxSide)
}

// PatternSizeFor is the number of highlighted cells at level.
func PatternSizeFor(level int) int {
	side := SideFor(level)
	return min(level+2, side*side, matrixMaxPattern)
}

// RevealFor is how long a pattern of n cells stays highlighted.
func RevealFor(n int) time.Duration {
	return max(time.Duration(n)*revealPerCell, minReveal)
}

// Cell addresses one square of the grid.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// MemoryMatrix shows a pattern, hides it, and asks for it back.
type MemoryMatrix struct {
	level     int
	side      int
	pattern   map[Cell]bool
	selected  map[Cell]bool
	revealing bool
	state     State
	env       Env
}

type MatrixView struct {
	Level     int    `json:"level"`
	Side      int    `json:"side"`
	Revealing bool   `json:"revealing"`
	Pattern   []Cell `json:"pattern,omitempty"`
	Selected  []Cell `json:"selected"`
}

func NewMemoryMatrix() *MemoryMatrix {
	return &MemoryMatrix{level: 1, side: SideFor(1), state: StateNotStarted}
}

func (g *MemoryMatrix) Kind() score.Kind { return score.MemoryMatrix }
func (g *MemoryMatrix) State() State     { return g.state }

// Level is the level currently being played.
func (g *MemoryMatrix) Level() int { return g.level }

func (g *MemoryMatrix) View() any {
	v := MatrixView{Level: g.level, Side: g.side, Revealing: g.revealing, Selected: g.cells(g.selected)}
	if g.revealing {
		v.Pattern = g.cells(g.pattern)
	}
	return v
}

// cells lists set members in row-major order.
func (g *MemoryMatrix) cells(set map[Cell]bool) []Cell {
	out := []Cell{}
	for r := 0; r < g.side; r++ {
		for c := 0; c < g.side; c++ {
			if set[Cell{r, c}] {
				out = append(out, Cell{r, c})
			}
		}
	}
	return out
}

func (g *MemoryMatrix) start(env Env) {
	g.env = env
	g.level = 1
	g.state = StateInProgress
	g.setupLevel()
}

func (g *MemoryMatrix) setupLevel() {
	g.side = SideFor(g.level)
	n := PatternSizeFor(g.level)
	g.pattern = make(map[Cell]bool, n)
	for _, idx := range g.env.Rand().Perm(g.side * g.side)[:n] {
		g.pattern[Cell{idx / g.side, idx % g.side}] = true
	}
	g.selected = make(map[Cell]bool, n)
	g.revealing = true
	g.env.After(RevealFor(n), g.endReveal)
}

func (g *MemoryMatrix) endReveal() {
	if g.state == StateInProgress {
		g.revealing = false
	}
}

// Select clicks the cell at row, col.
func (g *MemoryMatrix) Select(row, col int) error {
	if g.state != StateInProgress || g.revealing {
		return nil
	}
	if row < 0 || col < 0 || row >= g.side || col >= g.side {
		return ErrBadMove
	}
	c := Cell{row, col}
	if !g.pattern[c] {
		g.state = StateLost
		g.env.Finish(Outcome{Result: ResultLose, Score: g.level, Level: intp(g.level)})
		return nil
	}
	if g.selected[c] {
		return nil
	}
	g.selected[c] = true
	if len(g.selected) < len(g.pattern) {
		return nil
	}

	if g.level == MatrixMaxLevel {
		g.state = StateWon
		g.env.Finish(Outcome{Result: ResultWin, Score: g.level, Level: intp(g.level)})
		return nil
	}
	g.level++
	g.env.Candidate(float64(g.level))
	g.setupLevel()
	return nil
}

// Milestone is one marker on the memory-matrix result progress bar.
type Milestone struct {
	Level   int    `json:"level"`
	Emoji   string `json:"emoji"`
	Reached bool   `json:"reached"`
}

var milestones = []Milestone{
	{Level: 1, Emoji: "😐"},
	{Level: 5, Emoji: "😬"},
	{Level: 7, Emoji: "😊"},
	{Level: 10, Emoji: "😁"},
	{Level: 12, Emoji: "😃"},
	{Level: 14, Emoji: "🙂"},
	{Level: MatrixMaxLevel, Emoji: "😎"},
}

// Milestones marks which result-screen milestones level has reached and
// returns the progress toward the last level in percent.
func Milestones(level int) ([]Milestone, int) {
	out := make([]Milestone, len(milestones))
	for i, m := range milestones {
		m.Reached = level >= m.Level
		out[i] = m
	}
	return out, min(level*100/MatrixMaxLevel, 100)
}
