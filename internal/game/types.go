// apps/go-server/internal/game/types.go
//
// Core type definitions shared by the four minigame engines.
// Defines:
//   - State: lifecycle position of a session (not started, in progress, terminal).
//   - Result / Outcome: the immutable record handed to the result view.
//   - Move: a client interaction, interpreted per game.

package game

import (
	"errors"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// State is the lifecycle position of a game session.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateWon        State = "won"
	StateLost       State = "lost"
	StateTimedOut   State = "timed_out"
	StateDrawn      State = "drawn" // rock-paper-scissor round only
)

// Terminal reports whether no interaction is possible without a restart
// (or, for rock-paper-scissor, a continue).
func (s State) Terminal() bool {
	switch s {
	case StateWon, StateLost, StateTimedOut, StateDrawn:
		return true
	}
	return false
}

// Result is the headline of an Outcome.
type Result string

const (
	ResultWin  Result = "win"
	ResultLose Result = "lose"
	ResultDraw Result = "draw"
)

// Outcome is produced once per terminal transition and consumed once by
// the result view. Optional fields are nil when a game does not report them.
type Outcome struct {
	Kind     score.Kind `json:"game"`
	Result   Result     `json:"result"`
	Score    int        `json:"score"`
	Total    *int       `json:"total,omitempty"`
	Time     *int       `json:"time,omitempty"` // seconds
	Level    *int       `json:"level,omitempty"`
	Flips    *int       `json:"flips,omitempty"`
	TimedOut bool       `json:"timedOut,omitempty"`
	Choice   string     `json:"choice,omitempty"`
	Opponent string     `json:"opponent,omitempty"`
}

// Move is one client interaction. Each game reads the fields it needs:
// Item (emoji id), Choice (rock/paper/scissor), Index (card position),
// Row/Col (matrix cell).
type Move struct {
	Item   string `json:"item,omitempty"`
	Choice string `json:"choice,omitempty"`
	Index  *int   `json:"index,omitempty"`
	Row    *int   `json:"row,omitempty"`
	Col    *int   `json:"col,omitempty"`
}

var (
	// ErrBadMove marks malformed input (unknown item, out-of-range cell).
	// Well-formed moves in the wrong state are no-ops, not errors.
	ErrBadMove = errors.New("invalid move")
	// ErrDiscarded is returned for operations on a session that was unmounted.
	ErrDiscarded = errors.New("session discarded")
)

func intp(n int) *int { return &n }
