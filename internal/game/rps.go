package game

import (
	"strings"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// Choice is a rock-paper-scissor hand.
type Choice string

const (
	Rock    Choice = "rock"
	Paper   Choice = "paper"
	Scissor Choice = "scissor"
)

var choices = [...]Choice{Rock, Paper, Scissor}

// beats[a] is the hand a defeats.
var beats = map[Choice]Choice{
	Rock:    Scissor,
	Scissor: Paper,
	Paper:   Rock,
}

// ParseChoice accepts "rock", "paper", "scissor" and "scissors".
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock":
		return Rock, nil
	case "paper":
		return Paper, nil
	case "scissor", "scissors":
		return Scissor, nil
	}
	return "", ErrBadMove
}

// Judge resolves one round from the user's point of view.
func Judge(user, opponent Choice) Result {
	switch {
	case user == opponent:
		return ResultDraw
	case beats[user] == opponent:
		return ResultWin
	default:
		return ResultLose
	}
}

// RPS plays single rounds against a uniformly random opponent. The score
// carries over between rounds until the session restarts.
type RPS struct {
	score    int
	rounds   int
	user     Choice
	opponent Choice
	state    State
	env      Env
}

type RPSView struct {
	Score    int    `json:"score"`
	Rounds   int    `json:"rounds"`
	Choice   Choice `json:"choice,omitempty"`
	Opponent Choice `json:"opponent,omitempty"`
}

func NewRPS() *RPS { return &RPS{state: StateNotStarted} }

func (g *RPS) Kind() score.Kind { return score.RPS }
func (g *RPS) State() State     { return g.state }

func (g *RPS) View() any {
	return RPSView{Score: g.score, Rounds: g.rounds, Choice: g.user, Opponent: g.opponent}
}

func (g *RPS) start(env Env) {
	g.env = env
	g.score = 0
	g.rounds = 0
	g.user, g.opponent = "", ""
	g.state = StateInProgress
}

// Play resolves one round with the user's hand c.
func (g *RPS) Play(c Choice) {
	if g.state != StateInProgress {
		return
	}
	opp := choices[g.env.Rand().IntN(len(choices))]
	g.resolve(c, opp)
}

func (g *RPS) resolve(user, opp Choice) {
	g.user, g.opponent = user, opp
	g.rounds++
	res := Judge(user, opp)
	switch res {
	case ResultWin:
		g.score++
		g.state = StateWon
	case ResultLose:
		g.score--
		g.state = StateLost
	default:
		g.state = StateDrawn
	}
	g.env.Candidate(float64(g.score))
	g.env.Finish(Outcome{Result: res, Score: g.score, Choice: string(user), Opponent: string(opp)})
}

// Continue re-enters play after a round; it reports whether it did.
func (g *RPS) Continue() bool {
	if !g.state.Terminal() {
		return false
	}
	g.state = StateInProgress
	return true
}
