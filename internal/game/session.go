// apps/go-server/internal/game/session.go
//
// Session owns one game instance for the lifetime of a mounted view.
// Every event that can touch the game (client moves, ticks, delayed
// callbacks) is serialized behind the session mutex, so each engine runs
// as if single-threaded. Timers are tagged with the session generation;
// Restart and Discard bump the generation and stop them, which turns any
// callback already in flight into a no-op.

package game

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/apps/go-server/internal/score"
)

// Env is what an engine may use while a round is running.
type Env interface {
	Every(d time.Duration, fn func())
	After(d time.Duration, fn func())
	Rand() *rand.Rand
	// Candidate offers a personal-best candidate for the current game.
	Candidate(value float64)
	// Finish records the round's Outcome. Only the first call per round counts.
	Finish(o Outcome)
}

// Machine is implemented by the four engines. start discards any previous
// round and begins a fresh one.
type Machine interface {
	Kind() score.Kind
	State() State
	View() any
	start(env Env)
}

// Options configures a Session. Zero values pick RealClock and a randomly
// seeded generator.
type Options struct {
	Clock Clock
	Rand  *rand.Rand
	// OnCandidate runs with the session locked and must not block.
	OnCandidate func(owner string, k score.Kind, value float64)
}

// Session is one GameSession. It is safe for concurrent use.
type Session struct {
	ID      string
	Owner   string
	Created time.Time

	mu          sync.Mutex
	machine     Machine
	clock       Clock
	rng         *rand.Rand
	onCandidate func(string, score.Kind, float64)
	gen         uint64
	timers      []Timer
	outcome     *Outcome
	finished    bool
	discarded   bool
}

// View is the client-facing snapshot of a session.
type View struct {
	ID        string     `json:"id"`
	Game      score.Kind `json:"game"`
	State     State      `json:"state"`
	HasResult bool       `json:"hasResult"`
	Board     any        `json:"board"`
}

// NewSession wraps m in a session owned by owner. The session starts in
// StateNotStarted; call Start to begin the first round.
func NewSession(owner string, m Machine, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Session{
		ID:          uuid.NewString(),
		Owner:       owner,
		Created:     time.Now().UTC(),
		machine:     m,
		clock:       clock,
		rng:         rng,
		onCandidate: opts.OnCandidate,
	}
}

// Kind reports which game the session runs.
func (s *Session) Kind() score.Kind { return s.machine.Kind() }

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State()
}

// Start begins the first round. Starting a session that already started is a no-op.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return ErrDiscarded
	}
	if s.machine.State() != StateNotStarted {
		return nil
	}
	s.begin()
	return nil
}

// Restart throws the current round away, pending timers included, and
// starts a fresh one.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return ErrDiscarded
	}
	s.cancelTimers()
	s.gen++
	s.outcome = nil
	s.begin()
	return nil
}

// Discard stops the session for good (view unmounted). Idempotent.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.discarded = true
	s.cancelTimers()
	s.gen++
	log.Debug().Str("session", s.ID).Str("game", string(s.machine.Kind())).Msg("session discarded")
}

// Apply routes a client move to the engine. Malformed moves return
// ErrBadMove; moves outside StateInProgress are ignored.
func (s *Session) Apply(m Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return ErrDiscarded
	}
	switch g := s.machine.(type) {
	case *EmojiClick:
		return g.Click(m.Item)
	case *RPS:
		c, err := ParseChoice(m.Choice)
		if err != nil {
			return err
		}
		g.Play(c)
		return nil
	case *CardFlip:
		if m.Index == nil {
			return ErrBadMove
		}
		return g.Flip(*m.Index)
	case *MemoryMatrix:
		if m.Row == nil || m.Col == nil {
			return ErrBadMove
		}
		return g.Select(*m.Row, *m.Col)
	}
	return ErrBadMove
}

// Continue moves a finished rock-paper-scissor round back into play,
// keeping the score. Other games have no such transition.
func (s *Session) Continue() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return ErrDiscarded
	}
	g, ok := s.machine.(*RPS)
	if !ok {
		return ErrBadMove
	}
	if g.Continue() {
		s.finished = false
	}
	return nil
}

// Snapshot returns the client view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:        s.ID,
		Game:      s.machine.Kind(),
		State:     s.machine.State(),
		HasResult: s.outcome != nil,
		Board:     s.machine.View(),
	}
}

// TakeOutcome hands the pending Outcome to the result view. It returns
// false once the outcome has been consumed or when none was produced.
func (s *Session) TakeOutcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return Outcome{}, false
	}
	o := *s.outcome
	s.outcome = nil
	return o, true
}

func (s *Session) begin() {
	s.finished = false
	s.machine.start(env{s: s, gen: s.gen})
	log.Debug().Str("session", s.ID).Str("game", string(s.machine.Kind())).Uint64("gen", s.gen).Msg("round started")
}

func (s *Session) cancelTimers() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// schedule runs with s.mu held.
func (s *Session) schedule(gen uint64, d time.Duration, fn func(), repeat bool) {
	if gen != s.gen || s.discarded {
		return
	}
	wrapped := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen || s.discarded {
			return
		}
		fn()
	}
	var t Timer
	if repeat {
		t = s.clock.Every(d, wrapped)
	} else {
		t = s.clock.After(d, wrapped)
	}
	s.timers = append(s.timers, t)
}

// env binds an engine to one generation of its session.
type env struct {
	s   *Session
	gen uint64
}

func (e env) Every(d time.Duration, fn func()) { e.s.schedule(e.gen, d, fn, true) }
func (e env) After(d time.Duration, fn func()) { e.s.schedule(e.gen, d, fn, false) }
func (e env) Rand() *rand.Rand                 { return e.s.rng }

func (e env) Candidate(value float64) {
	if e.gen != e.s.gen || e.s.discarded || e.s.onCandidate == nil {
		return
	}
	e.s.onCandidate(e.s.Owner, e.s.machine.Kind(), value)
}

func (e env) Finish(o Outcome) {
	s := e.s
	if e.gen != s.gen || s.discarded || s.finished {
		return
	}
	s.finished = true
	o.Kind = s.machine.Kind()
	s.outcome = &o
	s.cancelTimers()
	log.Info().
		Str("session", s.ID).
		Str("owner", s.Owner).
		Str("game", string(o.Kind)).
		Str("result", string(o.Result)).
		Int("score", o.Score).
		Msg("game finished")
}
