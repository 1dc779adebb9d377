package game

import (
	"sort"
	"sync"
	"time"
)

// Timer cancels a scheduled callback. Stop is idempotent.
type Timer interface {
	Stop()
}

// Clock schedules the two timer families the games use: a repeating tick
// and a one-shot delay.
type Clock interface {
	Every(d time.Duration, fn func()) Timer
	After(d time.Duration, fn func()) Timer
}

// RealClock runs callbacks on runtime timers.
type RealClock struct{}

func (RealClock) After(d time.Duration, fn func()) Timer {
	return afterTimer{t: time.AfterFunc(d, fn)}
}

type afterTimer struct{ t *time.Timer }

func (a afterTimer) Stop() { a.t.Stop() }

func (RealClock) Every(d time.Duration, fn func()) Timer {
	t := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	return &tickerTimer{t: t, done: done}
}

type tickerTimer struct {
	t    *time.Ticker
	done chan struct{}
	once sync.Once
}

func (tt *tickerTimer) Stop() {
	tt.once.Do(func() {
		tt.t.Stop()
		close(tt.done)
	})
}

// ManualClock is a Clock whose time only moves when Advance is called.
// Callbacks run synchronously on the goroutine calling Advance.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	c       *ManualClock
	at      time.Duration
	every   time.Duration
	seq     int
	fn      func()
	stopped bool
}

func (mt *manualTimer) Stop() {
	mt.c.mu.Lock()
	mt.stopped = true
	mt.c.mu.Unlock()
}

// NewManualClock returns a clock frozen at zero.
func NewManualClock() *ManualClock { return &ManualClock{} }

func (c *ManualClock) After(d time.Duration, fn func()) Timer {
	return c.add(d, 0, fn)
}

func (c *ManualClock) Every(d time.Duration, fn func()) Timer {
	return c.add(d, d, fn)
}

func (c *ManualClock) add(d, every time.Duration, fn func()) *manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	mt := &manualTimer{c: c, at: c.now + d, every: every, seq: c.seq, fn: fn}
	c.timers = append(c.timers, mt)
	return mt
}

// Advance moves time forward by d, firing due callbacks in time order.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		next := c.nextDue(target)
		if next == nil {
			break
		}
		c.now = next.at
		if next.every > 0 {
			next.at += next.every
		} else {
			next.stopped = true
		}
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.compact()
	c.mu.Unlock()
}

// Pending counts timers that have not fired (one-shot) or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (c *ManualClock) nextDue(target time.Duration) *manualTimer {
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && t.at <= target {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})
	return due[0]
}

func (c *ManualClock) compact() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	c.timers = live
}
