// Package looptest provides a deterministic eventloop.Scheduler for tests.
//
// Posted work runs immediately unless it is posted from inside another task,
// in which case it runs right after that task. Timers fire only when the test
// advances the clock. Off-loop work runs inline unless HoldAsync is set.
package looptest

import (
	"sort"
	"time"

	"pairchat/internal/eventloop"
)

// Epoch is the starting clock of every Loop.
var Epoch = time.UnixMilli(1_700_000_000_000)

// Loop is a manual-clock scheduler. It is not safe for concurrent use.
type Loop struct {
	now     time.Time
	queue   []func()
	running bool
	timers  []*timer
	seq     int

	// HoldAsync parks work passed to Go until RunAsync is called.
	HoldAsync bool
	async     []func()
}

// New returns a Loop whose clock starts at Epoch.
func New() *Loop { return &Loop{now: Epoch} }

// Post runs fn now, or after the current task when called from inside one.
func (l *Loop) Post(fn func()) {
	l.queue = append(l.queue, fn)
	if l.running {
		return
	}
	l.running = true
	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue = l.queue[1:]
		next()
	}
	l.running = false
}

// AfterFunc schedules fn at Now()+d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) eventloop.Timer {
	l.seq++
	t := &timer{due: l.now.Add(d), fn: fn, seq: l.seq}
	l.timers = append(l.timers, t)
	return t
}

// Go runs fn inline, or parks it when HoldAsync is set.
func (l *Loop) Go(fn func()) {
	if l.HoldAsync {
		l.async = append(l.async, fn)
		return
	}
	fn()
}

// Now returns the manual clock.
func (l *Loop) Now() time.Time { return l.now }

// Advance moves the clock forward by d, firing due timers in order.
func (l *Loop) Advance(d time.Duration) {
	target := l.now.Add(d)
	for {
		t := l.nextDue(target)
		if t == nil {
			break
		}
		if t.due.After(l.now) {
			l.now = t.due
		}
		t.fired = true
		l.Post(t.fn)
	}
	l.now = target
}

// RunAsync runs parked off-loop work in FIFO order and reports how many ran.
func (l *Loop) RunAsync() int {
	n := 0
	for len(l.async) > 0 {
		fn := l.async[0]
		l.async = l.async[1:]
		fn()
		n++
	}
	return n
}

// PendingAsync reports how much off-loop work is parked.
func (l *Loop) PendingAsync() int { return len(l.async) }

// PendingTimers reports timers that have neither fired nor been stopped.
func (l *Loop) PendingTimers() int {
	n := 0
	for _, t := range l.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (l *Loop) nextDue(limit time.Time) *timer {
	live := l.timers[:0]
	for _, t := range l.timers {
		if !t.fired && !t.stopped {
			live = append(live, t)
		}
	}
	l.timers = live
	sort.SliceStable(l.timers, func(i, j int) bool {
		if !l.timers[i].due.Equal(l.timers[j].due) {
			return l.timers[i].due.Before(l.timers[j].due)
		}
		return l.timers[i].seq < l.timers[j].seq
	})
	if len(l.timers) == 0 || l.timers[0].due.After(limit) {
		return nil
	}
	return l.timers[0]
}

type timer struct {
	due     time.Time
	fn      func()
	seq     int
	fired   bool
	stopped bool
}

func (t *timer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

var _ eventloop.Scheduler = (*Loop)(nil)
