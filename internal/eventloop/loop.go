package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Do once the loop has stopped.
var ErrClosed = errors.New("event loop closed")

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from being posted. A callback that was
	// already posted still runs.
	Stop() bool
}

// Scheduler is what controllers need from the loop.
type Scheduler interface {
	// Post queues fn to run on the loop.
	Post(fn func())
	// AfterFunc posts fn onto the loop after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Go runs fn off the loop. fn must Post any state change back.
	Go(fn func())
	// Now is the loop's clock.
	Now() time.Time
}

// Loop is the production Scheduler.
type Loop struct {
	log *zap.Logger

	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

// New returns a Loop. Call Run to start processing.
func New(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{log: logger, wake: make(chan struct{}, 1), stopped: make(chan struct{})}
}

// Post queues fn. Posting never blocks, including from inside the loop.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc posts fn after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Go starts fn on its own goroutine.
func (l *Loop) Go(fn func()) { go fn() }

// Now returns the wall clock.
func (l *Loop) Now() time.Time { return time.Now() }

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-l.stopped:
		// fn may have been dropped with the queue.
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes posted work until ctx is cancelled. Queued work that has not
// started when ctx ends is dropped. Run must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
		close(l.stopped)
	}()

	for {
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			l.run(fn)
			if ctx.Err() != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("event loop task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

var _ Scheduler = (*Loop)(nil)
