// Package eventloop provides the single-threaded task executor that every
// playback session runs on. All timer callbacks and listener dispatch are
// re-posted onto one goroutine so session state needs no locks.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrClosed is returned by Call once the loop has been closed.
var ErrClosed = errors.New("event loop closed")

// Timer is a pending scheduled task.
type Timer interface {
	// Stop prevents the task from running. It reports whether the call
	// stopped the task before it ran.
	Stop() bool
}

// Scheduler runs tasks one at a time on a single logical thread.
type Scheduler interface {
	// Post queues task to run after everything already queued.
	Post(task func())
	// AfterFunc queues task once d has elapsed on the scheduler's clock.
	AfterFunc(d time.Duration, task func()) Timer
	// Now returns the scheduler's current time.
	Now() time.Time
}

// Loop is a goroutine-backed Scheduler. Timers come from a clockwork.Clock
// and are re-posted onto the loop when they fire.
type Loop struct {
	clock clockwork.Clock
	log   *slog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewLoop returns a Loop using clock for timers. A nil clock means the real
// wall clock; a nil logger discards panics silently.
func NewLoop(clock clockwork.Clock, log *slog.Logger) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loop{
		clock: clock,
		log:   log,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run drains queued tasks until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.markClosed()
			return ctx.Err()
		case <-l.stop:
			return nil
		case <-l.wake:
			for {
				task, ok := l.next()
				if !ok {
					break
				}
				l.run(task)
			}
		}
	}
}

// Post implements Scheduler.Post. Tasks posted after Close are dropped.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc implements Scheduler.AfterFunc.
func (l *Loop) AfterFunc(d time.Duration, task func()) Timer {
	t := &loopTimer{}
	t.timer = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.Load() {
				return
			}
			task()
		})
	})
	return t
}

// Now implements Scheduler.Now.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}
}

// Close stops the loop. Queued tasks that have not started are dropped.
// Close is idempotent.
func (l *Loop) Close() {
	if l.markClosed() {
		close(l.stop)
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) markClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.closed = true
	l.queue = nil
	return true
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil && l.log != nil {
			l.log.Error("event loop task panicked", slog.Any("panic", r))
		}
	}()
	task()
}

type loopTimer struct {
	timer   clockwork.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	return t.timer.Stop()
}
