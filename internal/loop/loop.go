// Package loop serializes work onto a single goroutine so that every event
// is processed to completion before the next one starts.
package loop

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by Do once the loop has stopped.
var ErrStopped = errors.New("event loop stopped")

// Loop executes posted closures one at a time, in posting order.
type Loop struct {
	tasks   chan func()
	done    chan struct{}
	stopped sync.Once
	logger  *logrus.Logger
}

// New creates a loop with a bounded task queue. A nil logger discards
// output.
func New(queueSize int, logger *logrus.Logger) *Loop {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Loop{
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run processes tasks until ctx is cancelled. Tasks still queued at that
// point are dropped. A panicking task is logged and the loop keeps going.
func (l *Loop) Run(ctx context.Context) {
	defer l.stopped.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-l.tasks:
			l.run(task)
		}
	}
}

func (l *Loop) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.WithField("panic", r).Error("Event loop task panicked")
		}
	}()
	task()
}

// Post queues fn without waiting for it. It reports false if the loop has
// stopped.
func (l *Loop) Post(fn func()) bool {
	if l.isStopped() {
		return false
	}
	select {
	case <-l.done:
		return false
	case l.tasks <- fn:
		return true
	}
}

// Do queues fn and waits until it has run. Calling Do from inside a task
// deadlocks; tasks call their collaborators directly instead.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	if l.isStopped() {
		return ErrStopped
	}

	select {
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case l.tasks <- task:
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) isStopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
