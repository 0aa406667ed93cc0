// Package loop runs tasks one at a time on a single goroutine, in the order
// they were queued. It is the event loop that bindings, controls and
// document replicas are confined to.
package loop

import (
	"context"
	"sync"
)

// Loop is a FIFO task queue. Post and Defer are safe from any goroutine;
// Run and Drain must not be used concurrently.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	idle  func()
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// OnIdle sets fn to run each time Run empties the queue.
func (l *Loop) OnIdle(fn func()) {
	l.mu.Lock()
	l.idle = fn
	l.mu.Unlock()
}

// Post queues fn.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Defer queues fn to run after the current task. It makes Loop a
// fieldsync.Scheduler.
func (l *Loop) Defer(fn func()) {
	l.Post(fn)
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Drain runs queued tasks, including ones they queue, until the queue is
// empty. It returns the number of tasks run.
func (l *Loop) Drain() int {
	n := 0
	for {
		fn, ok := l.next()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Run drains the queue whenever tasks arrive until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if l.Drain() > 0 {
			l.mu.Lock()
			idle := l.idle
			l.mu.Unlock()
			if idle != nil {
				idle()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Call runs fn on the loop and waits for it to finish or ctx to end.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
