// Package notify hands render-path notifications to slow collaborators.
// Posting never blocks: a full queue drops the notification and counts it.
package notify

import (
	"sync"
	"sync/atomic"
)

// Queue delivers values to a handler on its own goroutine, in order.
type Queue[T any] struct {
	ch      chan T
	handle  func(T)
	quit    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
	once    sync.Once
}

// New starts a queue holding at most size pending values.
func New[T any](size int, handle func(T)) *Queue[T] {
	if size < 1 {
		size = 1
	}
	q := &Queue[T]{
		ch:     make(chan T, size),
		handle: handle,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue[T]) run() {
	defer close(q.done)
	for {
		select {
		case v := <-q.ch:
			q.handle(v)
		case <-q.quit:
			for {
				select {
				case v := <-q.ch:
					q.handle(v)
				default:
					return
				}
			}
		}
	}
}

// Post enqueues v and reports whether it was accepted.
func (q *Queue[T]) Post(v T) bool {
	if q.closed.Load() {
		return false
	}
	select {
	case q.ch <- v:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Dropped returns how many values were discarded because the queue was full.
func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }

// Close stops accepting values, delivers what is pending and waits for the
// handler to return.
func (q *Queue[T]) Close() {
	q.once.Do(func() {
		q.closed.Store(true)
		close(q.quit)
	})
	<-q.done
}
