// Package queue provides an unbounded lock-free multi-producer,
// multi-consumer FIFO queue.
//
// The implementation is the Michael-Scott two-pointer queue built on
// sync/atomic pointers. Enqueue and Dequeue never block: contended callers
// retry their compare-and-swap instead of waiting on a lock. The garbage
// collector guarantees a node is never reused while another goroutine still
// holds a reference to it, so the classic ABA hazard does not apply.
package queue

import "sync/atomic"

type node[T any] struct {
	value atomic.Pointer[T]
	next  atomic.Pointer[node[T]]
}

// Queue is a lock-free FIFO of *T values. The zero value is not usable;
// create queues with New.
type Queue[T any] struct {
	head atomic.Pointer[node[T]]
	tail atomic.Pointer[node[T]]
	size atomic.Int64
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	dummy := &node[T]{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// Enqueue appends v to the tail of the queue. Nil values are ignored.
func (q *Queue[T]) Enqueue(v *T) {
	if v == nil {
		return
	}

	n := &node[T]{}
	n.value.Store(v)

	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}

		if next != nil {
			// Tail is lagging behind; help the other producer finish.
			q.tail.CompareAndSwap(tail, next)
			continue
		}

		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.size.Add(1)
			return
		}
	}
}

// Dequeue removes and returns the value at the head of the queue.
// It returns false when the queue is empty.
func (q *Queue[T]) Dequeue() (*T, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}

		if head == tail {
			if next == nil {
				return nil, false
			}
			q.tail.CompareAndSwap(tail, next)
			continue
		}

		v := next.value.Load()
		if q.head.CompareAndSwap(head, next) {
			// next is the new dummy; drop its value so the queue does not
			// keep it reachable.
			next.value.Store(nil)
			q.size.Add(-1)
			return v, true
		}
	}
}

// Len returns the approximate number of queued values. Under concurrent
// use the result is a snapshot that may already be stale.
func (q *Queue[T]) Len() int {
	n := q.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Drain dequeues every value currently in the queue and passes it to fn.
// It returns the number of values drained.
func (q *Queue[T]) Drain(fn func(*T)) int {
	count := 0
	for {
		v, ok := q.Dequeue()
		if !ok {
			return count
		}
		if fn != nil {
			fn(v)
		}
		count++
	}
}
