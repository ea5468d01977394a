package ratelimit

import (
	"mercator-hq/ratecontrol/internal/bucket"
	"mercator-hq/ratecontrol/internal/queue"
)

// pool recycles invalidated bucket storage. The scheduler puts storage it
// evicted from the active set; Create takes it back out before allocating.
type pool struct {
	q *queue.Queue[bucket.State]
}

func newPool() *pool {
	return &pool{q: queue.New[bucket.State]()}
}

// get returns pooled storage, or false when the pool is empty.
func (p *pool) get() (*bucket.State, bool) {
	return p.q.Dequeue()
}

// put makes invalidated storage available for reuse.
func (p *pool) put(s *bucket.State) {
	p.q.Enqueue(s)
}

func (p *pool) len() int {
	return p.q.Len()
}

// drain empties the pool, dropping the storage for the garbage collector.
func (p *pool) drain() int {
	return p.q.Drain(nil)
}
