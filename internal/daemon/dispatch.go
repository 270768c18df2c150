package daemon

import "sync"

// dispatchQueue runs queued work one item at a time, in queue order. There is
// no dedicated goroutine: whoever finds the queue idle drains it, and anyone
// who enqueues while it is being drained, the drainer's own callbacks
// included, returns at once and leaves the item to the drainer.
type dispatchQueue struct {
	mu      sync.Mutex
	items   []func()
	running bool
}

// enqueue adds fn without running anything.
func (q *dispatchQueue) enqueue(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()
}

// drain runs queued items until the queue is empty, unless another call is
// already draining it.
func (q *dispatchQueue) drain() {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	for len(q.items) > 0 {
		next := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()
		next()
		q.mu.Lock()
	}
	q.running = false
	q.mu.Unlock()
}

// do enqueues fn and drains.
func (q *dispatchQueue) do(fn func()) {
	q.enqueue(fn)
	q.drain()
}
