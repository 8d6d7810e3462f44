package relay

import "sync"

// queue is a FIFO ring that doubles when it reaches 70% full, up to limit.
// At the limit the oldest entry is overwritten so a stalled broker never
// backs up into the router.
type queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []T
	head   int
	count  int
	limit  int
	closed bool

	enqueued int64
	dequeued int64
	dropped  int64
	resizes  int
}

func newQueue[T any](initial, limit int) *queue[T] {
	if initial < 1 {
		initial = 1
	}
	if limit < initial {
		limit = initial
	}
	q := &queue[T]{
		buf:   make([]T, initial),
		limit: limit,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends v. It reports false once the queue is closed.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := max(len(q.buf)*70/100, 1)
	if q.count+1 >= threshold && len(q.buf) < q.limit {
		q.growLocked()
	}

	if q.count == len(q.buf) {
		// Full at the limit: drop the oldest.
		var zero T
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped++
	}

	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
	q.enqueued++
	q.cond.Signal()
	return true
}

// pop blocks until an entry is available. It reports false when the queue
// is closed and empty.
func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}

	var zero T
	if q.count == 0 {
		return zero, false
	}

	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.dequeued++
	return v, true
}

// close wakes all waiters; remaining entries can still be popped.
func (q *queue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *queue[T]) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *queue[T]) stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Depth:    q.count,
		Capacity: len(q.buf),
		Enqueued: q.enqueued,
		Dequeued: q.dequeued,
		Dropped:  q.dropped,
		Resizes:  q.resizes,
	}
}

// growLocked doubles capacity, capped at limit, unwrapping the ring.
func (q *queue[T]) growLocked() {
	size := min(len(q.buf)*2, q.limit)
	buf := make([]T, size)
	n := copy(buf, q.buf[q.head:min(q.head+q.count, len(q.buf))])
	if n < q.count {
		copy(buf[n:], q.buf[:q.count-n])
	}
	q.buf = buf
	q.head = 0
	q.resizes++
}

// QueueStats describes the relay's publish queue.
type QueueStats struct {
	Depth    int   `json:"depth"`
	Capacity int   `json:"capacity"`
	Enqueued int64 `json:"enqueued"`
	Dequeued int64 `json:"dequeued"`
	Dropped  int64 `json:"dropped"`
	Resizes  int   `json:"resizes"`
}
