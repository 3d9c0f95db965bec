// Package queue implements corert's multi-producer/multi-consumer queue
// family: a lock-free, ticket-based unbounded queue (spec.md §4.3) and a
// bounded wrapper that adds capacity backpressure (spec.md §4.4). The
// producer and consumer only ever meet on a lock for the sleep/wake
// condition variables and for resolving a page in the page-index map — the
// hot path (slot acquire/publish/claim/take) is entirely atomic, per
// spec.md §9's note that this must not be downgraded to a plain
// mutex-guarded queue.
//
// © 2025 corert authors. MIT License.
package queue

import (
	"sync"
	"sync/atomic"

	"github.com/pulseforge/corert/internal/backoff"
	"github.com/pulseforge/corert/internal/paging"
	"github.com/pulseforge/corert/pkg/metrics"
)

// Queue is an unbounded MPMC queue of elements of type T.
type Queue[T any] struct {
	cap uint64 // slots per page, from paging.PageCapacity[T]()

	pagesMu sync.RWMutex
	pages   map[uint64]*paging.Page[T]
	pool    paging.Pool[T]

	tail atomic.Uint64
	head atomic.Uint64
	size atomic.Int64

	aborted atomic.Bool

	waiterMu sync.Mutex
	waiterCV *sync.Cond

	name    string
	metrics metrics.Sink
}

// Option configures a Queue at construction.
type Option[T any] func(*Queue[T])

// WithName labels the queue for metrics reporting. The default is "queue".
func WithName[T any](name string) Option[T] {
	return func(q *Queue[T]) {
		if name != "" {
			q.name = name
		}
	}
}

// WithMetrics attaches a sink reporting enqueue/dequeue/abort counts and
// depth, labeled by the queue's name. The default is metrics.Nop().
func WithMetrics[T any](sink metrics.Sink) Option[T] {
	return func(q *Queue[T]) {
		if sink != nil {
			q.metrics = sink
		}
	}
}

// New constructs an empty unbounded queue.
func New[T any](opts ...Option[T]) *Queue[T] {
	q := &Queue[T]{
		cap:     uint64(paging.PageCapacity[T]()),
		pages:   make(map[uint64]*paging.Page[T]),
		name:    "queue",
		metrics: metrics.Nop(),
	}
	q.waiterCV = sync.NewCond(&q.waiterMu)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue[T]) pageIndex(ticket uint64) uint64 { return ticket / q.cap }
func (q *Queue[T]) pageBase(ticket uint64) uint64  { return (ticket / q.cap) * q.cap }

// resolvePage returns the page owning ticket, creating it under the
// page-map write lock if it does not yet exist.
func (q *Queue[T]) resolvePage(ticket uint64) *paging.Page[T] {
	idx := q.pageIndex(ticket)

	q.pagesMu.RLock()
	pg, ok := q.pages[idx]
	q.pagesMu.RUnlock()
	if ok {
		return pg
	}

	q.pagesMu.Lock()
	defer q.pagesMu.Unlock()
	if pg, ok := q.pages[idx]; ok {
		return pg
	}
	pg = q.pool.Get(q.pageBase(ticket))
	q.pages[idx] = pg
	return pg
}

// retirePage removes a fully-consumed page from the index and returns it to
// the pool for reuse. pool.Put must happen under pagesMu, the same lock
// resolvePage holds across pool.Get: paging.Pool's free list is
// unsynchronized, so a Put racing a concurrent Get would corrupt it.
func (q *Queue[T]) retirePage(idx uint64, pg *paging.Page[T]) {
	q.pagesMu.Lock()
	if cur, ok := q.pages[idx]; ok && cur == pg {
		delete(q.pages, idx)
	}
	q.pool.Put(pg)
	q.pagesMu.Unlock()
}

// Enqueue appends value to the queue. It always succeeds unless the queue
// has been aborted.
func (q *Queue[T]) Enqueue(value T) error {
	if q.aborted.Load() {
		return ErrQueueAborted
	}
	ticket := q.tail.Add(1) - 1
	pg := q.resolvePage(ticket)
	slot := pg.Slot(ticket)

	var b backoff.Backoff
	for !slot.AcquireEmpty() {
		if q.aborted.Load() {
			return ErrQueueAborted
		}
		b.Pause()
	}
	slot.Publish(value)
	depth := q.size.Add(1)
	q.metrics.IncQueueEnqueue(q.name)
	q.metrics.SetQueueDepth(q.name, depth)
	q.signalOne()
	return nil
}

// Emplace is Enqueue with a constructor argument list collapsed to a single
// value build step; Go lacks C++-style in-place construction, so it is a
// thin alias kept for API parity with spec.md §4.3.
func (q *Queue[T]) Emplace(build func() T) error {
	return q.Enqueue(build())
}

func (q *Queue[T]) signalOne() {
	q.waiterMu.Lock()
	q.waiterCV.Signal()
	q.waiterMu.Unlock()
}

func (q *Queue[T]) broadcast() {
	q.waiterMu.Lock()
	q.waiterCV.Broadcast()
	q.waiterMu.Unlock()
}

// TryPop attempts to reserve a head ticket and dequeue one element. It
// returns false immediately if the queue is observed empty.
func (q *Queue[T]) TryPop() (value T, ok bool) {
	for {
		cur := q.size.Load()
		if cur <= 0 {
			return value, false
		}
		if q.size.CompareAndSwap(cur, cur-1) {
			break
		}
	}

	ticket := q.head.Add(1) - 1
	idx := q.pageIndex(ticket)
	pg := q.resolvePage(ticket)
	slot := pg.Slot(ticket)

	var b backoff.Backoff
	slot.WaitFull(b.Pause)
	slot.Claim()
	value = slot.Take()

	if pg.IncConsumed() {
		q.retirePage(idx, pg)
	}
	q.metrics.IncQueueDequeue(q.name)
	q.metrics.SetQueueDepth(q.name, q.size.Load())
	return value, true
}

// Pop blocks until an element is available or the queue is aborted, in
// which case it returns ErrQueueAborted.
func (q *Queue[T]) Pop() (value T, err error) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}
		q.waiterMu.Lock()
		for q.size.Load() <= 0 && !q.aborted.Load() {
			q.waiterCV.Wait()
		}
		aborted := q.aborted.Load()
		q.waiterMu.Unlock()
		if aborted && q.size.Load() <= 0 {
			return value, ErrQueueAborted
		}
	}
}

// Abort transitions the queue to the aborted state, idempotently, and wakes
// every blocked waiter so that subsequent and currently-blocked operations
// fail with ErrQueueAborted.
func (q *Queue[T]) Abort() {
	if q.aborted.CompareAndSwap(false, true) {
		q.metrics.IncQueueAborted(q.name)
	}
	q.broadcast()
}

// Aborted reports whether the queue has been aborted.
func (q *Queue[T]) Aborted() bool { return q.aborted.Load() }

// Size returns the number of published elements not yet reserved by a
// consumer: Enqueue increments it after publishing, and TryPop decrements
// it before reserving a head ticket. It is the single atomic counter
// consumers examine before reserving a head ticket.
func (q *Queue[T]) Size() int64 { return q.size.Load() }

// Empty reports whether the queue currently holds no elements.
func (q *Queue[T]) Empty() bool { return q.Size() == 0 }

// Clear drains all live slots, destroying elements; pages that become fully
// consumed while draining go back to the pool, and a partially used page is
// dropped with the page map. Callers must externally quiesce concurrent producers/consumers
// before calling Clear (spec.md §4.3).
func (q *Queue[T]) Clear() {
	for {
		if _, ok := q.TryPop(); !ok {
			break
		}
	}
	q.pagesMu.Lock()
	q.head.Store(0)
	q.tail.Store(0)
	q.size.Store(0)
	q.pages = make(map[uint64]*paging.Page[T])
	q.pagesMu.Unlock()
}
