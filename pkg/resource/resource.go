// Package resource implements the resource manager (spec.md §4.12): a
// sharded cache of loaded resources backed by a sharded map of
// per-identifier mutexes, a registration list of loaders consulted in
// order, a worker pool for asynchronous loads, and a pending-tasks counter
// with a condition variable for Wait.
//
// Grounded on the teacher's (Voskan/arena-cache) pkg/cache.go
// getOrLoad/Cache pattern for the synchronous cache-then-lock-then-recheck
// path, and pkg/loader.go's singleflight-based loaderGroup (see group.go)
// for asynchronous de-duplication. The worker pool itself is built on
// pkg/queue, the same MPMC queue used throughout corert, rather than a raw
// channel, so there is exactly one queueing primitive in the module. Worker
// goroutines are launched and joined through golang.org/x/sync/errgroup,
// the same package loaderGroup's sibling singleflight.Group ships in,
// rather than a bare sync.WaitGroup.
//
// © 2025 corert authors. MIT License.
package resource

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pulseforge/corert/pkg/corelog"
	"github.com/pulseforge/corert/pkg/id"
	"github.com/pulseforge/corert/pkg/metrics"
	"github.com/pulseforge/corert/pkg/queue"
	"github.com/pulseforge/corert/pkg/shardmap"
)

// Loader answers whether it can produce the resource addressed by an
// identifier, and produces it. Loaders are consulted in registration order;
// the first whose Supports returns true is used.
type Loader struct {
	Name     string
	Supports func(rid id.ResourceID) bool
	Load     func(ctx context.Context, rid id.ResourceID) (any, error)
}

// Result is the outcome of an asynchronous load. Shared reports that this
// call did not execute the loader itself but received another concurrent
// caller's in-flight result (spec.md §4.12, testable property 4).
type Result struct {
	Value  any
	Err    error
	Shared bool
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithWorkers overrides the worker pool size. Non-positive values fall back
// to runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithLogger attaches a logger used for panic recovery and loader errors.
func WithLogger(l *corelog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithCacheProfile selects the shardmap.Profile backing the resource cache
// and the guard map.
func WithCacheProfile(p shardmap.Profile) Option {
	return func(m *Manager) { m.profile = p }
}

// WithMetrics attaches a metrics sink reporting load/shared-load counts and
// pending/cache-size gauges. The default is metrics.Nop().
func WithMetrics(s metrics.Sink) Option {
	return func(m *Manager) { m.metrics = s }
}

// Manager is the resource manager.
type Manager struct {
	cache  *shardmap.Map[id.ResourceID, any]
	guards *shardmap.Map[id.ResourceID, *sync.Mutex]

	loadersMu sync.RWMutex
	loaders   []Loader

	group loaderGroup

	tasks   *queue.Queue[func()]
	workers int
	eg      *errgroup.Group

	pendingMu sync.Mutex
	pendingCV *sync.Cond
	pending   atomic.Int64

	logger  *corelog.Logger
	metrics metrics.Sink
	profile shardmap.Profile
	closed  atomic.Bool
}

// New constructs a Manager and starts its worker pool.
func New(opts ...Option) *Manager {
	m := &Manager{workers: runtime.NumCPU(), logger: corelog.Nop(), metrics: metrics.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	m.cache = shardmap.New[id.ResourceID, any](m.profile)
	m.guards = shardmap.New[id.ResourceID, *sync.Mutex](m.profile)
	m.tasks = queue.New[func()](queue.WithName[func()]("resource"), queue.WithMetrics[func()](m.metrics))
	m.pendingCV = sync.NewCond(&m.pendingMu)

	m.eg = &errgroup.Group{}
	for i := 0; i < m.workers; i++ {
		m.eg.Go(m.workerLoop)
	}
	return m
}

func (m *Manager) workerLoop() error {
	for {
		task, err := m.tasks.Pop()
		if err != nil {
			return nil
		}
		m.runTask(task)
	}
}

func (m *Manager) runTask(task func()) {
	defer m.finishTask()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("resource: worker task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

func (m *Manager) finishTask() {
	remaining := m.pending.Add(-1)
	m.metrics.SetResourcePending(remaining)
	if remaining == 0 {
		m.pendingMu.Lock()
		m.pendingCV.Broadcast()
		m.pendingMu.Unlock()
	}
}

// submit schedules task onto the pool, incrementing the pending counter
// before the task is queued and decrementing it when the task finishes,
// regardless of outcome (spec.md §4.12).
func (m *Manager) submit(task func()) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.metrics.SetResourcePending(m.pending.Add(1))
	if err := m.tasks.Enqueue(task); err != nil {
		m.finishTask()
		return ErrClosed
	}
	return nil
}

// RegisterLoader appends l to the loader list under the loaders write lock.
func (m *Manager) RegisterLoader(l Loader) error {
	if l.Name == "" || l.Load == nil {
		return ErrInvalidLoader
	}
	m.loadersMu.Lock()
	defer m.loadersMu.Unlock()
	m.loaders = append(m.loaders, l)
	return nil
}

// UnregisterLoader removes the loader with the given name. Returns true iff
// a loader was removed.
func (m *Manager) UnregisterLoader(name string) bool {
	m.loadersMu.Lock()
	defer m.loadersMu.Unlock()
	for i, l := range m.loaders {
		if l.Name == name {
			m.loaders = append(m.loaders[:i], m.loaders[i+1:]...)
			return true
		}
	}
	return false
}

// findLoader returns the first registered loader whose Supports predicate
// accepts rid, consulted in registration order.
func (m *Manager) findLoader(rid id.ResourceID) (Loader, bool) {
	m.loadersMu.RLock()
	defer m.loadersMu.RUnlock()
	for _, l := range m.loaders {
		if l.Supports == nil || l.Supports(rid) {
			return l, true
		}
	}
	return Loader{}, false
}

// guardFor returns the per-identifier mutex for rid, creating it if absent.
func (m *Manager) guardFor(rid id.ResourceID) *sync.Mutex {
	if g, ok := m.guards.Find(rid); ok {
		return g
	}
	g := &sync.Mutex{}
	if m.guards.Insert(rid, g) {
		return g
	}
	existing, _ := m.guards.Find(rid)
	return existing
}

// Load returns the cached handle for rid if present. Otherwise it locks
// rid's per-identifier mutex, rechecks the cache, selects the first loader
// whose Supports(rid) is true, invokes it, caches a successful result, and
// returns it. A miss with no supporting loader returns ErrNoLoader.
func (m *Manager) Load(ctx context.Context, rid id.ResourceID) (any, error) {
	if v, ok := m.cache.Find(rid); ok {
		m.metrics.IncCacheHit("resource")
		return v, nil
	}
	m.metrics.IncCacheMiss("resource")

	guard := m.guardFor(rid)
	guard.Lock()
	defer guard.Unlock()

	if v, ok := m.cache.Find(rid); ok {
		return v, nil
	}

	loader, ok := m.findLoader(rid)
	if !ok {
		return nil, ErrNoLoader
	}

	v, err := loader.Load(ctx, rid)
	if err != nil {
		m.metrics.IncResourceLoadError(loader.Name)
		m.logger.Warn("resource: load failed", zap.String("id", rid.String()), zap.Error(err))
		return nil, err
	}
	m.metrics.IncResourceLoad(loader.Name)
	m.cache.Set(rid, v)
	m.metrics.SetResourceCacheSize(int64(m.cache.Size()))
	return v, nil
}

// LoadOnce bypasses the cache for both lookup and insertion, always
// invoking a fresh loader call.
func (m *Manager) LoadOnce(ctx context.Context, rid id.ResourceID) (any, error) {
	loader, ok := m.findLoader(rid)
	if !ok {
		return nil, ErrNoLoader
	}
	return loader.Load(ctx, rid)
}

// LoadAsync schedules Load(rid) onto the worker pool and returns a
// single-value result channel. Concurrent LoadAsync calls for the same rid
// are coalesced: only one executes Load; the rest observe Shared=true on
// their Result (spec.md §4.12, testable property 4).
func (m *Manager) LoadAsync(ctx context.Context, rid id.ResourceID) <-chan Result {
	out := make(chan Result, 1)
	err := m.submit(func() {
		v, err, shared := m.group.do(ctx, rid, m.Load)
		if shared {
			if loader, ok := m.findLoader(rid); ok {
				m.metrics.IncResourceLoadShared(loader.Name)
			}
		}
		out <- Result{Value: v, Err: err, Shared: shared}
		close(out)
	})
	if err != nil {
		out <- Result{Err: err}
		close(out)
	}
	return out
}

// LoadOnceAsync schedules LoadOnce(rid) onto the worker pool.
func (m *Manager) LoadOnceAsync(ctx context.Context, rid id.ResourceID) <-chan Result {
	out := make(chan Result, 1)
	err := m.submit(func() {
		v, err := m.LoadOnce(ctx, rid)
		out <- Result{Value: v, Err: err}
		close(out)
	})
	if err != nil {
		out <- Result{Err: err}
		close(out)
	}
	return out
}

// LoadAsyncCallback schedules Load(rid) onto the worker pool and invokes cb
// with the result on a pool goroutine, offering the callback-based
// completion form alongside LoadAsync's future (spec.md §4.12).
func (m *Manager) LoadAsyncCallback(ctx context.Context, rid id.ResourceID, cb func(Result)) error {
	return m.submit(func() {
		v, err, shared := m.group.do(ctx, rid, m.Load)
		cb(Result{Value: v, Err: err, Shared: shared})
	})
}

// Preload schedules a Load task per identifier, fire-and-forget.
func (m *Manager) Preload(ctx context.Context, ids []id.ResourceID) {
	for _, rid := range ids {
		rid := rid
		_ = m.submit(func() { _, _ = m.Load(ctx, rid) })
	}
}

// Wait blocks until every scheduled task has finished, i.e. until the
// pending-tasks counter reaches zero.
func (m *Manager) Wait() {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	for m.pending.Load() != 0 {
		m.pendingCV.Wait()
	}
}

// Pending returns the number of scheduled tasks that have not yet finished.
func (m *Manager) Pending() int64 { return m.pending.Load() }

// CacheLen returns the approximate number of cached resource handles.
func (m *Manager) CacheLen() int { return m.cache.Size() }

// Close drains pending tasks, then stops the worker pool. It is safe to
// call more than once; only the first call has effect.
func (m *Manager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.Wait()
	m.tasks.Abort()
	_ = m.eg.Wait()
}
