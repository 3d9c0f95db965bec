// Package orchestrator implements the thread orchestrator (spec.md §4.9):
// a collection of named workers distinct from the subsystem runtime
// (pkg/subsystem), for ad-hoc tooling; the resource manager runs its own
// worker pool and does not use this package. Each
// worker ticks a user task with a control token exposing cooperative
// stop/sleep primitives, and a panic raised by a task is caught, recorded,
// and treated as a stop request rather than killing the orchestrator.
//
// © 2025 corert authors. MIT License.
package orchestrator

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pulseforge/corert/pkg/corelog"
)

// ErrInvalidWorker is returned by AddWorker for an empty name, non-positive
// interval, or nil task.
var ErrInvalidWorker = errors.New("orchestrator: invalid worker arguments")

// Control is the token passed to a worker's Task on every invocation.
type Control struct{ w *worker }

// ShouldStop reports whether a stop has been requested.
func (c *Control) ShouldStop() bool { return c.w.stopRequested.Load() }

// RequestStop asks the orchestrator to stop this worker after the current
// task invocation returns.
func (c *Control) RequestStop() {
	c.w.requestStop()
}

// SleepFor sleeps for d or until a stop is requested, whichever is first.
// It returns false if the sleep was cut short by a stop request.
func (c *Control) SleepFor(d time.Duration) bool {
	return c.w.sleepUntil(time.Now().Add(d))
}

// SleepUntil sleeps until t or until a stop is requested, whichever is
// first, returning false in the latter case.
func (c *Control) SleepUntil(t time.Time) bool {
	return c.w.sleepUntil(t)
}

// Task is a worker's periodic unit of work.
type Task func(ctrl *Control)

type worker struct {
	name     string
	interval time.Duration
	task     Task

	stopRequested atomic.Bool
	mu            sync.Mutex
	cv            *sync.Cond
	wg            sync.WaitGroup
	lastErr       atomic.Pointer[error]
}

func (w *worker) requestStop() {
	w.stopRequested.Store(true)
	w.mu.Lock()
	w.cv.Broadcast()
	w.mu.Unlock()
}

// sleepUntil blocks the worker goroutine until t or a stop request, waking
// periodically via a timer-driven broadcast on the worker's own condition
// variable. Returns false iff interrupted by a stop request.
func (w *worker) sleepUntil(t time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if w.stopRequested.Load() {
			return false
		}
		d := time.Until(t)
		if d <= 0 {
			return true
		}
		timer := time.AfterFunc(d, func() {
			w.mu.Lock()
			w.cv.Broadcast()
			w.mu.Unlock()
		})
		w.cv.Wait()
		timer.Stop()
	}
}

func (w *worker) setLastError(err error) {
	w.lastErr.Store(&err)
}

// LastError returns the most recently recorded panic converted to an
// error, or nil if the worker never panicked.
func (w *worker) LastError() error {
	p := w.lastErr.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Handle is a move-only reference to a running worker. Stopping a Handle
// stops the worker it refers to; Go has no destructor to stop it
// implicitly on garbage collection, so callers must call Stop (or rely on
// Orchestrator.StopAll at shutdown).
type Handle struct {
	w *worker
}

// Name returns the worker's name.
func (h *Handle) Name() string { return h.w.name }

// LastError returns the most recent panic recorded for this worker, if
// any.
func (h *Handle) LastError() error { return h.w.LastError() }

// Stop requests the worker to stop and joins its goroutine. Idempotent.
func (h *Handle) Stop() {
	h.w.requestStop()
	h.w.wg.Wait()
}

// Option configures an Orchestrator at construction.
type Option func(*Orchestrator)

// WithLogger attaches a logger used to report worker panics.
func WithLogger(l *corelog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// Orchestrator manages a collection of named, independently-ticking
// workers.
type Orchestrator struct {
	mu      sync.Mutex
	workers []*worker
	logger  *corelog.Logger
}

// New constructs an empty Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{logger: corelog.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddWorker validates arguments, registers a worker named name ticking
// task every interval, and starts its goroutine immediately.
func (o *Orchestrator) AddWorker(name string, interval time.Duration, task Task) (*Handle, error) {
	if name == "" || interval <= 0 || task == nil {
		return nil, ErrInvalidWorker
	}
	w := &worker{name: name, interval: interval, task: task}
	w.cv = sync.NewCond(&w.mu)

	o.mu.Lock()
	o.workers = append(o.workers, w)
	o.mu.Unlock()

	w.wg.Add(1)
	go o.runWorker(w)
	return &Handle{w: w}, nil
}

func (o *Orchestrator) runWorker(w *worker) {
	defer w.wg.Done()
	ctrl := &Control{w: w}
	next := time.Now()

	for {
		if w.stopRequested.Load() {
			return
		}
		o.invoke(w, ctrl)
		if w.stopRequested.Load() {
			return
		}
		next = next.Add(w.interval)
		if !w.sleepUntil(next) {
			return
		}
	}
}

func (o *Orchestrator) invoke(w *worker, ctrl *Control) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker %q panicked: %v", w.name, r)
			w.setLastError(err)
			w.requestStop()
			o.logger.Error("orchestrator worker panicked", zap.String("worker", w.name), zap.Any("recover", r))
		}
	}()
	w.task(ctrl)
}

// StopAll snapshots the current worker list, requests every worker to
// stop, and joins each one. Idempotent: calling it again after workers
// have already stopped is a no-op.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	snapshot := make([]*worker, len(o.workers))
	copy(snapshot, o.workers)
	o.mu.Unlock()

	for _, w := range snapshot {
		w.requestStop()
	}
	for _, w := range snapshot {
		w.wg.Wait()
	}
}
