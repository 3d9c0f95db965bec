// Package subsystem implements the threaded subsystem runtime (spec.md
// §4.8): a reusable worker that ticks a user-supplied callback at a target
// frame rate. Lifecycle states are Registered → Started → Stopping →
// Stopped; on_start and on_stop each run exactly once per start/stop cycle,
// and on_tick only runs between them.
//
// © 2025 corert authors. MIT License.
package subsystem

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pulseforge/corert/pkg/corelog"
	"github.com/pulseforge/corert/pkg/metrics"
)

const minFrameRate = 60.0

// Hooks are the user-defined lifecycle callbacks a Subsystem drives.
type Hooks struct {
	OnStart func()
	OnTick  func()
	OnStop  func()
}

func (h Hooks) onStart() {
	if h.OnStart != nil {
		h.OnStart()
	}
}
func (h Hooks) onTick() {
	if h.OnTick != nil {
		h.OnTick()
	}
}
func (h Hooks) onStop() {
	if h.OnStop != nil {
		h.OnStop()
	}
}

// Option configures a Subsystem at construction.
type Option func(*Subsystem)

// WithLogger attaches a logger for lifecycle tracing.
func WithLogger(l *corelog.Logger) Option {
	return func(s *Subsystem) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics attaches a sink reporting on_tick count and wall time, labeled
// by the subsystem's name. The default is metrics.Nop().
func WithMetrics(sink metrics.Sink) Option {
	return func(s *Subsystem) {
		if sink != nil {
			s.metrics = sink
		}
	}
}

// Subsystem is a named threaded worker with a start/tick/stop lifecycle.
// Its name doubles as its service-locator and mailbox key (spec.md §3).
type Subsystem struct {
	name     string
	interval time.Duration
	hooks    Hooks
	logger   *corelog.Logger
	metrics  metrics.Sink

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs a Subsystem named name, ticking hooks.OnTick at
// targetFPS. An invalid (<=0) targetFPS is replaced with a 60 FPS floor,
// per spec.md §4.8.
func New(name string, targetFPS float64, hooks Hooks, opts ...Option) *Subsystem {
	if targetFPS <= 0 {
		targetFPS = minFrameRate
	}
	s := &Subsystem{
		name:     name,
		interval: time.Duration(float64(time.Second) / targetFPS),
		hooks:    hooks,
		logger:   corelog.Nop(),
		metrics:  metrics.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the subsystem's stable name.
func (s *Subsystem) Name() string { return s.name }

// Running reports whether the subsystem is currently between Start and
// Stop.
func (s *Subsystem) Running() bool { return s.running.Load() }

// Start invokes on_start on the caller's goroutine, then spawns the worker
// goroutine. Calling Start on an already-started subsystem is a tolerant
// no-op (spec.md §7's AlreadyStarted policy), logged rather than returned
// as a hard error.
func (s *Subsystem) Start() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("subsystem already started", zap.String("subsystem", s.name))
		return
	}
	s.stopCh = make(chan struct{})
	s.hooks.onStart()
	s.wg.Add(1)
	go s.loop()
}

func (s *Subsystem) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		start := time.Now()
		s.hooks.onTick()
		elapsed := time.Since(start)
		s.metrics.IncSubsystemTick(s.name)
		s.metrics.ObserveSubsystemTickSeconds(s.name, elapsed.Seconds())

		remaining := s.interval - elapsed
		if remaining <= 0 {
			continue
		}
		timer := time.NewTimer(remaining)
		select {
		case <-timer.C:
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// Stop requests the worker goroutine to exit, joins it, then invokes
// on_stop on the caller's goroutine. Calling Stop on an already-stopped
// subsystem is a tolerant no-op (spec.md §7's NotRunning policy).
func (s *Subsystem) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		s.logger.Warn("subsystem not running", zap.String("subsystem", s.name))
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	s.hooks.onStop()
}

// Tick forwards directly to on_tick, bypassing the worker goroutine and
// sleep accounting entirely. It exists so synchronous drivers (tests) can
// step the loop manually without starting a goroutine.
func (s *Subsystem) Tick() {
	start := time.Now()
	s.hooks.onTick()
	s.metrics.IncSubsystemTick(s.name)
	s.metrics.ObserveSubsystemTickSeconds(s.name, time.Since(start).Seconds())
}
