// Package command implements the safe command queue (spec.md §4.5): a thin
// wrapper over an unbounded MPMC queue of type-erased zero-argument
// callables, including bound member-function invocations with captured
// receivers.
//
// © 2025 corert authors. MIT License.
package command

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/pulseforge/corert/pkg/corelog"
	"github.com/pulseforge/corert/pkg/metrics"
	"github.com/pulseforge/corert/pkg/queue"
)

// Callable is a type-erased zero-argument command.
type Callable func()

// Option configures a Queue at construction.
type Option func(*Queue)

// WithLogger attaches a logger used to report (and swallow) panics raised
// by executed commands, per spec.md §7's worker-boundary policy.
func WithLogger(l *corelog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithMetrics attaches a sink reporting enqueue/dequeue/abort counts and
// depth on the underlying queue, labeled "command".
func WithMetrics(sink metrics.Sink) Option {
	return func(q *Queue) {
		if sink != nil {
			q.metricsSink = sink
		}
	}
}

// Queue holds an ordered sequence of commands: FIFO within a single
// producer, interleaved across producers.
type Queue struct {
	inner       *queue.Queue[Callable]
	logger      *corelog.Logger
	metricsSink metrics.Sink
}

// New constructs an empty command queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		logger:      corelog.Nop(),
		metricsSink: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.inner = queue.New[Callable](queue.WithName[Callable]("command"), queue.WithMetrics[Callable](q.metricsSink))
	return q
}

// Enqueue appends a ready-made zero-argument callable.
func (q *Queue) Enqueue(c Callable) error {
	return q.inner.Enqueue(c)
}

// EnqueueCall captures fn and args by value and wraps them into a
// zero-argument closure invoked on execution (spec.md §4.5's
// enqueue(callable, args…) overload). fn must be a function value; args
// must match its parameter list (or satisfy its variadic tail).
func (q *Queue) EnqueueCall(fn any, args ...any) error {
	c, err := bind(fn, args)
	if err != nil {
		return err
	}
	return q.inner.Enqueue(c)
}

// EnqueueMethod packages a bound member-function invocation: receiver is
// captured (by value for a struct, by reference for a pointer — Go's
// existing value/pointer semantics already model the by-value/by-pointer
// receiver variants spec.md §9 calls out; a shared-ownership handle is
// simply an interface value that itself carries a pointer, so it needs no
// special casing, per the same design note).
func (q *Queue) EnqueueMethod(receiver any, methodName string, args ...any) error {
	rv := reflect.ValueOf(receiver)
	m := rv.MethodByName(methodName)
	if !m.IsValid() {
		return fmt.Errorf("command: receiver %T has no method %q", receiver, methodName)
	}
	c, err := bind(m.Interface(), args)
	if err != nil {
		return err
	}
	return q.inner.Enqueue(c)
}

func bind(fn any, args []any) (Callable, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("command: %T is not callable", fn)
	}
	ft := fv.Type()
	if !ft.IsVariadic() && ft.NumIn() != len(args) {
		return nil, fmt.Errorf("command: argument count mismatch: want %d, got %d", ft.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			var want reflect.Type
			if i < ft.NumIn() {
				want = ft.In(i)
			} else {
				want = ft.In(ft.NumIn() - 1).Elem()
			}
			in[i] = reflect.Zero(want)
			continue
		}
		in[i] = reflect.ValueOf(a)
	}
	return func() { fv.Call(in) }, nil
}

// TryExecute pops one command and invokes it, returning true on success. A
// panic raised by the command is caught, logged, and swallowed so that one
// bad command never kills the worker that drains this queue (spec.md §7).
func (q *Queue) TryExecute() (executed bool) {
	c, ok := q.inner.TryPop()
	if !ok {
		return false
	}
	q.runGuarded(c)
	return true
}

func (q *Queue) runGuarded(c Callable) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("command panicked; swallowed", zap.Any("recover", r))
		}
	}()
	c()
}

// Empty returns an approximate snapshot of whether the queue holds any
// commands.
func (q *Queue) Empty() bool { return q.inner.Empty() }

// Abort aborts the underlying queue; any blocking variant callers layer on
// top will observe queue.ErrQueueAborted.
func (q *Queue) Abort() { q.inner.Abort() }
