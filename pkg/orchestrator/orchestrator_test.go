package orchestrator

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAddWorkerTicksAndStops(t *testing.T) {
	o := New()
	var ticks atomic.Int32
	h, err := o.AddWorker("w1", 10*time.Millisecond, func(ctrl *Control) {
		ticks.Add(1)
	})
	if err != nil {
		t.Fatalf("AddWorker: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	h.Stop()

	n := ticks.Load()
	if n < 5 {
		t.Fatalf("expected several ticks, got %d", n)
	}
	// Ensure it actually stopped: no growth after a further wait.
	time.Sleep(30 * time.Millisecond)
	if ticks.Load() != n {
		t.Fatalf("expected ticks to stop after Stop(), got %d -> %d", n, ticks.Load())
	}
}

func TestInvalidWorkerArgsRejected(t *testing.T) {
	o := New()
	if _, err := o.AddWorker("", time.Second, func(*Control) {}); err != ErrInvalidWorker {
		t.Fatalf("expected ErrInvalidWorker for empty name")
	}
	if _, err := o.AddWorker("x", 0, func(*Control) {}); err != ErrInvalidWorker {
		t.Fatalf("expected ErrInvalidWorker for zero interval")
	}
	if _, err := o.AddWorker("x", time.Second, nil); err != ErrInvalidWorker {
		t.Fatalf("expected ErrInvalidWorker for nil task")
	}
}

func TestPanicRecordedAndStopsWorker(t *testing.T) {
	o := New()
	var ticks atomic.Int32
	h, _ := o.AddWorker("panicky", 5*time.Millisecond, func(ctrl *Control) {
		ticks.Add(1)
		panic("boom")
	})
	time.Sleep(50 * time.Millisecond)
	h.Stop()

	if ticks.Load() != 1 {
		t.Fatalf("expected exactly one invocation before the panic halted the worker, got %d", ticks.Load())
	}
	if h.LastError() == nil {
		t.Fatalf("expected LastError to be recorded")
	}
}

func TestStopAllJoinsEveryWorker(t *testing.T) {
	o := New()
	var count atomic.Int32
	for i := 0; i < 5; i++ {
		_, err := o.AddWorker("w", 5*time.Millisecond, func(ctrl *Control) {
			count.Add(1)
		})
		if err != nil {
			t.Fatalf("AddWorker: %v", err)
		}
	}
	time.Sleep(30 * time.Millisecond)
	o.StopAll()
	after := count.Load()
	time.Sleep(30 * time.Millisecond)
	if count.Load() != after {
		t.Fatalf("expected all workers stopped, count grew from %d to %d", after, count.Load())
	}
	o.StopAll() // idempotent
}

func TestControlSleepForInterruptedByStop(t *testing.T) {
	o := New()
	done := make(chan bool, 1)
	h, _ := o.AddWorker("sleeper", time.Hour, func(ctrl *Control) {
		done <- ctrl.SleepFor(time.Hour)
	})
	time.Sleep(10 * time.Millisecond)
	h.Stop()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected SleepFor to report interruption (false)")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for interrupted sleep")
	}
}
