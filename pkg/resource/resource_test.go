package resource

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pulseforge/corert/pkg/id"
	"github.com/pulseforge/corert/pkg/metrics"
)

func countingLoader(name string, calls *atomic.Int64, sleep time.Duration) Loader {
	return Loader{
		Name:     name,
		Supports: func(id.ResourceID) bool { return true },
		Load: func(ctx context.Context, rid id.ResourceID) (any, error) {
			calls.Add(1)
			if sleep > 0 {
				time.Sleep(sleep)
			}
			return "handle:" + rid.String(), nil
		},
	}
}

func TestLoadCachesAcrossCalls(t *testing.T) {
	m := New(WithWorkers(2))
	defer m.Close()

	var calls atomic.Int64
	_ = m.RegisterLoader(countingLoader("once", &calls, 0))

	rid := id.NewResourceID("mesh", "models/a.glb")
	v1, err := m.Load(context.Background(), rid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v2, err := m.Load(context.Background(), rid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v1 != v2 {
		t.Fatalf("expected cached handle to be reused")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one loader invocation, got %d", calls.Load())
	}
}

func TestLoadNoSupportingLoaderFails(t *testing.T) {
	m := New(WithWorkers(1))
	defer m.Close()

	rid := id.NewResourceID("mesh", "missing.glb")
	if _, err := m.Load(context.Background(), rid); err != ErrNoLoader {
		t.Fatalf("expected ErrNoLoader, got %v", err)
	}
}

func TestLoadOnceBypassesCache(t *testing.T) {
	m := New(WithWorkers(1))
	defer m.Close()

	var calls atomic.Int64
	_ = m.RegisterLoader(countingLoader("fresh", &calls, 0))

	rid := id.NewResourceID("texture", "a.png")
	_, _ = m.LoadOnce(context.Background(), rid)
	_, _ = m.LoadOnce(context.Background(), rid)
	if calls.Load() != 2 {
		t.Fatalf("expected load_once to bypass the cache, got %d calls", calls.Load())
	}
	if m.CacheLen() != 0 {
		t.Fatalf("expected load_once to not populate the cache")
	}
}

// TestAsyncLoadDeduplicatesConcurrentRequests exercises spec.md §8 scenario
// 4: a loader that sleeps before returning, 16 concurrent load_async calls
// for the same identifier issued before any completes, the loader invoked
// exactly once, and all 16 futures resolving to the same non-empty handle.
func TestAsyncLoadDeduplicatesConcurrentRequests(t *testing.T) {
	m := New(WithWorkers(8))
	defer m.Close()

	var calls atomic.Int64
	_ = m.RegisterLoader(countingLoader("slow", &calls, 50*time.Millisecond))

	rid := id.NewResourceID("mesh", "shared.glb")
	const n = 16
	futures := make([]<-chan Result, n)
	for i := 0; i < n; i++ {
		futures[i] = m.LoadAsync(context.Background(), rid)
	}

	m.Wait()

	var sharedCount int
	var first any
	for i, f := range futures {
		res := <-f
		if res.Err != nil {
			t.Fatalf("unexpected error on future %d: %v", i, res.Err)
		}
		if res.Value == nil {
			t.Fatalf("expected non-empty handle on future %d", i)
		}
		if i == 0 {
			first = res.Value
		} else if res.Value != first {
			t.Fatalf("expected all futures to resolve to the same handle")
		}
		if res.Shared {
			sharedCount++
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one loader invocation, got %d", calls.Load())
	}
	if sharedCount == 0 {
		t.Fatalf("expected at least one future to observe Shared=true")
	}
}

func TestLoadOnceAsyncInvokesPerCall(t *testing.T) {
	m := New(WithWorkers(4))
	defer m.Close()

	var calls atomic.Int64
	_ = m.RegisterLoader(countingLoader("fresh", &calls, 0))

	rid := id.NewResourceID("sound", "a.ogg")
	f1 := m.LoadOnceAsync(context.Background(), rid)
	f2 := m.LoadOnceAsync(context.Background(), rid)
	r1 := <-f1
	r2 := <-f2
	if r1.Err != nil || r2.Err != nil {
		t.Fatalf("unexpected errors: %v %v", r1.Err, r2.Err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected two independent loader invocations, got %d", calls.Load())
	}
}

func TestLoadAsyncCallbackInvoked(t *testing.T) {
	m := New(WithWorkers(2))
	defer m.Close()

	var calls atomic.Int64
	_ = m.RegisterLoader(countingLoader("cb", &calls, 0))

	rid := id.NewResourceID("mesh", "cb.glb")
	done := make(chan Result, 1)
	if err := m.LoadAsyncCallback(context.Background(), rid, func(r Result) { done <- r }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := <-done
	if r.Err != nil || r.Value == nil {
		t.Fatalf("unexpected callback result: %+v", r)
	}
}

func TestPreloadSchedulesEveryIdentifier(t *testing.T) {
	m := New(WithWorkers(4))
	defer m.Close()

	var calls atomic.Int64
	_ = m.RegisterLoader(countingLoader("pre", &calls, 0))

	ids := []id.ResourceID{
		id.NewResourceID("mesh", "a.glb"),
		id.NewResourceID("mesh", "b.glb"),
		id.NewResourceID("mesh", "c.glb"),
	}
	m.Preload(context.Background(), ids)
	m.Wait()

	if calls.Load() != int64(len(ids)) {
		t.Fatalf("expected %d loader invocations, got %d", len(ids), calls.Load())
	}
	if m.CacheLen() != len(ids) {
		t.Fatalf("expected all preloaded identifiers cached, got %d", m.CacheLen())
	}
}

func TestRegisterUnregisterLoaderOrder(t *testing.T) {
	m := New(WithWorkers(1))
	defer m.Close()

	var firstCalls, secondCalls atomic.Int64
	first := Loader{
		Name:     "first",
		Supports: func(r id.ResourceID) bool { return r.Type == "mesh" },
		Load: func(ctx context.Context, r id.ResourceID) (any, error) {
			firstCalls.Add(1)
			return "first", nil
		},
	}
	second := Loader{
		Name:     "second",
		Supports: func(id.ResourceID) bool { return true },
		Load: func(ctx context.Context, r id.ResourceID) (any, error) {
			secondCalls.Add(1)
			return "second", nil
		},
	}
	_ = m.RegisterLoader(first)
	_ = m.RegisterLoader(second)

	rid := id.NewResourceID("mesh", "x.glb")
	v, err := m.Load(context.Background(), rid)
	if err != nil || v != "first" {
		t.Fatalf("expected first loader to win, got %v, err=%v", v, err)
	}

	if !m.UnregisterLoader("first") {
		t.Fatalf("expected unregister to find the loader")
	}
	if m.UnregisterLoader("first") {
		t.Fatalf("expected second unregister to report not-found")
	}

	rid2 := id.NewResourceID("mesh", "y.glb")
	v2, err := m.Load(context.Background(), rid2)
	if err != nil || v2 != "second" {
		t.Fatalf("expected remaining loader to serve request, got %v, err=%v", v2, err)
	}
}

func TestRegisterLoaderRejectsInvalid(t *testing.T) {
	m := New(WithWorkers(1))
	defer m.Close()

	if err := m.RegisterLoader(Loader{Name: "", Load: func(context.Context, id.ResourceID) (any, error) { return nil, nil }}); err != ErrInvalidLoader {
		t.Fatalf("expected ErrInvalidLoader for empty name")
	}
	if err := m.RegisterLoader(Loader{Name: "x"}); err != ErrInvalidLoader {
		t.Fatalf("expected ErrInvalidLoader for nil Load")
	}
}

func TestCloseDrainsPendingTasks(t *testing.T) {
	m := New(WithWorkers(2))
	var calls atomic.Int64
	_ = m.RegisterLoader(countingLoader("drain", &calls, 10*time.Millisecond))

	for i := 0; i < 10; i++ {
		rid := id.NewResourceID("mesh", "drain")
		_ = <-m.LoadAsync(context.Background(), rid)
	}
	m.Close()
	if m.Pending() != 0 {
		t.Fatalf("expected zero pending tasks after Close, got %d", m.Pending())
	}
}

func TestMetricsReportLoadsAndPending(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := metrics.NewProm(reg)

	m := New(WithWorkers(2), WithMetrics(sink))
	defer m.Close()

	var calls atomic.Int64
	_ = m.RegisterLoader(countingLoader("tracked", &calls, 0))

	rid := id.NewResourceID("mesh", "tracked.glb")
	if _, err := m.Load(context.Background(), rid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sawLoads bool
	for _, fam := range families {
		if fam.GetName() == "corert_resource_loads_total" {
			sawLoads = true
			for _, metric := range fam.GetMetric() {
				if metric.GetCounter().GetValue() != 1 {
					t.Fatalf("expected one recorded load, got family %v", fam)
				}
			}
		}
	}
	if !sawLoads {
		t.Fatalf("expected corert_resource_loads_total to be registered and populated")
	}
}

func TestSubmitAfterCloseFails(t *testing.T) {
	m := New(WithWorkers(1))
	_ = m.RegisterLoader(countingLoader("x", new(atomic.Int64), 0))
	m.Close()

	rid := id.NewResourceID("mesh", "late.glb")
	res := <-m.LoadAsync(context.Background(), rid)
	if res.Err != ErrClosed {
		t.Fatalf("expected ErrClosed after Close, got %v", res.Err)
	}
}
