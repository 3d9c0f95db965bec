package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNopSinkDiscardsEverything(t *testing.T) {
	s := Nop()
	s.IncQueueEnqueue("mailbox")
	s.IncCacheHit("data")
	s.SetResourcePending(3)
	s.ObserveSubsystemTickSeconds("physics", 0.01)
}

func TestPromSinkRecordsObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewProm(reg)

	s.IncQueueEnqueue("mailbox")
	s.IncQueueEnqueue("mailbox")
	s.IncCacheHit("datacache")
	s.IncCacheMiss("datacache")
	s.SetQueueDepth("mailbox", 7)
	s.IncResourceLoad("mesh-loader")
	s.IncResourceLoadShared("mesh-loader")
	s.SetResourceCacheSize(12)
	s.SetResourcePending(2)

	if got := testutil.ToFloat64(s.(*promSink).queueEnqueue.WithLabelValues("mailbox")); got != 2 {
		t.Fatalf("expected 2 enqueues recorded, got %v", got)
	}
	if got := testutil.ToFloat64(s.(*promSink).cacheHits.WithLabelValues("datacache")); got != 1 {
		t.Fatalf("expected 1 cache hit recorded, got %v", got)
	}
	if got := testutil.ToFloat64(s.(*promSink).queueDepth.WithLabelValues("mailbox")); got != 7 {
		t.Fatalf("expected queue depth 7, got %v", got)
	}
	if got := testutil.ToFloat64(s.(*promSink).resourceCacheSize); got != 12 {
		t.Fatalf("expected resource cache size 12, got %v", got)
	}
	if got := testutil.ToFloat64(s.(*promSink).resourcePending); got != 2 {
		t.Fatalf("expected resource pending 2, got %v", got)
	}
}
