package datacache

import (
	"sync"
	"testing"
	"time"

	"github.com/pulseforge/corert/pkg/id"
	"github.com/pulseforge/corert/pkg/shardmap"
)

func TestInsertGetErase(t *testing.T) {
	c := New[int](shardmap.Balanced, shardmap.WithCPUHint(4))
	k := id.Identifier(1)
	if !c.Insert(k, 10) {
		t.Fatalf("expected first insert to succeed")
	}
	if c.Insert(k, 20) {
		t.Fatalf("expected duplicate insert to fail")
	}
	v, ok := c.Get(k)
	if !ok || v != 10 {
		t.Fatalf("expected 10, got %d ok=%v", v, ok)
	}
	if !c.Erase(k) {
		t.Fatalf("expected erase to report removal")
	}
	if _, ok := c.Get(k); ok {
		t.Fatalf("expected value gone after erase")
	}
	if err := c.Modify(k, func(v *int) { *v++ }); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after erase, got %v", err)
	}
}

func TestModifyMutatesInPlace(t *testing.T) {
	c := New[int](shardmap.Balanced, shardmap.WithCPUHint(4))
	k := id.Identifier(1)
	c.Insert(k, 0)
	for i := 0; i < 100; i++ {
		if err := c.Modify(k, func(v *int) { *v++ }); err != nil {
			t.Fatalf("modify: %v", err)
		}
	}
	v, _ := c.Get(k)
	if v != 100 {
		t.Fatalf("expected 100, got %d", v)
	}
}

func TestModifySerializesConcurrentWriters(t *testing.T) {
	c := New[int](shardmap.Balanced, shardmap.WithCPUHint(4))
	k := id.Identifier(1)
	c.Insert(k, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = c.Modify(k, func(v *int) { *v++ })
			}
		}()
	}
	wg.Wait()
	v, _ := c.Get(k)
	if v != 1000 {
		t.Fatalf("expected 1000, got %d", v)
	}
}

func TestEraseRemovesBothMaps(t *testing.T) {
	c := New[int](shardmap.Balanced, shardmap.WithCPUHint(4))
	k := id.Identifier(5)
	c.Insert(k, 1)
	c.Erase(k)
	if _, ok := c.guards.Find(k); ok {
		t.Fatalf("expected guard entry removed")
	}
	if _, ok := c.values.Find(k); ok {
		t.Fatalf("expected value entry removed")
	}
}

func TestSafeLoopForEachAppliesAllDespiteContention(t *testing.T) {
	c := New[int](shardmap.Balanced, shardmap.WithCPUHint(4))
	var ids []id.Identifier
	for i := 1; i <= 20; i++ {
		k := id.Identifier(i)
		c.Insert(k, 0)
		ids = append(ids, k)
	}

	// Hold one id's guard briefly from another goroutine to force at least
	// one retry cycle.
	held := ids[3]
	guard, _ := c.guards.Find(held)
	guard.Lock()
	release := make(chan struct{})
	go func() {
		<-release
		guard.Unlock()
	}()
	go func() {
		time.Sleep(5 * time.Millisecond)
		close(release)
	}()

	c.SafeLoopForEach(ids, func(_ id.Identifier, v *int) { *v += 1 })

	for _, k := range ids {
		v, ok := c.Get(k)
		if !ok || v != 1 {
			t.Fatalf("expected every id incremented exactly once, id=%d v=%d ok=%v", k, v, ok)
		}
	}
}
