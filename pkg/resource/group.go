package resource

// group.go adapts the teacher's (Voskan/arena-cache) pkg/loader.go
// loaderGroup: a generic wrapper around x/sync/singleflight that collapses
// concurrent loads of the same key into one execution. Here the key is a
// ResourceID rather than a shard-computed hash, and the payload is the
// any-typed resource handle rather than a cache element, since Load already
// owns caching; loaderGroup here exists purely to keep concurrent
// load_async callers for the same identifier from each re-entering the
// per-identifier mutex and serializing behind it one at a time — they
// instead share one in-flight call.

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/pulseforge/corert/pkg/id"
)

type loaderGroup struct {
	g singleflight.Group
}

// do executes fn exactly once per distinct rid among concurrent callers,
// mirroring singleflight.Group.Do: every concurrent caller for the same rid
// blocks until the one in-flight call resolves and receives its result.
// shared reports whether this caller received another goroutine's result.
func (lg *loaderGroup) do(ctx context.Context, rid id.ResourceID, fn func(context.Context, id.ResourceID) (any, error)) (val any, err error, shared bool) {
	executed := false
	val, err, _ = lg.g.Do(rid.String(), func() (any, error) {
		executed = true
		return fn(ctx, rid)
	})
	return val, err, !executed
}
