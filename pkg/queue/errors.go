package queue

import "errors"

// ErrQueueAborted is returned by any blocking or producing operation that
// wakes, or is invoked, after the queue has been aborted (spec.md §7).
var ErrQueueAborted = errors.New("queue: aborted")

// ErrCapacityExceeded is returned by TryPush on a bounded queue that is
// currently full (spec.md §7).
var ErrCapacityExceeded = errors.New("queue: capacity exceeded")
