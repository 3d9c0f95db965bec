package resource

import "errors"

// ErrNoLoader is returned when no registered loader supports a requested
// identifier.
var ErrNoLoader = errors.New("resource: no loader supports identifier")

// ErrClosed is returned by scheduling operations once the manager has been
// closed.
var ErrClosed = errors.New("resource: manager closed")

// ErrInvalidLoader is returned by RegisterLoader for a loader with an empty
// Name or a nil Load function.
var ErrInvalidLoader = errors.New("resource: loader requires a non-empty name and non-nil Load")
