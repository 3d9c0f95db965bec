package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlreadyRegistered is returned by Register when a descriptor with the
// same name was already registered.
var ErrAlreadyRegistered = errors.New("registry: descriptor already registered")

// ErrInvalidDescriptor is returned by Register for an empty name or a nil
// factory.
var ErrInvalidDescriptor = errors.New("registry: descriptor requires a non-empty name and non-nil factory")

// ResolutionError reports that one or more requested systems are missing,
// or that a dependency cycle exists, carrying the offending name sets
// (spec.md §7's SystemResolutionFailed).
type ResolutionError struct {
	Missing []string
	Cycle   []string
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString("registry: resolution failed")
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing=%v", e.Missing)
	}
	if len(e.Cycle) > 0 {
		fmt.Fprintf(&b, "; cycle=%v", e.Cycle)
	}
	return b.String()
}
