// Package locator implements the service locator (spec.md §4.10): a
// type-indexed store of shared handles. Engine startup registers services
// such as the logger, the resource manager, and the command scheduler;
// subsystems pull what they need during configure, invoked once between
// factory call and start (spec.md §4.10, §9).
//
// Go has no template-instantiation-time type identity the way the source
// language's Register<T>/TryGet<T> does, so this package uses free generic
// functions keyed by reflect.Type rather than locator methods — Go does not
// allow a method to introduce its own type parameter.
//
// © 2025 corert authors. MIT License.
package locator

import (
	"errors"
	"reflect"
	"sync"
)

// ErrServiceMissing is returned by Require when no service of the
// requested type has been registered.
var ErrServiceMissing = errors.New("locator: service missing")

// Locator is a type-indexed registry of shared handles.
type Locator struct {
	mu       sync.RWMutex
	services map[reflect.Type]any
}

// New constructs an empty Locator.
func New() *Locator {
	return &Locator{services: make(map[reflect.Type]any)}
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register associates the static type T with svc, overwriting any prior
// registration for T.
func Register[T any](l *Locator, svc T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services[typeKey[T]()] = svc
}

// TryGet returns the service registered for T, or the zero value and false
// if none was registered.
func TryGet[T any](l *Locator) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.services[typeKey[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Require returns the service registered for T, or ErrServiceMissing if
// none was registered.
func Require[T any](l *Locator) (T, error) {
	v, ok := TryGet[T](l)
	if !ok {
		return v, ErrServiceMissing
	}
	return v, nil
}
