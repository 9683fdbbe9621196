// Package safe provides panic-containment helpers used to guard listener
// callbacks and per-connection goroutines, so a single misbehaving callback
// can never take down the router.
package safe

import (
	"reflect"

	"chatrouter/logger"
	"chatrouter/tools/errs"
)

// MustNotNil panics if the given value is nil.
// Useful for enforcing required fields during struct initialization.
func MustNotNil(v any, name string) {
	if v == nil || reflect.ValueOf(v).IsNil() {
		panic(name + " must not be nil")
	}
}

// DefaultString returns the dereferenced value of a string pointer,
// or the fallback if the pointer is nil.
func DefaultString(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// DefaultInt returns the dereferenced value of an int pointer,
// or the fallback if the pointer is nil.
func DefaultInt(i *int, fallback int) int {
	if i == nil {
		return fallback
	}
	return *i
}

// Go starts f in a goroutine, recovering and logging any panic instead of
// letting it crash the process. Used for per-connection write pumps.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := errs.ErrPanic(r)
				logger.Errorf("recovered panic in goroutine: %v", err)
			}
		}()
		f()
	}()
}

// Call invokes f synchronously, recovering and logging any panic. Used for
// listener callbacks that must run inline with the routing path, where
// spawning a goroutine would reorder delivery relative to the caller.
func Call(name string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			err := errs.ErrPanic(r)
			logger.Errorf("recovered panic in %s: %v", name, err)
		}
	}()
	f()
}
