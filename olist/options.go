package olist

import "github.com/dijkstracula/go-olist/olist/backoff"

// Comparator defines the total order on T that the list is sorted by. It
// returns a negative number if a < b, zero if a == b, and a positive
// number if a > b.
type Comparator[T any] func(a, b T) int

// Option configures a List at construction time.
type Option[T any] func(*List[T])

// WithBackoff installs the pause strategy used between CAS retries. The
// default is backoff.None{}: pure spinning.
func WithBackoff[T any](s backoff.Strategy) Option[T] {
	return func(l *List[T]) { l.back = s }
}

// WithAllocator installs a node-construction budget. The default never
// fails.
func WithAllocator[T any](a Allocator) Option[T] {
	return func(l *List[T]) { l.alloc = a }
}

// WithDisposeHook registers a callback invoked exactly once per node, at
// the moment a scan reclaims it. Tests use this to assert the "no
// double-free" property.
func WithDisposeHook[T any](fn func(T)) Option[T] {
	return func(l *List[T]) { l.onDispose = fn }
}
