// Package olist implements a lock-free ordered singly linked list with
// logical-deletion marking, on top of package hazard's safe memory
// reclamation substrate. It is the one fully specified container of the
// family: Insert, Erase and Find all linearize, and traversal helps
// physically unlink nodes marked deleted by a peer. List nodes are changed
// only by CAS and never locked; the list's pool of hazard records and
// package hazard's registry and retired batches are guarded by short
// sync.Mutex critical sections, so operations are not strictly lock-free.
package olist

import (
	"sync"
	"sync/atomic"

	"github.com/dijkstracula/go-olist/hazard"
	"github.com/dijkstracula/go-olist/olist/backoff"
)

// yieldAfterRetries bounds how long an operation spins before yielding the
// processor to a peer that might be making progress on the same node.
const yieldAfterRetries = 16

// List is a lock-free sorted set of values of type T, ordered by a
// user-supplied Comparator. It is safe for concurrent use by any number of
// goroutines. Node updates are CAS retry loops; acquiring and returning a
// pooled hazard record takes a mutex.
type List[T any] struct {
	cmp       Comparator[T]
	dom       *hazard.Domain
	back      backoff.Strategy
	alloc     Allocator
	onDispose func(T)

	head *node[T]
	size atomic.Int64

	poolMu sync.Mutex
	free   []*hazard.Record
}

// New constructs an empty List ordered by cmp, registering its hazard
// records against dom. Multiple Lists may share one Domain.
func New[T any](cmp Comparator[T], dom *hazard.Domain, opts ...Option[T]) *List[T] {
	l := &List[T]{
		cmp:   cmp,
		dom:   dom,
		back:  backoff.None{},
		alloc: unboundedAllocator{},
		head:  &node[T]{},
	}
	l.head.next.init(nil)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Len returns an advisory count of the list's elements: inserts increment
// it, successful erases decrement it. The list never freezes the world to
// take a consistent snapshot, so the value can be stale the instant it is
// read under concurrent mutation; treat it as a hint, not a guarantee.
func (l *List[T]) Len() int {
	return int(l.size.Load())
}

// Front returns the lowest live key without removing it, or ok=false if
// the list is currently empty.
func (l *List[T]) Front() (value T, ok bool) {
	rec, err := l.acquireRecord()
	if err != nil {
		return value, false
	}
	defer l.releaseRecord(rec)

	curr, guard, err := protectNext(rec, &l.head.next)
	if err != nil {
		return value, false
	}
	for curr != nil {
		_, marked := curr.next.load()
		if !marked {
			v := curr.value
			guard.Release()
			return v, true
		}
		nextNode, nextGuard, err := protectNext(rec, &curr.next)
		guard.Release()
		if err != nil {
			return value, false
		}
		curr, guard = nextNode, nextGuard
	}
	return value, false
}

func (l *List[T]) acquireRecord() (*hazard.Record, error) {
	l.poolMu.Lock()
	if n := len(l.free); n > 0 {
		r := l.free[n-1]
		l.free = l.free[:n-1]
		l.poolMu.Unlock()
		return r, nil
	}
	l.poolMu.Unlock()
	return l.dom.Register()
}

func (l *List[T]) releaseRecord(rec *hazard.Record) {
	l.poolMu.Lock()
	l.free = append(l.free, rec)
	l.poolMu.Unlock()
}

// Close unregisters every hazard record this list has accumulated in its
// pool and force-reclaims any outstanding retired nodes. Call it when the
// list will no longer be used, to return its threads' slots to the domain.
func (l *List[T]) Close() {
	l.poolMu.Lock()
	recs := l.free
	l.free = nil
	l.poolMu.Unlock()

	for _, r := range recs {
		r.Release()
	}
	l.dom.ForceScan()
}

func (l *List[T]) disposer(n *node[T]) func() {
	return func() {
		v := n.value
		l.alloc.Release()
		if l.onDispose != nil {
			l.onDispose(v)
		}
	}
}
