package olist

import "github.com/dijkstracula/go-olist/hazard"

// Iterator gives a weakly consistent forward traversal of a List: it never
// omits an element that was present throughout the iteration and never
// deleted, never duplicates an element, but may or may not observe
// elements concurrently inserted or deleted during the traversal. Between
// calls to Next an Iterator holds one hazard guard; while advancing it
// briefly holds two, because the current node's guard is released only
// after its successor is protected, so it needs K >= 2.
//
// Must be closed with Close when done, on every exit path.
type Iterator[T any] struct {
	list    *List[T]
	rec     *hazard.Record
	curr    *node[T]
	guard   *hazard.Guard
	started bool
	err     error
}

// Iterator returns a new Iterator positioned before the list's first
// element.
func (l *List[T]) Iterator() (*Iterator[T], error) {
	rec, err := l.acquireRecord()
	if err != nil {
		return nil, err
	}
	curr, guard, err := protectNext(rec, &l.head.next)
	if err != nil {
		l.releaseRecord(rec)
		return nil, err
	}
	return &Iterator[T]{list: l, rec: rec, curr: curr, guard: guard}, nil
}

// Next advances the iterator to the next live (unmarked) node, skipping
// over any logically deleted nodes without unlinking them; physical
// unlinking is locate's job, not the iterator's. It returns false at the
// end of the list or if a protection-slot error occurred (see Err).
func (it *Iterator[T]) Next() bool {
	if it.started {
		nextNode, nextGuard, err := protectNext(it.rec, &it.curr.next)
		if it.guard != nil {
			it.guard.Release()
		}
		if err != nil {
			it.err = err
			it.curr, it.guard = nil, nil
			return false
		}
		it.curr, it.guard = nextNode, nextGuard
	}
	it.started = true

	for it.curr != nil {
		_, marked := it.curr.next.load()
		if !marked {
			return true
		}
		nextNode, nextGuard, err := protectNext(it.rec, &it.curr.next)
		if it.guard != nil {
			it.guard.Release()
		}
		if err != nil {
			it.err = err
			it.curr, it.guard = nil, nil
			return false
		}
		it.curr, it.guard = nextNode, nextGuard
	}
	return false
}

// Value returns the value at the iterator's current position. Only valid
// after a call to Next that returned true.
func (it *Iterator[T]) Value() T {
	return it.curr.value
}

// Err returns the first error encountered while advancing the iterator, if
// any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Close releases the iterator's protection slot and returns its hazard
// record to the list's pool. Safe to call more than once.
func (it *Iterator[T]) Close() {
	if it.guard != nil {
		it.guard.Release()
		it.guard = nil
	}
	if it.rec != nil {
		it.list.releaseRecord(it.rec)
		it.rec = nil
	}
}
