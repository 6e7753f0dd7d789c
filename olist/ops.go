package olist

import (
	"runtime"

	"github.com/dijkstracula/go-olist/hazard"
)

// Insert places value at its unique sorted position. It returns true if a
// new node was linked, false if a node comparing equal already existed. Of
// two concurrent inserts racing on an equal key, exactly one link CAS
// succeeds; the loser retries, observes the winner at locate, and returns
// false.
func (l *List[T]) Insert(value T) (bool, error) {
	rec, err := l.acquireRecord()
	if err != nil {
		return false, err
	}
	defer l.releaseRecord(rec)

	attempt := 0
	for {
		res, err := l.locate(rec, value)
		if err != nil {
			return false, err
		}

		if res.curr != nil && l.cmp(res.curr.value, value) == 0 {
			res.release()
			return false, nil
		}

		if err := l.alloc.Reserve(); err != nil {
			res.release()
			return false, err
		}

		n := &node[T]{value: value}
		n.next.init(res.curr)

		if res.pred.next.compareAndSwap(res.curr, false, n, false) {
			res.release()
			l.size.Add(1)
			return true, nil
		}

		l.alloc.Release()
		res.release()
		attempt++
		if attempt%yieldAfterRetries == 0 {
			runtime.Gosched()
		}
		l.back.Pause(attempt)
	}
}

// Erase logically and then physically removes the node whose value equals
// key. It returns true iff this call won the mark CAS on a matching node;
// a matching node already marked by a peer makes it retry from locate. The
// return value does not depend on whether this call also performed the
// physical unlink.
func (l *List[T]) Erase(key T) (bool, error) {
	rec, err := l.acquireRecord()
	if err != nil {
		return false, err
	}
	defer l.releaseRecord(rec)

	attempt := 0
	for {
		res, err := l.locate(rec, key)
		if err != nil {
			return false, err
		}

		if res.curr == nil || l.cmp(res.curr.value, key) != 0 {
			res.release()
			return false, nil
		}

		succNext, succMarked := res.curr.next.load()
		if succMarked {
			// Another thread is already deleting this key; retry from
			// locate, which will observe and help finish the splice.
			res.release()
			attempt++
			if attempt%yieldAfterRetries == 0 {
				runtime.Gosched()
			}
			l.back.Pause(attempt)
			continue
		}

		if !res.curr.next.compareAndSwap(succNext, false, succNext, true) {
			res.release()
			attempt++
			l.back.Pause(attempt)
			continue
		}

		victim := res.curr
		unlinked := res.pred.next.compareAndSwap(victim, false, succNext, false)
		res.release()
		l.size.Add(-1)

		if unlinked {
			hazard.Retire(rec, victim, l.disposer(victim))
		}
		// If the unlink CAS lost the race, the key is still logically
		// gone; a later locate call (by any thread) will physically
		// splice victim out and retire it exactly once.
		return true, nil
	}
}

// Find returns true iff a non-deleted node equal to key exists at some
// instant during the call. Its linearization point is the load of
// curr.next that confirms curr is unmarked.
func (l *List[T]) Find(key T) bool {
	rec, err := l.acquireRecord()
	if err != nil {
		return false
	}
	defer l.releaseRecord(rec)

	res, err := l.locate(rec, key)
	if err != nil {
		return false
	}
	defer res.release()

	return res.curr != nil && l.cmp(res.curr.value, key) == 0
}

// ValueGuard holds a value read from the list alive against concurrent
// reclamation until Release is called.
type ValueGuard[T any] struct {
	guard *hazard.Guard
	value T
}

// Value returns the guarded value. Safe to call repeatedly until Release.
func (g *ValueGuard[T]) Value() T { return g.value }

// Release frees the protection slot backing this guard. Safe to call more
// than once.
func (g *ValueGuard[T]) Release() {
	if g != nil && g.guard != nil {
		g.guard.Release()
	}
}

// Get returns a guarded reference to the node equal to key, if any. The
// reference remains safe to read until the returned ValueGuard is
// released.
func (l *List[T]) Get(key T) (*ValueGuard[T], bool) {
	rec, err := l.acquireRecord()
	if err != nil {
		return nil, false
	}

	res, err := l.locate(rec, key)
	if err != nil {
		l.releaseRecord(rec)
		return nil, false
	}

	if res.curr == nil || l.cmp(res.curr.value, key) != 0 {
		res.release()
		l.releaseRecord(rec)
		return nil, false
	}

	if res.predGuard != nil {
		res.predGuard.Release()
	}
	vg := &ValueGuard[T]{guard: res.currGuard, value: res.curr.value}
	l.releaseRecord(rec)
	return vg, true
}
