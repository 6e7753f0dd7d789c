package olist

import (
	"runtime"

	"github.com/dijkstracula/go-olist/hazard"
)

// protectNext protects whatever node tp currently points to, returning a
// nil node and nil guard (nothing to protect) when the pointer is null.
func protectNext[T any](rec *hazard.Record, tp *taggedPtr[T]) (*node[T], *hazard.Guard, error) {
	n, g, err := hazard.Protect[node[T]](rec, nextLoader[T]{tp: tp})
	if err != nil {
		return nil, nil, err
	}
	if n == nil {
		g.Release()
		return nil, nil, nil
	}
	return n, g, nil
}

// locateResult is the (pred, curr) pair locate returns, plus the guards
// protecting each from reclamation for as long as the caller needs them.
// pred is head's sentinel exactly when predGuard is nil (the sentinel is
// never retired and needs no protection). curr is nil exactly when
// currGuard is nil.
type locateResult[T any] struct {
	pred, curr           *node[T]
	predGuard, currGuard *hazard.Guard
}

func (r locateResult[T]) release() {
	if r.currGuard != nil {
		r.currGuard.Release()
	}
	if r.predGuard != nil {
		r.predGuard.Release()
	}
}

// locate is the heart of the algorithm: it returns the unique adjacent pair
// of unmarked nodes (pred, curr) such that pred.value < key <= curr.value,
// physically unlinking any marked nodes it encounters along the way. Any
// thread that observes a marked node helps splice it out before continuing,
// which is what makes Insert/Erase/Find collectively lock-free.
func (l *List[T]) locate(rec *hazard.Record, key T) (locateResult[T], error) {
	restarts := 0
outer:
	for {
		if restarts > 0 {
			if restarts%yieldAfterRetries == 0 {
				runtime.Gosched()
			}
			l.back.Pause(restarts)
		}

		pred := l.head
		var predGuard *hazard.Guard
		curr, currGuard, err := protectNext(rec, &pred.next)
		if err != nil {
			return locateResult[T]{}, err
		}

		for {
			if curr == nil {
				return locateResult[T]{pred: pred, predGuard: predGuard}, nil
			}

			nextNode, marked := curr.next.load()
			if marked {
				if !pred.next.compareAndSwap(curr, false, nextNode, false) {
					currGuard.Release()
					if predGuard != nil {
						predGuard.Release()
					}
					restarts++
					continue outer
				}
				hazard.Retire(rec, curr, l.disposer(curr))
				currGuard.Release()

				curr, currGuard, err = protectNext(rec, &pred.next)
				if err != nil {
					if predGuard != nil {
						predGuard.Release()
					}
					return locateResult[T]{}, err
				}
				continue
			}

			if l.cmp(curr.value, key) >= 0 {
				return locateResult[T]{pred: pred, curr: curr, predGuard: predGuard, currGuard: currGuard}, nil
			}

			if predGuard != nil {
				predGuard.Release()
			}
			predGuard = currGuard
			pred = curr

			curr, currGuard, err = protectNext(rec, &pred.next)
			if err != nil {
				predGuard.Release()
				return locateResult[T]{}, err
			}
		}
	}
}
