package olist

import (
	"sync/atomic"

	"github.com/dijkstracula/go-olist/lferrors"
)

// Allocator gates node construction in Insert. Go's garbage collector never
// fails an allocation the way a fixed-arena allocator can, so out-of-memory
// is rendered here as a caller-supplied budget: Reserve is called once per
// node the list intends to keep alive, Release once that node is actually
// reclaimed by a scan. The default allocator never fails.
type Allocator interface {
	// Reserve accounts for one more live node. Returns
	// lferrors.NewOutOfMemory if the allocator's budget is exhausted.
	Reserve() error
	// Release gives back the budget held by one node once it is retired
	// and reclaimed.
	Release()
}

type unboundedAllocator struct{}

func (unboundedAllocator) Reserve() error { return nil }
func (unboundedAllocator) Release()       {}

// BoundedAllocator caps the number of live nodes a List may hold at once,
// making an out-of-memory failure mode observable and testable without
// actually exhausting process memory.
type BoundedAllocator struct {
	max  int64
	live atomic.Int64
}

// NewBoundedAllocator returns an Allocator that fails Reserve once max
// nodes are simultaneously live.
func NewBoundedAllocator(max int64) *BoundedAllocator {
	return &BoundedAllocator{max: max}
}

// Reserve implements Allocator.
func (a *BoundedAllocator) Reserve() error {
	if a.live.Add(1) > a.max {
		a.live.Add(-1)
		return lferrors.NewOutOfMemory()
	}
	return nil
}

// Release implements Allocator.
func (a *BoundedAllocator) Release() {
	a.live.Add(-1)
}

// Live reports the number of outstanding reservations.
func (a *BoundedAllocator) Live() int64 {
	return a.live.Load()
}
