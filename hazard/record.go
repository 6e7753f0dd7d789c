package hazard

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/dijkstracula/go-olist/lferrors"
)

// retiredEntry pairs a retired address with its first-class disposer and a
// strong reference (keep) that keeps the Go runtime from collecting the
// node out from under a concurrent reader before the scan confirms no slot
// protects it. Go never frees memory synchronously; "destroy" here means
// "drop the last reference so the garbage collector may reclaim it."
type retiredEntry struct {
	addr    uintptr
	keep    interface{}
	deleter func()
}

// Record is one thread's hazard-pointer bookkeeping: its protection slots
// and its retired batch. Obtained via Domain.Register, released via
// Release. A Record must not be shared between goroutines.
type Record struct {
	dom *Domain

	// slots holds the addresses this thread currently protects. Each cell
	// is laid out with its own cache line to avoid false sharing, since
	// every concurrent scan touches every thread's slots.
	slots []paddedSlot

	used   atomic.Uint64 // bitmask of acquired slot indices
	active atomic.Bool

	retireMu sync.Mutex
	retired  []retiredEntry
}

type paddedSlot struct {
	atomic.Uintptr
	_ [56]byte
}

func newRecord(d *Domain) *Record {
	return &Record{
		dom:   d,
		slots: make([]paddedSlot, d.slotsPerThread),
	}
}

func (r *Record) reset() {
	for i := range r.slots {
		r.slots[i].Store(0)
	}
	r.used.Store(0)
	r.retireMu.Lock()
	r.retired = r.retired[:0]
	r.retireMu.Unlock()
}

// Release unregisters the thread's record. Any residual retired entries are
// donated to the domain's overflow list. Only Domain.ForceScan reclaims
// overflow entries; Domain.Scan and threshold-triggered scans do not.
func (r *Record) Release() {
	r.retireMu.Lock()
	residual := r.retired
	r.retired = nil
	r.retireMu.Unlock()

	r.dom.donate(residual)

	for i := range r.slots {
		r.slots[i].Store(0)
	}
	r.used.Store(0)
	r.active.Store(false)
}

// Guard represents one acquired protection slot. Dereferencing the
// protected pointer is safe only while the Guard is live. Release is
// idempotent: iterator guards may be deferred and also released early
// without double-freeing the slot.
type Guard struct {
	record   *Record
	slot     int
	released atomic.Bool
}

// Release clears the protection slot, allowing the protected node to be
// reclaimed once no other guard references it.
func (g *Guard) Release() {
	if g == nil || g.released.Swap(true) {
		return
	}
	g.record.releaseSlot(g.slot)
}

func (r *Record) acquireSlot() (int, error) {
	k := len(r.slots)
	for {
		used := r.used.Load()
		idx := -1
		for i := 0; i < k; i++ {
			if used&(uint64(1)<<uint(i)) == 0 {
				idx = i
				break
			}
		}
		if idx == -1 {
			r.dom.logger.Printf("hazard: record exhausted all %d slots", k)
			return -1, lferrors.NewTooManyGuards(k)
		}
		if r.used.CompareAndSwap(used, used|(uint64(1)<<uint(idx))) {
			return idx, nil
		}
	}
}

func (r *Record) releaseSlot(idx int) {
	r.slots[idx].Store(0)
	for {
		used := r.used.Load()
		if r.used.CompareAndSwap(used, used&^(uint64(1)<<uint(idx))) {
			return
		}
	}
}

// atomicPointer is the minimal surface Protect needs from a source word: a
// load that returns the currently published address. olist's nextLoader
// adapter satisfies this over a taggedPtr by returning the pointer
// component with the mark bit stripped.
type atomicPointer[T any] interface {
	Load() *T
}

// Protect implements the hazard-pointer "protection loop": it publishes the
// calling thread's intent to dereference the address currently held by src
// before any concurrent retire can conclude the slot is unused, then
// confirms the publication raced no concurrent update. It acquires the next
// free slot on rec (up to K nested protections); returns TooManyGuards if
// the thread has none free.
func Protect[T any](rec *Record, src atomicPointer[T]) (*T, *Guard, error) {
	idx, err := rec.acquireSlot()
	if err != nil {
		return nil, nil, err
	}
	for {
		p := src.Load()
		rec.slots[idx].Store(uintptr(unsafe.Pointer(p)))
		if q := src.Load(); q == p {
			return p, &Guard{record: rec, slot: idx}, nil
		}
	}
}

// Retire hands ptr to the SMR substrate for deferred destruction. deleter
// runs at most once, only once no protection slot in the domain holds
// ptr's address. If the thread's retired batch crosses the domain's
// configured threshold, a scan runs inline before Retire returns.
func Retire[T any](rec *Record, ptr *T, deleter func()) {
	entry := retiredEntry{
		addr:    uintptr(unsafe.Pointer(ptr)),
		keep:    ptr,
		deleter: deleter,
	}

	rec.retireMu.Lock()
	rec.retired = append(rec.retired, entry)
	shouldScan := len(rec.retired) >= rec.dom.retireThreshold
	rec.retireMu.Unlock()

	if shouldScan {
		protected := rec.dom.snapshotProtected()
		rec.reclaim(protected)
	}
}

func (r *Record) reclaim(protected map[uintptr]struct{}) {
	r.retireMu.Lock()
	defer r.retireMu.Unlock()

	survivors := r.retired[:0]
	reclaimed := 0
	for _, e := range r.retired {
		if _, ok := protected[e.addr]; ok {
			survivors = append(survivors, e)
		} else {
			e.deleter()
			reclaimed++
		}
	}
	r.retired = survivors
	if reclaimed > 0 {
		r.dom.logger.Printf("hazard: reclaimed %d of %d retired entries, %d survive", reclaimed, reclaimed+len(survivors), len(survivors))
	}
}
