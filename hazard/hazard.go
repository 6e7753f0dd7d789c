// Package hazard implements a Hazard-Pointer-style safe memory reclamation
// (SMR) substrate: per-thread protection slots, retired-pointer batches, and
// a scan-and-reclaim algorithm. It lets readers dereference pointers to
// nodes that writers are concurrently unlinking without use-after-free.
//
// The substrate is deliberately container-agnostic: it protects and retires
// addresses, not any particular node type. Package olist builds its ordered
// list on top of it.
package hazard

import (
	"io"
	"log"
	"sync"

	"github.com/dijkstracula/go-olist/lferrors"
)

const (
	defaultSlotsPerThread  = 4
	defaultMaxThreads      = 128
	defaultRetireThreshold = 64
)

// Option configures a Domain at construction time.
type Option func(*Domain)

// WithSlotsPerThread sets K, the number of nested protections a single
// thread's Record may hold at once.
func WithSlotsPerThread(k int) Option {
	return func(d *Domain) { d.slotsPerThread = k }
}

// WithMaxThreads sets P, the registry's capacity.
func WithMaxThreads(p int) Option {
	return func(d *Domain) { d.maxThreads = p }
}

// WithRetireThreshold sets R, the retired-batch length that triggers a scan.
func WithRetireThreshold(r int) Option {
	return func(d *Domain) { d.retireThreshold = r }
}

// WithLogger directs diagnostic output (slot exhaustion, scan activity) to
// l instead of the default discard logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Domain) { d.logger = l }
}

// Domain is the process-wide registry of per-thread records. It is safe for
// concurrent use by any number of goroutines.
type Domain struct {
	slotsPerThread  int
	maxThreads      int
	retireThreshold int
	logger          *log.Logger

	mu       sync.Mutex
	records  []*Record
	overflow []retiredEntry
}

// NewDomain constructs a Domain with the given options applied over
// defaults (K=4, P=128, R=64).
func NewDomain(opts ...Option) *Domain {
	d := &Domain{
		slotsPerThread:  defaultSlotsPerThread,
		maxThreads:      defaultMaxThreads,
		retireThreshold: defaultRetireThreshold,
		logger:          log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SlotsPerThread returns K.
func (d *Domain) SlotsPerThread() int { return d.slotsPerThread }

// Register binds a fresh Record to the calling thread. Handles are scoped:
// the caller must call Release when done; Release returns the record to the
// pool for reuse by a future Register call.
func (d *Domain) Register() (*Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range d.records {
		if !r.active.Load() {
			r.reset()
			r.active.Store(true)
			return r, nil
		}
	}
	if len(d.records) >= d.maxThreads {
		d.logger.Printf("hazard: registry exhausted, %d records already active", d.maxThreads)
		return nil, lferrors.NewOutOfRecords(d.maxThreads)
	}
	r := newRecord(d)
	r.active.Store(true)
	d.records = append(d.records, r)
	return r, nil
}

// Scan runs a global scan across every active record, exactly as a
// threshold-triggered scan would for whichever record crossed R. It is
// primarily useful for tests that want a deterministic reclamation point
// without waiting for a batch to fill.
func (d *Domain) Scan() {
	d.mu.Lock()
	recs := append([]*Record(nil), d.records...)
	d.mu.Unlock()

	protected := d.snapshotProtected()
	for _, r := range recs {
		r.reclaim(protected)
	}
}

// ForceScan drains as much of the domain's retired state as safety allows,
// including records whose owning thread has already exited (the overflow
// list). It is the entry point used at shutdown and by tests asserting zero
// outstanding nodes.
func (d *Domain) ForceScan() {
	d.mu.Lock()
	recs := append([]*Record(nil), d.records...)
	overflow := d.overflow
	d.overflow = nil
	d.mu.Unlock()

	protected := d.snapshotProtected()
	for _, r := range recs {
		r.reclaim(protected)
	}

	var remaining []retiredEntry
	for _, e := range overflow {
		if _, ok := protected[e.addr]; ok {
			remaining = append(remaining, e)
		} else {
			e.deleter()
		}
	}
	if len(remaining) > 0 {
		d.mu.Lock()
		d.overflow = append(d.overflow, remaining...)
		d.mu.Unlock()
	}
}

// Outstanding returns the number of retired entries awaiting reclamation
// across every record and the overflow list. Used by stress tests checking
// the "peak un-reclaimed nodes" bound.
func (d *Domain) Outstanding() int {
	d.mu.Lock()
	recs := append([]*Record(nil), d.records...)
	n := len(d.overflow)
	d.mu.Unlock()

	for _, r := range recs {
		r.retireMu.Lock()
		n += len(r.retired)
		r.retireMu.Unlock()
	}
	return n
}

func (d *Domain) snapshotProtected() map[uintptr]struct{} {
	d.mu.Lock()
	recs := append([]*Record(nil), d.records...)
	d.mu.Unlock()

	set := make(map[uintptr]struct{}, len(recs)*d.slotsPerThread)
	for _, r := range recs {
		for i := range r.slots {
			if p := r.slots[i].Load(); p != 0 {
				set[p] = struct{}{}
			}
		}
	}
	return set
}

func (d *Domain) donate(entries []retiredEntry) {
	if len(entries) == 0 {
		return
	}
	d.mu.Lock()
	d.overflow = append(d.overflow, entries...)
	d.mu.Unlock()
}
