// Command olistbench drives a lock-free olist.List with many concurrent
// goroutines performing random Insert/Erase/Find calls, and reports
// completed-operation throughput plus the peak number of un-reclaimed
// nodes observed, as a smoke/stress harness.
package main

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dijkstracula/go-olist/hazard"
	"github.com/dijkstracula/go-olist/olist"
)

func intCmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Workload describes one stress run: a name, a concurrency level, and a
// write-ratio knob.
type Workload struct {
	Name        string
	Concurrency int
	WriteRatio  float32
	KeyRange    int
	OpsPerGor   int
}

// DefaultWorkloads sweeps a Serial / Low / Medium / High concurrency
// progression over insert/erase/find calls.
var DefaultWorkloads = []Workload{
	{"Serial", 1, 0.10, 1 << 16, 50_000},
	{"Serial, heavy writes", 1, 0.50, 1 << 16, 50_000},
	{"Low concurrency", 2, 0.10, 1 << 16, 50_000},
	{"Medium concurrency", 10, 0.10, 1 << 16, 20_000},
	{"High concurrency", 20, 0.10, 1 << 16, 10_000},
	{"High concurrency, heavy writes", 20, 0.50, 1 << 16, 10_000},
}

// Result summarizes one Workload run.
type Result struct {
	Workload         Workload
	Elapsed          time.Duration
	CompletedOps     int64
	PeakOutstanding  int
	FinalOutstanding int
}

// Run drives one Workload against a fresh list and domain, and returns
// aggregate stats. It never blocks indefinitely: every goroutine performs a
// fixed number of operations and returns.
func Run(w Workload) Result {
	dom := hazard.NewDomain(
		hazard.WithSlotsPerThread(4),
		hazard.WithMaxThreads(w.Concurrency+1),
		hazard.WithRetireThreshold(32),
	)
	l := olist.New[int](intCmp, dom)

	var completed int64
	var peak int64

	stopPeakWatch := make(chan struct{})
	var watchWG sync.WaitGroup
	watchWG.Add(1)
	go func() {
		defer watchWG.Done()
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopPeakWatch:
				return
			case <-ticker.C:
				n := int64(dom.Outstanding())
				for {
					cur := atomic.LoadInt64(&peak)
					if n <= cur || atomic.CompareAndSwapInt64(&peak, cur, n) {
						break
					}
				}
			}
		}
	}()

	start := time.Now()
	var wg sync.WaitGroup
	for g := 0; g < w.Concurrency; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < w.OpsPerGor; i++ {
				k := rng.Intn(w.KeyRange)
				if rng.Float32() < w.WriteRatio {
					if rng.Intn(2) == 0 {
						_, _ = l.Insert(k)
					} else {
						_, _ = l.Erase(k)
					}
				} else {
					l.Find(k)
				}
				atomic.AddInt64(&completed, 1)
			}
		}(int64(g) + 1)
	}
	wg.Wait()
	elapsed := time.Since(start)

	close(stopPeakWatch)
	watchWG.Wait()

	dom.ForceScan()
	final := dom.Outstanding()
	l.Close()

	return Result{
		Workload:         w,
		Elapsed:          elapsed,
		CompletedOps:     atomic.LoadInt64(&completed),
		PeakOutstanding:  int(atomic.LoadInt64(&peak)),
		FinalOutstanding: final,
	}
}
