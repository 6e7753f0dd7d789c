// Package backoff provides pluggable pause strategies for the CAS retry
// loops in package olist. Correctness of those loops never depends on the
// chosen strategy; it only affects how a spinning goroutine behaves under
// contention.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Strategy pauses the calling goroutine between successive CAS retries of
// the same logical operation. attempt is the number of retries of this
// operation so far, counting the current one (1 on the first retry).
type Strategy interface {
	Pause(attempt int)
}

// None never pauses; the caller spins purely on CAS. Useful in unit tests
// that want deterministic timing and in low-contention workloads where the
// cost of a syscall-backed sleep exceeds the cost of a retry.
type None struct{}

// Pause is a no-op.
func (None) Pause(int) {}

// Exponential doubles its pause duration on each successive attempt, up to
// Max.
type Exponential struct {
	Start  time.Duration
	Max    time.Duration
	Factor float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewExponential returns an Exponential backoff strategy. factor must be
// greater than 1; start and max bound the pause duration.
func NewExponential(start, max time.Duration, factor float64) *Exponential {
	return &Exponential{
		Start:  start,
		Max:    max,
		Factor: factor,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// DefaultExponential returns an Exponential with conservative defaults: a
// 50us starting pause doubling up to a 500ms ceiling.
func DefaultExponential() *Exponential {
	return NewExponential(50*time.Microsecond, 500*time.Millisecond, 2)
}

// Pause sleeps for Start*Factor^attempt, capped at Max, with a small amount
// of jitter so that threads retrying in lockstep don't resynchronize.
func (e *Exponential) Pause(attempt int) {
	d := float64(e.Start)
	for i := 0; i < attempt; i++ {
		d *= e.Factor
		if d >= float64(e.Max) {
			d = float64(e.Max)
			break
		}
	}
	dur := time.Duration(d)

	e.mu.Lock()
	jitter := e.rng.Int63n(int64(dur)/4 + 1)
	e.mu.Unlock()

	time.Sleep(dur + time.Duration(jitter))
}
