// Package dpatomic implements C2: DataplaneAtomicUint64, a two-slot
// lock-free register giving a single hotpath reader bounded-wait
// consistency with many cooperating writers. It is a direct port of
// original_source/media-proxy/src/mesh/sync.cc's current/next/mutex
// design (spec.md §4.2, §9).
package dpatomic

import (
	"sync"
	"sync/atomic"
	"time"
)

// pollInterval is the cadence at which store_wait polls for the
// hotpath's commit, matching the original's 5ms poll.
const pollInterval = 5 * time.Millisecond

// Uint64 is the sequence-token primitive. The zero value is ready to
// use, starting at 0.
type Uint64 struct {
	current atomic.Uint64
	next    atomic.Uint64
	mx      sync.Mutex
}

// Load returns the current value. Safe for any number of concurrent
// readers ("regular access").
func (d *Uint64) Load() uint64 {
	return d.current.Load()
}

// StoreWait publishes v and blocks until the hotpath thread has
// observed it via LoadNext, or timeout elapses — whichever comes
// first. After StoreWait returns, Load() == v is guaranteed
// regardless of hotpath liveness: on timeout it force-commits v into
// current directly. Safe for any number of concurrent writers; they
// serialize on an internal mutex.
func (d *Uint64) StoreWait(v uint64, timeout time.Duration) {
	d.mx.Lock()
	defer d.mx.Unlock()

	d.next.Store(v)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		<-ticker.C

		if time.Now().After(deadline) {
			d.current.Store(v)
			return
		}
		if d.current.Load() == v {
			return
		}
	}
}

// LoadNext is the hotpath's sole entry point: it reads next and
// commits it into current, returning the committed value. It must be
// called from exactly one thread, twice per hotpath iteration (once
// before the user's critical section, once after), so a concurrent
// StoreWait observes a commit bracketing that section. Multiple
// concurrent callers of LoadNext are a contract violation and produce
// undefined results — this is enforced by convention, not by the type
// (the original C++ class has the same constraint).
func (d *Uint64) LoadNext() uint64 {
	v := d.next.Load()
	d.current.Store(v)
	return v
}
