// Package memif implements C4: the memif endpoint, a
// single-producer/single-consumer ring of fixed-size buffers exchanged
// over a memif socket (spec.md §4.4). The real memif shared-memory
// packet-I/O library is out of this module's scope per spec.md §1
// ("the underlying memif library... treated as capability
// interfaces"); Transport below is that capability interface,
// following the interface-first pattern periph.io/x/conn/v3 uses for
// hardware buses — a concrete adapter (real memif cgo bindings, or the
// in-process LoopbackRing transports used by tests and same-host
// sender/receiver pairing) satisfies it, and Endpoint never depends on
// anything but the interface.
package memif

// Transport is the capability interface a memif socket attachment
// must provide. One Transport instance serves one queue of one
// connection.
type Transport interface {
	// Send transmits buf as a single-buffer burst (sender side).
	// Does not fail on transport-flow-control per spec.md §4.4; it
	// records the event (e.g. logs) and returns nil.
	Send(buf []byte) error

	// Refill hands an empty buffer back to the ring so the peer may
	// fill it (receiver side replenishment, one slot per call).
	Refill(buf []byte) error

	// Recv returns the next delivered buffer without blocking, or
	// ok=false if none is pending. When a burst delivers several
	// buffers at once they are returned one per call, in order.
	Recv() (buf []byte, ok bool)

	// Events signals (best-effort, non-blocking sends only) whenever
	// a new buffer may be ready for Recv, or a ring slot may have
	// freed for the sender's allocator. It is never closed while the
	// transport is open.
	Events() <-chan struct{}

	// Close releases the socket. Idempotent.
	Close() error
}
