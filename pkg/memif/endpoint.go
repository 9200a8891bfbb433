package memif

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/internal/mlog"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmctx"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

// DefaultBufferNum is the stand-in for the original MEMIF_BUFFER_NUM
// constant: the size of the per-connection working-buffer ring.
const DefaultBufferNum = 256

// pollInterval is the bounded-wait polling granularity for dequeue
// with a positive timeout, per spec.md §4.4.
const pollInterval = 10 * time.Millisecond

// drainDequeueTimeout bounds each dequeue attempt the receiver's
// shutdown drain helper makes while flushing the ring.
const drainDequeueTimeout = 500 * time.Millisecond

// senderDrainDelay is how long Shutdown waits before closing the
// transport on the sender side, giving an in-flight burst time to
// leave the ring.
const senderDrainDelay = 50 * time.Millisecond

// Endpoint is C4: a single-producer/single-consumer ring of
// frameSize-byte working buffers over a Transport. One Endpoint serves
// one queue of one connection; ConnectionKind fixes which half of the
// dequeue/enqueue contract applies.
type Endpoint struct {
	kind      mcmtype.ConnectionKind
	transport Transport
	bufParts  mcmtype.BufferPartitions
	frameSize int

	// free is the sender-side working-buffer allocator: the pool of
	// buffers not currently held by the application. Dequeue pops from
	// it, Enqueue (after Send) returns the buffer to it. Receiver
	// endpoints leave it nil; their buffers come from the transport.
	free chan []byte

	log zerolog.Logger
}

// NewSenderEndpoint constructs the sender half of C4: bufNum
// pre-allocated frameSize buffers sit in the free pool, ready for
// Dequeue.
func NewSenderEndpoint(transport Transport, parts mcmtype.BufferPartitions, bufNum int) *Endpoint {
	if bufNum <= 0 {
		bufNum = DefaultBufferNum
	}
	frameSize := int(parts.TotalSize())
	free := make(chan []byte, bufNum)
	for i := 0; i < bufNum; i++ {
		free <- make([]byte, frameSize)
	}
	return &Endpoint{
		kind:      mcmtype.Sender,
		transport: transport,
		bufParts:  parts,
		frameSize: frameSize,
		free:      free,
		log:       mlog.Component("memif.sender"),
	}
}

// NewReceiverEndpoint constructs the receiver half of C4. Buffers
// arrive from the transport; there is no local free pool to allocate
// from.
func NewReceiverEndpoint(transport Transport, parts mcmtype.BufferPartitions) *Endpoint {
	return &Endpoint{
		kind:      mcmtype.Receiver,
		transport: transport,
		bufParts:  parts,
		frameSize: int(parts.TotalSize()),
		log:       mlog.Component("memif.receiver"),
	}
}

// Dequeue implements spec.md §4.4's dequeue contract for both
// endpoint kinds: timeoutMs == 0 tries once without blocking,
// timeoutMs < 0 blocks indefinitely, timeoutMs > 0 polls in
// pollInterval increments up to the deadline. On the sender side it
// allocates a working buffer from the free pool; on the receiver side
// it retrieves the next buffer the transport has delivered.
func (e *Endpoint) Dequeue(ctx *mcmctx.Context, timeoutMs int) ([]byte, error) {
	if e.kind == mcmtype.Sender {
		return e.dequeueFrom(ctx, timeoutMs, func() ([]byte, bool) {
			select {
			case buf := <-e.free:
				return buf, true
			default:
				return nil, false
			}
		})
	}
	return e.dequeueReceive(ctx, timeoutMs)
}

func (e *Endpoint) dequeueReceive(ctx *mcmctx.Context, timeoutMs int) ([]byte, error) {
	buf, err := e.dequeueFrom(ctx, timeoutMs, e.transport.Recv)
	if err != nil {
		return nil, err
	}
	if len(buf) != e.frameSize {
		_ = e.transport.Refill(buf)
		return nil, mcmerr.New(mcmerr.BadBufLen, "memif.Dequeue", nil)
	}
	return buf, nil
}

// dequeueFrom is the shared bounded-wait loop: try returns a buffer
// immediately available, or ok=false if none is. It is polled on
// pollInterval ticks, waking early whenever the transport signals an
// event, until timeoutMs elapses (or never, if negative).
func (e *Endpoint) dequeueFrom(ctx *mcmctx.Context, timeoutMs int, try func() ([]byte, bool)) ([]byte, error) {
	if buf, ok := try(); ok {
		return buf, nil
	}
	if timeoutMs == 0 {
		return nil, mcmerr.New(mcmerr.Timeout, "memif.Dequeue", nil)
	}

	var deadline <-chan time.Time
	if timeoutMs > 0 {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	events := e.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, mcmerr.New(mcmerr.Timeout, "memif.Dequeue", nil)
		case <-events:
			if buf, ok := try(); ok {
				return buf, nil
			}
		case <-ticker.C:
			if buf, ok := try(); ok {
				return buf, nil
			}
		}
	}
}

// Enqueue implements spec.md §4.4's enqueue contract. The caller has
// already written the sysdata header and payload into buf (C7's
// responsibility). On the sender side this transmits buf as a burst
// and recycles it back to the free pool; on the receiver side this
// refills the ring with a processed buffer, one slot per call.
func (e *Endpoint) Enqueue(ctx *mcmctx.Context, buf []byte) error {
	if len(buf) != e.frameSize {
		return mcmerr.New(mcmerr.BadBufLen, "memif.Enqueue", nil)
	}
	if e.kind == mcmtype.Sender {
		if err := e.transport.Send(buf); err != nil {
			return mcmerr.New(mcmerr.ConnFailed, "memif.Enqueue", err)
		}
		select {
		case e.free <- buf:
		default:
			e.log.Warn().Msg("free pool full on recycle, dropping buffer")
		}
		return nil
	}
	if err := e.transport.Refill(buf); err != nil {
		return mcmerr.New(mcmerr.ConnFailed, "memif.Enqueue", err)
	}
	return nil
}

// Shutdown performs the kind-specific graceful drain from spec.md
// §4.4 before closing the transport: the sender sleeps briefly to let
// an in-flight burst clear the ring; the receiver runs a drain loop on
// a helper goroutine that dequeues (waiting up to drainDequeueTimeout
// each time) and immediately re-enqueues until a dequeue or refill
// fails, and waits for that loop to finish.
func (e *Endpoint) Shutdown(ctx *mcmctx.Context) error {
	if e.kind == mcmtype.Sender {
		mcmctx.Sleep(ctx, senderDrainDelay)
		return e.transport.Close()
	}

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		for {
			buf, err := e.dequeueReceive(ctx, int(drainDequeueTimeout/time.Millisecond))
			if err != nil {
				return
			}
			if err := e.transport.Refill(buf); err != nil {
				return
			}
		}
	}()
	<-drainDone
	return e.transport.Close()
}
