package memif

import (
	"errors"
	"sync"

	"github.com/open-mcm/mesh-dataplane/internal/mlog"
)

// ErrTransportClosed is returned by the sender transport's Send after
// Close. Refill and Recv do not check for Close.
var ErrTransportClosed = errors.New("memif: transport closed")

// LoopbackRing is a pair of in-process Transports standing in for one
// memif socket's two attachments, used by tests and same-host
// sender/receiver pairing where no real memif interconnect is present.
// It mirrors the capacity semantics of a real ring: a burst sent while
// the peer's queue is full is dropped, not blocked — matching
// Transport.Send's documented non-blocking-flow-control contract.
type LoopbackRing struct {
	queue chan []byte
	free  chan struct{}

	mu     sync.Mutex
	closed bool

	senderEvents   chan struct{}
	receiverEvents chan struct{}
}

// NewLoopbackRing builds a ring holding up to bufNum undelivered
// buffers.
func NewLoopbackRing(bufNum int) *LoopbackRing {
	if bufNum <= 0 {
		bufNum = DefaultBufferNum
	}
	return &LoopbackRing{
		queue:          make(chan []byte, bufNum),
		free:           make(chan struct{}, bufNum),
		senderEvents:   make(chan struct{}, 1),
		receiverEvents: make(chan struct{}, 1),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Sender returns the Transport the sending Endpoint should attach to.
func (r *LoopbackRing) Sender() Transport { return &loopbackSender{r: r} }

// Receiver returns the Transport the receiving Endpoint should attach
// to.
func (r *LoopbackRing) Receiver() Transport { return &loopbackReceiver{r: r} }

type loopbackSender struct{ r *LoopbackRing }

func (t *loopbackSender) Send(buf []byte) error {
	r := t.r
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrTransportClosed
	}
	r.mu.Unlock()

	cp := append([]byte(nil), buf...)
	select {
	case r.queue <- cp:
		notify(r.receiverEvents)
	default:
		mlog.Component("memif.loopback").Warn().Msg("ring full, dropping burst")
	}
	return nil
}

func (t *loopbackSender) Refill(buf []byte) error { return nil }
func (t *loopbackSender) Recv() ([]byte, bool)    { return nil, false }
func (t *loopbackSender) Events() <-chan struct{} { return t.r.senderEvents }
func (t *loopbackSender) Close() error            { return t.r.close() }

type loopbackReceiver struct{ r *LoopbackRing }

func (t *loopbackReceiver) Send(buf []byte) error { return nil }

func (t *loopbackReceiver) Refill(buf []byte) error {
	r := t.r
	select {
	case r.free <- struct{}{}:
		notify(r.senderEvents)
	default:
	}
	return nil
}

func (t *loopbackReceiver) Recv() ([]byte, bool) {
	select {
	case buf := <-t.r.queue:
		return buf, true
	default:
		return nil, false
	}
}

func (t *loopbackReceiver) Events() <-chan struct{} { return t.r.receiverEvents }
func (t *loopbackReceiver) Close() error            { return t.r.close() }

func (r *LoopbackRing) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return nil
}
