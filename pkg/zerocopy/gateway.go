// Package zerocopy implements C3: the zero-copy gateway. It attaches
// a System V shared-memory region whose first 4 bytes are a sequence
// counter and whose remainder is the payload area, and exposes a TX
// half that polls the counter and an RX half that writes into it —
// ported from original_source/media-proxy/src/mesh/gateway_zc.cc
// (spec.md §4.3).
package zerocopy

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
	"time"

	"github.com/open-mcm/mesh-dataplane/pkg/mcmctx"
)

// State is the gateway's lifecycle position.
type State int32

const (
	StateNotConfigured State = iota
	StateActive
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateNotConfigured:
		return "not configured"
	case StateActive:
		return "active"
	case StateShutdown:
		return "shutdown"
	default:
		return "?unknown?"
	}
}

// Sentinel errors mirroring gateway::Result.
var (
	ErrWrongState       = errors.New("zerocopy: wrong state")
	ErrOutOfMemory      = errors.New("zerocopy: out of memory")
	ErrGeneralFailure   = errors.New("zerocopy: general failure")
	ErrContextCancelled = errors.New("zerocopy: context cancelled")
	ErrConfigInvalid    = errors.New("zerocopy: invalid config")
)

// Config identifies the SysV segment to attach.
type Config struct {
	SysvKey     int
	MemRegionSz uint32
}

// seqHeaderSize is the 4-byte little-endian sequence counter at the
// front of the region.
const seqHeaderSize = 4

// base is the shared attach/detach/state-machine plumbing both
// GatewayTx and GatewayRx embed, mirroring the C++ Gateway base class.
type base struct {
	state   atomic.Int32
	cfg     Config
	region  ShmRegion
	payload []byte
}

func (b *base) State() State { return State(b.state.Load()) }

func (b *base) setState(s State) { b.state.Store(int32(s)) }

func (b *base) seq() uint32 {
	return binary.LittleEndian.Uint32(b.region.Bytes()[:seqHeaderSize])
}

func (b *base) bumpSeq() {
	buf := b.region.Bytes()[:seqHeaderSize]
	v := binary.LittleEndian.Uint32(buf) + 1
	binary.LittleEndian.PutUint32(buf, v)
}

func (b *base) attach(cfg Config) error {
	switch b.State() {
	case StateNotConfigured, StateShutdown:
	default:
		return ErrWrongState
	}
	if cfg.MemRegionSz <= seqHeaderSize {
		return ErrConfigInvalid
	}
	b.cfg = cfg

	region, err := AttachFunc(cfg.SysvKey, cfg.MemRegionSz)
	if err != nil {
		b.setState(StateNotConfigured)
		return ErrConfigInvalid
	}
	b.region = region
	b.payload = region.Bytes()[seqHeaderSize:]
	b.setState(StateActive)
	return nil
}

func (b *base) detach() error {
	if b.State() != StateActive {
		return ErrWrongState
	}
	err := b.region.Detach()
	b.setState(StateShutdown)
	if err != nil {
		return ErrGeneralFailure
	}
	return nil
}

// TxCallback is invoked by GatewayTx's poller whenever the sequence
// counter advances, with the live payload slice, its size, and an
// out-param for how much the callback consumed.
type TxCallback func(ctx *mcmctx.Context, payload []byte, sz uint32, sent *uint32) error

// pollInterval matches the original's 5ms sampling cadence.
const pollInterval = 5 * time.Millisecond

// GatewayTx is the TX half: it polls the sequence counter in a
// background goroutine and invokes the registered callback whenever
// the counter advances.
type GatewayTx struct {
	base

	cb     TxCallback
	thCtx  *mcmctx.Context
	done   chan struct{}
}

// SetTxCallback registers the callback invoked on each sequence
// advance. Must be called before Attach to take effect on the first
// poll cycle, but may be changed at any time; the poller reads it
// under no lock since only one TX goroutine ever runs per Gateway.
func (g *GatewayTx) SetTxCallback(cb TxCallback) {
	g.cb = cb
}

// Attach attaches the SysV region and starts the polling goroutine
// bound to a child of ctx.
func (g *GatewayTx) Attach(ctx *mcmctx.Context, cfg Config) error {
	if err := g.attach(cfg); err != nil {
		return err
	}
	g.thCtx = ctx.WithCancel()
	g.done = make(chan struct{})
	go g.pollLoop()
	return nil
}

func (g *GatewayTx) pollLoop() {
	defer close(g.done)
	prev := g.seq()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.thCtx.Done():
			return
		case <-ticker.C:
		}
		cur := g.seq()
		if cur != prev {
			prev = cur
			if g.cb != nil {
				var sent uint32
				_ = g.cb(g.thCtx, g.payload, uint32(len(g.payload)), &sent)
			}
		}
	}
}

// Shutdown cancels the poll context, waits for the poller to exit,
// and detaches the region.
func (g *GatewayTx) Shutdown(ctx *mcmctx.Context) error {
	if g.State() != StateActive {
		return ErrWrongState
	}
	g.thCtx.Cancel()
	<-g.done
	return g.detach()
}

// GatewayRx is the RX half: Transmit writes n bytes into the shared
// payload area and bumps the sequence counter so the peer's TX poller
// observes the update.
type GatewayRx struct {
	base
}

// Attach attaches the SysV region.
func (g *GatewayRx) Attach(ctx *mcmctx.Context, cfg Config) error {
	if err := g.attach(cfg); err != nil {
		return err
	}
	// Reset the sequence counter on (re)attach, matching
	// GatewayRx::on_init zeroing *seq.
	binary.LittleEndian.PutUint32(g.region.Bytes()[:seqHeaderSize], 0)
	return nil
}

// Shutdown detaches the region.
func (g *GatewayRx) Shutdown(ctx *mcmctx.Context) error {
	return g.detach()
}

// Transmit copies n bytes from src into the payload area, then bumps
// the sequence counter, setting *sent = n.
func (g *GatewayRx) Transmit(ctx *mcmctx.Context, src []byte, sent *uint32) error {
	if g.State() != StateActive {
		return ErrWrongState
	}
	n := len(src)
	if n > len(g.payload) {
		return ErrGeneralFailure
	}
	copy(g.payload, src)
	g.bumpSeq()
	*sent = uint32(n)
	return nil
}
