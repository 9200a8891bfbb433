package mcmconn

import (
	"time"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/internal/mlog"
	"github.com/open-mcm/mesh-dataplane/internal/proxyrpc"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmctx"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
	"github.com/open-mcm/mesh-dataplane/pkg/zerocopy"
)

// recvChanCapacity bounds how many not-yet-consumed frames a
// ZeroCopyConnection receiver holds before the poll callback starts
// dropping newly delivered frames, mirroring the same drop-on-full
// flow-control choice pkg/memif.LoopbackRing makes.
const recvChanCapacity = 16

// zcPollInterval matches zerocopy.GatewayTx's own 5 ms sampling
// cadence. dequeueRecv does not poll; it waits on the recv channel.
const zcPollInterval = 5 * time.Millisecond

// ZeroCopyConnection is the C3-backed Connection variant: a single
// SysV shared-memory region with a sequence-counter handshake instead
// of a memif ring of discrete buffers (spec.md §4.7). A sender writes
// one frame per GatewayRx.Transmit call; a receiver's GatewayTx poller
// delivers frames into a small channel that GetBuffer drains.
type ZeroCopyConnection struct {
	clientID  string
	connID    string
	kind      mcmtype.ConnectionKind
	cfg       mcmtype.Config
	client    ProxyClient
	defaultMs int

	state mcmtype.ConnectionState

	rx *zerocopy.GatewayRx // sender: writes frames into shm
	tx *zerocopy.GatewayTx // receiver: polls shm for new frames

	recv    chan []byte
	scratch []byte
}

// NewZeroCopyConnection constructs an unestablished zero-copy-backed
// connection.
func NewZeroCopyConnection(clientID, connID string, cfg mcmtype.Config, client ProxyClient, defaultTimeoutMs int) *ZeroCopyConnection {
	return &ZeroCopyConnection{
		clientID:  clientID,
		connID:    connID,
		kind:      cfg.Kind,
		cfg:       cfg,
		client:    client,
		defaultMs: defaultTimeoutMs,
		state:     mcmtype.StateCreated,
	}
}

func (c *ZeroCopyConnection) State() mcmtype.ConnectionState { return c.state }

// Establish asks the proxy to create the connection, attaches the SysV
// region the reply describes (GatewayRx for a sender, GatewayTx with a
// buffering callback for a receiver), then retries ActivateConnection
// until the peer is linked.
func (c *ZeroCopyConnection) Establish(ctx *mcmctx.Context) error {
	kindStr := "sender"
	if c.kind == mcmtype.Receiver {
		kindStr = "receiver"
	}

	reply, err := c.client.CreateConnection(ctx, &proxyrpc.CreateConnectionRequest{
		ClientID:     c.clientID,
		ConnectionID: c.connID,
		Kind:         kindStr,
	})
	if err != nil {
		return err
	}

	zcCfg := zerocopy.Config{SysvKey: reply.SysvShmKey, MemRegionSz: reply.SysvRegionSz}

	if c.kind == mcmtype.Sender {
		c.rx = &zerocopy.GatewayRx{}
		c.scratch = make([]byte, c.cfg.BufParts.TotalSize())
		if err := c.rx.Attach(ctx, zcCfg); err != nil {
			return mcmerr.New(mcmerr.ConnFailed, "mcmconn.Establish", err)
		}
	} else {
		c.recv = make(chan []byte, recvChanCapacity)
		c.tx = &zerocopy.GatewayTx{}
		c.tx.SetTxCallback(c.onFrame)
		if err := c.tx.Attach(ctx, zcCfg); err != nil {
			return mcmerr.New(mcmerr.ConnFailed, "mcmconn.Establish", err)
		}
	}

	if err := activateWithRetry(ctx, c.client, &proxyrpc.ActivateConnectionRequest{
		ClientID:     c.clientID,
		ConnectionID: c.connID,
	}); err != nil {
		return err
	}

	c.state = mcmtype.StateActive
	return nil
}

// onFrame is the GatewayTx poll callback: it copies the live payload
// (bounded to the buffer layout's total frame size) into recv,
// dropping the delivery if the consumer has fallen behind rather than
// blocking the poll goroutine.
func (c *ZeroCopyConnection) onFrame(ctx *mcmctx.Context, payload []byte, sz uint32, sent *uint32) error {
	n := c.cfg.BufParts.TotalSize()
	if uint64(sz) < n {
		n = uint64(sz)
	}
	frame := append([]byte(nil), payload[:n]...)
	select {
	case c.recv <- frame:
	default:
		mlog.Component("mcmconn").Warn().Str("connection", c.connID).Msg("zero-copy receiver backlog full, dropping frame")
	}
	*sent = uint32(n)
	return nil
}

// Shutdown detaches the gateway half in use, then asks the proxy to
// delete the connection.
func (c *ZeroCopyConnection) Shutdown(ctx *mcmctx.Context) error {
	var err error
	if c.rx != nil {
		err = c.rx.Shutdown(ctx)
	} else if c.tx != nil {
		err = c.tx.Shutdown(ctx)
	}
	if err != nil {
		mlog.Component("mcmconn").Warn().Err(err).Msg("gateway shutdown returned an error")
	}
	c.state = mcmtype.StateShutdown

	_, rpcErr := c.client.DeleteConnection(ctx, &proxyrpc.DeleteConnectionRequest{
		ClientID:     c.clientID,
		ConnectionID: c.connID,
	})
	return rpcErr
}

// GetBuffer hands the sender its reusable scratch frame pre-filled per
// spec.md §4.7, or dequeues the next frame the receiver's poller
// buffered, honoring the same timeout sentinels as MemifConnection.
func (c *ZeroCopyConnection) GetBuffer(ctx *mcmctx.Context, timeoutMs int) (*Buffer, error) {
	if c.kind == mcmtype.Sender {
		buf := newBuffer(c.scratch, c.cfg.BufParts)
		buf.payloadLen = uint32(c.cfg.CalculatedPayloadSize)
		buf.metadataLen = 0
		return buf, nil
	}

	raw, err := c.dequeueRecv(ctx, resolveTimeout(timeoutMs, c.defaultMs))
	if err != nil {
		return nil, err
	}
	buf := newBuffer(raw, c.cfg.BufParts)
	h := buf.readSysdata()
	buf.payloadLen = h.PayloadLen
	buf.metadataLen = h.MetadataLen
	return buf, nil
}

func (c *ZeroCopyConnection) dequeueRecv(ctx *mcmctx.Context, timeoutMs int) ([]byte, error) {
	if timeoutMs == mcmtype.TimeoutZero {
		select {
		case b := <-c.recv:
			return b, nil
		default:
			return nil, mcmerr.New(mcmerr.Timeout, "mcmconn.GetBuffer", nil)
		}
	}

	var deadline <-chan time.Time
	if timeoutMs > 0 {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case b := <-c.recv:
			return b, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, mcmerr.New(mcmerr.Timeout, "mcmconn.GetBuffer", nil)
		}
	}
}

// PutBuffer stamps the sysdata header and transmits the scratch frame
// for a sender. A receiver has nothing to hand back — the shared
// region holds exactly one frame's worth of state and the next
// Establish-time poll cycle overwrites it — so PutBuffer is a no-op on
// that side.
//
// TODO: seq/timestamp_ms are left at zero (open question, spec.md §9):
// neither a monotonic per-connection counter nor wall-clock time is
// specified as the source, so this is the other write site that would
// need to change once that's decided.
func (c *ZeroCopyConnection) PutBuffer(ctx *mcmctx.Context, buf *Buffer, timeoutMs int) error {
	if c.kind != mcmtype.Sender {
		return nil
	}

	buf.writeSysdata(mcmtype.BufferSysData{
		PayloadLen:  buf.payloadLen,
		MetadataLen: buf.metadataLen,
	})

	var sent uint32
	return c.rx.Transmit(ctx, buf.raw, &sent)
}
