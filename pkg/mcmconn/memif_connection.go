package mcmconn

import (
	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/internal/mlog"
	"github.com/open-mcm/mesh-dataplane/internal/proxyrpc"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmctx"
	"github.com/open-mcm/mesh-dataplane/pkg/memif"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

// MemifTransportFactory attaches the local memif socket the proxy
// told us about in a CreateConnection reply. The real memif shared-
// memory socket library lives outside this module's scope (spec.md
// §1/§9); this factory is the seam a real binding plugs into. Tests
// and same-host pairing pass a factory backed by memif.LoopbackRing.
type MemifTransportFactory func(reply *proxyrpc.CreateConnectionReply, kind mcmtype.ConnectionKind) (memif.Transport, error)

// SocketReleaser drops a local registry's entry for a memif socket
// path once the last connection attached to it is gone.
// *memif.LoopbackRegistry satisfies this directly.
type SocketReleaser interface {
	Release(socketPath string)
}

// MemifConnection is the C4-backed Connection variant.
type MemifConnection struct {
	clientID  string
	connID    string
	kind      mcmtype.ConnectionKind
	cfg       mcmtype.Config
	client    ProxyClient
	transport MemifTransportFactory
	releaser  SocketReleaser
	defaultMs int

	state      mcmtype.ConnectionState
	endpoint   *memif.Endpoint
	socketPath string
}

// NewMemifConnection constructs an unestablished memif-backed
// connection. releaser may be nil, in which case Shutdown skips
// releasing the socket (e.g. in tests with no backing registry).
func NewMemifConnection(clientID, connID string, cfg mcmtype.Config, client ProxyClient, transport MemifTransportFactory, releaser SocketReleaser, defaultTimeoutMs int) *MemifConnection {
	return &MemifConnection{
		clientID:  clientID,
		connID:    connID,
		kind:      cfg.Kind,
		cfg:       cfg,
		client:    client,
		transport: transport,
		releaser:  releaser,
		defaultMs: defaultTimeoutMs,
		state:     mcmtype.StateCreated,
	}
}

func (c *MemifConnection) State() mcmtype.ConnectionState { return c.state }

// Establish moves the connection from created to active: it asks the
// proxy to create the connection, attaches the local memif endpoint
// the reply describes, then retries ActivateConnection until the
// proxy reports the peer linked.
func (c *MemifConnection) Establish(ctx *mcmctx.Context) error {
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

	tr, err := c.transport(reply, c.kind)
	if err != nil {
		return mcmerr.New(mcmerr.ConnFailed, "mcmconn.Establish", err)
	}
	c.socketPath = reply.MemifSocket

	if c.kind == mcmtype.Sender {
		c.endpoint = memif.NewSenderEndpoint(tr, c.cfg.BufParts, c.cfg.BufQueueCapacity)
	} else {
		c.endpoint = memif.NewReceiverEndpoint(tr, c.cfg.BufParts)
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

// Shutdown drains the endpoint (memif.Endpoint.Shutdown: sender brief
// sleep, receiver drain loop) and asks the proxy to delete the
// connection. A sender finishes its drain sleep before DeleteConnection
// is sent; a receiver's drain loop runs concurrently with the
// DeleteConnection call, and Shutdown waits for both.
func (c *MemifConnection) Shutdown(ctx *mcmctx.Context) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		if c.endpoint != nil {
			if err := c.endpoint.Shutdown(ctx); err != nil {
				mlog.Component("mcmconn").Warn().Err(err).Msg("endpoint shutdown returned an error")
			}
		}
	}()
	if c.kind == mcmtype.Sender {
		<-drained
	}
	c.state = mcmtype.StateShutdown

	if c.releaser != nil && c.socketPath != "" {
		c.releaser.Release(c.socketPath)
	}

	_, err := c.client.DeleteConnection(ctx, &proxyrpc.DeleteConnectionRequest{
		ClientID:     c.clientID,
		ConnectionID: c.connID,
	})
	<-drained
	return err
}

// GetBuffer dequeues a working buffer and, for a receiver, parses the
// sysdata header the sender wrote; for a sender it pre-fills
// payload_len with the calculated payload size and zeroes
// metadata_len, per spec.md §4.7.
func (c *MemifConnection) GetBuffer(ctx *mcmctx.Context, timeoutMs int) (*Buffer, error) {
	raw, err := c.endpoint.Dequeue(ctx, resolveTimeout(timeoutMs, c.defaultMs))
	if err != nil {
		return nil, err
	}

	buf := newBuffer(raw, c.cfg.BufParts)
	if c.kind == mcmtype.Sender {
		buf.payloadLen = uint32(c.cfg.CalculatedPayloadSize)
		buf.metadataLen = 0
		return buf, nil
	}

	h := buf.readSysdata()
	buf.payloadLen = h.PayloadLen
	buf.metadataLen = h.MetadataLen
	return buf, nil
}

// PutBuffer writes the sysdata header from the caller's lengths on the
// sender side, then enqueues.
//
// TODO: seq/timestamp_ms are left at zero (open question, spec.md §9):
// neither a monotonic per-connection counter nor wall-clock time is
// specified as the source, so this is one of the two write sites that
// would need to change once that's decided (ZeroCopyConnection.PutBuffer
// is the other).
func (c *MemifConnection) PutBuffer(ctx *mcmctx.Context, buf *Buffer, timeoutMs int) error {
	if c.kind == mcmtype.Sender {
		buf.writeSysdata(mcmtype.BufferSysData{
			PayloadLen:  buf.payloadLen,
			MetadataLen: buf.metadataLen,
		})
	}
	return c.endpoint.Enqueue(ctx, buf.raw)
}
