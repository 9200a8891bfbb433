// Package mcmclient implements C8, the ClientContext at the top of
// the public SDK surface of spec.md §6: it owns the long-lived proxy
// RPC client (internal/proxyrpc), the set of live connections, the
// process-level global cancellation context, and signal-driven
// shutdown. A *Client is what create_client(cfg_json) returns.
package mcmclient

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/internal/mlog"
	"github.com/open-mcm/mesh-dataplane/internal/proxyrpc"
	"github.com/open-mcm/mesh-dataplane/internal/proxyrpc/eventsdebug"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmconfig"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmconn"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmctx"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
	"github.com/open-mcm/mesh-dataplane/pkg/memif"
)

// proxyClient is the subset of *proxyrpc.Client a ClientContext needs,
// extending mcmconn.ProxyClient with the registration/event stream and
// Close — the same capability-interface-first pattern every other
// component in this module uses, so tests can substitute a fake proxy
// without a grpc.Server.
type proxyClient interface {
	mcmconn.ProxyClient
	RegisterAndStreamEvents(ctx context.Context) (string, <-chan *proxyrpc.Event, error)
	Close() error
}

// Client is C8: the top-level handle create_client returns. All
// exported methods are safe for concurrent use.
type Client struct {
	cfg      mcmtype.ClientConfig
	proxy    proxyClient
	clientID string
	ctx      *mcmctx.Context
	loopback *memif.LoopbackRegistry

	mu    sync.Mutex
	conns map[string]*ConnectionHandle

	debugMu sync.RWMutex
	debug   *eventsdebug.Hub
}

// AttachEventsDebugHub wires an optional websocket fan-out of this
// client's proxy event stream for operators debugging connection
// lifecycle issues live. It has no effect on connection handling:
// nothing else in this package reads from the hub.
func (c *Client) AttachEventsDebugHub(h *eventsdebug.Hub) {
	c.debugMu.Lock()
	c.debug = h
	c.debugMu.Unlock()
}

// New parses cfgJSON per spec.md §6, dials the media proxy it names,
// registers, and starts draining the proxy's event stream, mirroring
// the control-flow summary of spec.md §2 ("C8.init → C6.run").
func New(cfgJSON []byte) (*Client, error) {
	cfg, err := mcmconfig.ParseClientConfig(cfgJSON)
	if err != nil {
		return nil, err
	}

	proxy, err := proxyrpc.Dial(net.JoinHostPort(cfg.ProxyIP, cfg.ProxyPort))
	if err != nil {
		return nil, err
	}

	c, err := newWithProxy(cfg, proxy)
	if err != nil {
		proxy.Close()
		return nil, err
	}
	return c, nil
}

// newWithProxy builds a Client around an already-constructed proxy
// client, the seam client_test.go uses to inject a fake proxyClient
// (or a real *proxyrpc.Client dialed against a bufconn server) without
// going through New's DNS/TCP dial.
func newWithProxy(cfg mcmtype.ClientConfig, proxy proxyClient) (*Client, error) {
	c := &Client{
		cfg:      cfg,
		proxy:    proxy,
		ctx:      mcmctx.Background(),
		loopback: memif.NewLoopbackRegistry(),
		conns:    make(map[string]*ConnectionHandle),
	}

	clientID, events, err := proxy.RegisterAndStreamEvents(c.ctx)
	if err != nil {
		c.ctx.Cancel()
		return nil, err
	}
	c.clientID = clientID
	go c.drainEvents(events)

	installSignalHandler()
	registerLive(c)

	return c, nil
}

// drainEvents watches the proxy's event stream for the life of the
// client, cancelling the matching connection's context the moment a
// conn_unlink_requested event arrives — spec.md §4.6/§5: "Unlink
// events cancel the matching connection context and interrupt any
// in-progress memif poll."
func (c *Client) drainEvents(events <-chan *proxyrpc.Event) {
	log := mlog.Component("mcmclient")
	for evt := range events {
		c.debugMu.RLock()
		if c.debug != nil {
			c.debug.Broadcast(evt)
		}
		c.debugMu.RUnlock()

		switch evt.Type {
		case "conn_unlink_requested":
			c.mu.Lock()
			h, ok := c.conns[evt.ConnectionID]
			c.mu.Unlock()
			if ok {
				log.Info().Str("connection", evt.ConnectionID).Msg("proxy requested unlink, cancelling connection")
				h.ctx.Cancel()
			}
		case "logger_config_changed":
			log.Info().Msg("proxy reported a logger configuration change")
		default:
			log.Debug().Str("type", evt.Type).Msg("unhandled proxy event")
		}
	}
}

// defaultTimeoutMs converts the client's microsecond default timeout
// into the millisecond granularity get_buffer/put_buffer use.
func (c *Client) defaultTimeoutMs() int {
	ms := c.cfg.DefaultTimeoutUs / 1000
	if ms <= 0 {
		ms = 1
	}
	return ms
}

// CreateConnection is the shared body of create_tx_connection and
// create_rx_connection: parse+validate (C5), enforce max_conn_num,
// construct the engine variant selected by options.engine, and
// establish it before returning the handle — spec.md §2's control
// flow folds establish() into connection creation, there being no
// separate "establish" verb in the public SDK surface of §6.
func (c *Client) CreateConnection(kind mcmtype.ConnectionKind, connCfgJSON []byte) (*ConnectionHandle, error) {
	cfg, err := mcmconfig.ParseConnectionConfig(connCfgJSON, kind)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.conns) >= c.cfg.MaxConnNum {
		c.mu.Unlock()
		return nil, mcmerr.New(mcmerr.MaxConn, "mcmclient.CreateConnection", nil)
	}
	c.mu.Unlock()

	connID := uuid.NewString()
	connCtx := c.ctx.WithCancel()

	var conn mcmconn.Connection
	if cfg.Options.Engine == "zero-copy" {
		conn = mcmconn.NewZeroCopyConnection(c.clientID, connID, cfg, c.proxy, c.defaultTimeoutMs())
	} else {
		conn = mcmconn.NewMemifConnection(c.clientID, connID, cfg, c.proxy, c.memifTransportFactory(cfg), c.loopback, c.defaultTimeoutMs())
	}

	h := &ConnectionHandle{id: connID, client: c, conn: conn, ctx: connCtx}

	if err := conn.Establish(connCtx); err != nil {
		connCtx.Cancel()
		return nil, err
	}

	c.mu.Lock()
	c.conns[connID] = h
	c.mu.Unlock()

	return h, nil
}

// memifTransportFactory closes over this connection's configured ring
// depth and pairs sender/receiver attachments to the same proxy-
// assigned socket path through the client's LoopbackRegistry — the
// in-process stand-in for the real memif socket library (spec.md
// §1/§9; see pkg/memif's package doc).
func (c *Client) memifTransportFactory(cfg mcmtype.Config) mcmconn.MemifTransportFactory {
	return func(reply *proxyrpc.CreateConnectionReply, kind mcmtype.ConnectionKind) (memif.Transport, error) {
		ring := c.loopback.RingFor(reply.MemifSocket, cfg.BufQueueCapacity)
		if kind == mcmtype.Sender {
			return ring.Sender(), nil
		}
		return ring.Receiver(), nil
	}
}

// deleteHandle removes conn from the live set, called once its
// Shutdown has completed. Idempotent: removing an id twice is a no-op.
func (c *Client) deleteHandle(id string) {
	c.mu.Lock()
	delete(c.conns, id)
	c.mu.Unlock()
}

// Shutdown tears the client down: it refuses (FOUND_ALLOCATED) while
// any connection is still live, matching spec.md §4.8 ("shutdown()
// refuses to proceed if any connection is still live"). Callers must
// shutdown_connection + delete_connection every handle first.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	n := len(c.conns)
	c.mu.Unlock()
	if n > 0 {
		return mcmerr.New(mcmerr.FoundAllocated, "mcmclient.Shutdown", fmt.Errorf("%d connection(s) still allocated", n))
	}

	unregisterLive(c)
	c.ctx.Cancel()
	return c.proxy.Close()
}

// ClientID returns the identifier the proxy assigned this client on
// registration.
func (c *Client) ClientID() string { return c.clientID }
