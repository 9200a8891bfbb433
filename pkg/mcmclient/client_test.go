package mcmclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/internal/proxyrpc"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

// fakeProxy is a minimal in-process proxyClient double: every RPC
// succeeds immediately and ActivateConnection reports linked on the
// first attempt, so CreateConnection's Establish call completes
// synchronously in these tests.
type fakeProxy struct {
	mu      sync.Mutex
	events  chan *proxyrpc.Event
	closed  bool
	deletes []string
}

func newFakeProxy() *fakeProxy {
	return &fakeProxy{events: make(chan *proxyrpc.Event, 4)}
}

func (f *fakeProxy) CreateConnection(ctx context.Context, req *proxyrpc.CreateConnectionRequest) (*proxyrpc.CreateConnectionReply, error) {
	// A real proxy hands both halves of one logical connection the same
	// memif socket path; this fake ignores the per-handle connection id
	// and always returns a fixed path so a sender/receiver pair created
	// in the same test shares one memif.LoopbackRing.
	return &proxyrpc.CreateConnectionReply{Ok: true, MemifSocket: "/tmp/mcm-test.sock", SysvShmKey: 42, SysvRegionSz: 4096}, nil
}

func (f *fakeProxy) ActivateConnection(ctx context.Context, req *proxyrpc.ActivateConnectionRequest) (*proxyrpc.ActivateConnectionReply, error) {
	return &proxyrpc.ActivateConnectionReply{Ok: true, Linked: true}, nil
}

func (f *fakeProxy) DeleteConnection(ctx context.Context, req *proxyrpc.DeleteConnectionRequest) (*proxyrpc.DeleteConnectionReply, error) {
	f.mu.Lock()
	f.deletes = append(f.deletes, req.ConnectionID)
	f.mu.Unlock()
	return &proxyrpc.DeleteConnectionReply{Ok: true}, nil
}

func (f *fakeProxy) RegisterAndStreamEvents(ctx context.Context) (string, <-chan *proxyrpc.Event, error) {
	return "fake-client-1", f.events, nil
}

func (f *fakeProxy) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestClient(t *testing.T, maxConns int) (*Client, *fakeProxy) {
	t.Helper()
	proxy := newFakeProxy()
	c, err := newWithProxy(mcmtype.ClientConfig{
		APIVersion:       "v1",
		DefaultTimeoutUs: 1_000_000,
		MaxConnNum:       maxConns,
		ProxyIP:          "127.0.0.1",
		ProxyPort:        "0",
	}, proxy)
	require.NoError(t, err)
	t.Cleanup(func() { unregisterLive(c) })
	return c, proxy
}

func TestClientIDComesFromProxyRegistration(t *testing.T) {
	c, _ := newTestClient(t, 4)
	require.Equal(t, "fake-client-1", c.ClientID())
}

const memifConnJSON = `{
  "bufferQueueCapacity": 4,
  "maxPayloadSize": 32,
  "connection": {"multipointGroup": {"urn": "ipv4:224.0.0.1"}},
  "payload": {"blob": {}}
}`

func TestCreateConnectionEstablishesAndTracks(t *testing.T) {
	c, _ := newTestClient(t, 4)

	h, err := c.CreateConnection(mcmtype.Sender, []byte(memifConnJSON))
	require.NoError(t, err)
	require.Equal(t, mcmtype.StateActive, h.State())

	c.mu.Lock()
	_, tracked := c.conns[h.ID()]
	c.mu.Unlock()
	require.True(t, tracked)
}

func TestCreateConnectionRejectsPastMaxConnNum(t *testing.T) {
	c, _ := newTestClient(t, 1)

	_, err := c.CreateConnection(mcmtype.Sender, []byte(memifConnJSON))
	require.NoError(t, err)

	_, err = c.CreateConnection(mcmtype.Receiver, []byte(memifConnJSON))
	require.True(t, mcmerr.Is(err, mcmerr.MaxConn))
}

func TestShutdownRefusesWhileConnectionsLive(t *testing.T) {
	c, _ := newTestClient(t, 4)

	h, err := c.CreateConnection(mcmtype.Sender, []byte(memifConnJSON))
	require.NoError(t, err)

	err = c.Shutdown()
	require.True(t, mcmerr.Is(err, mcmerr.FoundAllocated))

	require.NoError(t, h.Delete())
	require.NoError(t, c.Shutdown())
}

func TestConnectionHandleShutdownIsIdempotent(t *testing.T) {
	c, proxy := newTestClient(t, 4)

	h, err := c.CreateConnection(mcmtype.Sender, []byte(memifConnJSON))
	require.NoError(t, err)

	require.NoError(t, h.Shutdown())
	require.NoError(t, h.Shutdown())

	proxy.mu.Lock()
	deletes := len(proxy.deletes)
	proxy.mu.Unlock()
	require.Equal(t, 1, deletes)

	require.NoError(t, h.Delete())
	require.NoError(t, h.Delete())
}

func TestSenderReceiverPairOverLoopbackRegistry(t *testing.T) {
	c, _ := newTestClient(t, 4)

	tx, err := c.CreateConnection(mcmtype.Sender, []byte(memifConnJSON))
	require.NoError(t, err)
	rx, err := c.CreateConnection(mcmtype.Receiver, []byte(memifConnJSON))
	require.NoError(t, err)

	buf, err := tx.GetBuffer(mcmtype.TimeoutZero)
	require.NoError(t, err)
	copy(buf.Payload(), []byte("hello, mesh"))
	require.NoError(t, tx.PutBuffer(buf, mcmtype.TimeoutZero))

	require.NoError(t, tx.Delete())
	require.NoError(t, rx.Delete())
}

func TestUnlinkEventCancelsMatchingConnectionOnly(t *testing.T) {
	c, proxy := newTestClient(t, 4)

	h, err := c.CreateConnection(mcmtype.Sender, []byte(memifConnJSON))
	require.NoError(t, err)
	other, err := c.CreateConnection(mcmtype.Sender, []byte(memifConnJSON))
	require.NoError(t, err)

	proxy.events <- &proxyrpc.Event{ConnectionID: h.ID(), Type: "conn_unlink_requested"}

	require.Eventually(t, func() bool {
		return h.ctx.Cancelled()
	}, time.Second, 5*time.Millisecond)
	require.False(t, other.ctx.Cancelled())

	require.NoError(t, h.Delete())
	require.NoError(t, other.Delete())
}
