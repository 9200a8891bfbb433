package mcmconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/internal/proxyrpc"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmctx"
	"github.com/open-mcm/mesh-dataplane/pkg/memif"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

func TestMemifConnectionRoundTrip(t *testing.T) {
	ring := memif.NewLoopbackRing(4)
	ctx := mcmctx.Background()

	tx := NewMemifConnection("client", "conn-tx", testConfig(mcmtype.Sender), newFakeProxyClient(),
		func(reply *proxyrpc.CreateConnectionReply, kind mcmtype.ConnectionKind) (memif.Transport, error) {
			return ring.Sender(), nil
		}, nil, 1000)
	rx := NewMemifConnection("client", "conn-rx", testConfig(mcmtype.Receiver), newFakeProxyClient(),
		func(reply *proxyrpc.CreateConnectionReply, kind mcmtype.ConnectionKind) (memif.Transport, error) {
			return ring.Receiver(), nil
		}, nil, 1000)

	require.NoError(t, tx.Establish(ctx))
	require.NoError(t, rx.Establish(ctx))
	require.Equal(t, mcmtype.StateActive, tx.State())

	buf, err := tx.GetBuffer(ctx, mcmtype.TimeoutInfinite)
	require.NoError(t, err)
	require.EqualValues(t, 32, buf.PayloadLen())
	copy(buf.Payload(), []byte("hello from the sender side!!!!!!"))
	require.NoError(t, tx.PutBuffer(ctx, buf, mcmtype.TimeoutInfinite))

	rbuf, err := rx.GetBuffer(ctx, 500)
	require.NoError(t, err)
	require.EqualValues(t, 32, rbuf.PayloadLen())
	require.Equal(t, "hello from the sender side!!!!!!", string(rbuf.Payload()))

	require.NoError(t, rx.Shutdown(ctx))
	require.NoError(t, tx.Shutdown(ctx))
	require.Equal(t, mcmtype.StateShutdown, tx.State())
}

func TestMemifConnectionActivateRetriesUntilLinked(t *testing.T) {
	ring := memif.NewLoopbackRing(4)
	ctx := mcmctx.Background()
	proxy := newFakeProxyClient()
	proxy.linkAfter = 3

	conn := NewMemifConnection("client", "conn-slow", testConfig(mcmtype.Sender), proxy,
		func(reply *proxyrpc.CreateConnectionReply, kind mcmtype.ConnectionKind) (memif.Transport, error) {
			return ring.Sender(), nil
		}, nil, 1000)

	start := time.Now()
	require.NoError(t, conn.Establish(ctx))
	require.GreaterOrEqual(t, time.Since(start), 2*activateRetryInterval)
}

func TestMemifConnectionCreateFailurePropagates(t *testing.T) {
	ring := memif.NewLoopbackRing(4)
	ctx := mcmctx.Background()
	proxy := newFakeProxyClient()
	proxy.failCreate = true

	conn := NewMemifConnection("client", "conn-fail", testConfig(mcmtype.Sender), proxy,
		func(reply *proxyrpc.CreateConnectionReply, kind mcmtype.ConnectionKind) (memif.Transport, error) {
			return ring.Sender(), nil
		}, nil, 1000)

	err := conn.Establish(ctx)
	require.Error(t, err)
	require.True(t, mcmerr.Is(err, mcmerr.ConnFailed))
}

func TestMemifConnectionGetBufferTimesOutWhenRingEmpty(t *testing.T) {
	ring := memif.NewLoopbackRing(4)
	ctx := mcmctx.Background()

	rx := NewMemifConnection("client", "conn-rx-empty", testConfig(mcmtype.Receiver), newFakeProxyClient(),
		func(reply *proxyrpc.CreateConnectionReply, kind mcmtype.ConnectionKind) (memif.Transport, error) {
			return ring.Receiver(), nil
		}, nil, 1000)
	require.NoError(t, rx.Establish(ctx))

	_, err := rx.GetBuffer(ctx, 50)
	require.True(t, mcmerr.Is(err, mcmerr.Timeout))
}
