package mcmconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmctx"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
	"github.com/open-mcm/mesh-dataplane/pkg/zerocopy"
)

// fakeShmRegion backs both halves of a test pair with one shared
// buffer, the way two processes attaching the same SysV key would be,
// following the same substitution technique zerocopy's own
// gateway_test.go uses for its AttachFunc seam.
type fakeShmRegion struct{ buf []byte }

func (r *fakeShmRegion) Bytes() []byte { return r.buf }
func (r *fakeShmRegion) Detach() error { return nil }

func withFakeShm(t *testing.T, size uint32) {
	t.Helper()
	shared := make([]byte, size)
	orig := zerocopy.AttachFunc
	zerocopy.AttachFunc = func(key int, sz uint32) (zerocopy.ShmRegion, error) {
		return &fakeShmRegion{buf: shared}, nil
	}
	t.Cleanup(func() { zerocopy.AttachFunc = orig })
}

func TestZeroCopyConnectionRoundTrip(t *testing.T) {
	withFakeShm(t, 128)
	ctx := mcmctx.Background()
	proxy := newFakeProxyClient()
	proxy.sysvKey, proxy.sysvSize = 1, 128

	tx := NewZeroCopyConnection("client", "zc-tx", testConfig(mcmtype.Sender), proxy, 1000)
	rx := NewZeroCopyConnection("client", "zc-rx", testConfig(mcmtype.Receiver), proxy, 1000)

	require.NoError(t, tx.Establish(ctx))
	require.NoError(t, rx.Establish(ctx))

	buf, err := tx.GetBuffer(ctx, mcmtype.TimeoutInfinite)
	require.NoError(t, err)
	copy(buf.Payload(), []byte("zero-copy frame contents, 32B!!!"))
	require.NoError(t, tx.PutBuffer(ctx, buf, mcmtype.TimeoutInfinite))

	rbuf, err := rx.GetBuffer(ctx, 500)
	require.NoError(t, err)
	require.Equal(t, "zero-copy frame contents, 32B!!!", string(rbuf.Payload()))

	// a receiver PutBuffer is a no-op; it must not error.
	require.NoError(t, rx.PutBuffer(ctx, rbuf, mcmtype.TimeoutInfinite))

	require.NoError(t, rx.Shutdown(ctx))
	require.NoError(t, tx.Shutdown(ctx))
}

func TestZeroCopyConnectionGetBufferTimesOutWithNoFrame(t *testing.T) {
	withFakeShm(t, 128)
	ctx := mcmctx.Background()
	proxy := newFakeProxyClient()
	proxy.sysvKey, proxy.sysvSize = 2, 128

	rx := NewZeroCopyConnection("client", "zc-rx-empty", testConfig(mcmtype.Receiver), proxy, 1000)
	require.NoError(t, rx.Establish(ctx))

	_, err := rx.GetBuffer(ctx, 30)
	require.True(t, mcmerr.Is(err, mcmerr.Timeout))
}

func TestZeroCopyConnectionGetBufferZeroTimeoutPollsOnce(t *testing.T) {
	withFakeShm(t, 128)
	ctx := mcmctx.Background()
	proxy := newFakeProxyClient()
	proxy.sysvKey, proxy.sysvSize = 3, 128

	rx := NewZeroCopyConnection("client", "zc-rx-poll", testConfig(mcmtype.Receiver), proxy, 1000)
	require.NoError(t, rx.Establish(ctx))

	_, err := rx.GetBuffer(ctx, mcmtype.TimeoutZero)
	require.True(t, mcmerr.Is(err, mcmerr.Timeout))
}

func TestZeroCopyConnectionCancelledContext(t *testing.T) {
	withFakeShm(t, 128)
	root := mcmctx.Background()
	child := root.WithCancel()
	proxy := newFakeProxyClient()
	proxy.sysvKey, proxy.sysvSize = 4, 128

	rx := NewZeroCopyConnection("client", "zc-rx-cancel", testConfig(mcmtype.Receiver), proxy, 1000)
	require.NoError(t, rx.Establish(child))

	go func() {
		time.Sleep(20 * time.Millisecond)
		child.Cancel()
	}()

	_, err := rx.GetBuffer(child, mcmtype.TimeoutInfinite)
	require.True(t, mcmerr.Is(err, mcmerr.ConnClosed))
}
