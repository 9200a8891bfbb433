package zerocopy

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/open-mcm/mesh-dataplane/pkg/mcmctx"
)

// fakeRegion backs both ends of a test pair with the same buffer, the
// way two processes would share one SysV segment.
type fakeRegion struct {
	buf []byte
}

func (r *fakeRegion) Bytes() []byte { return r.buf }
func (r *fakeRegion) Detach() error { return nil }

func withFakeRegion(t *testing.T, size uint32) {
	t.Helper()
	shared := make([]byte, size)
	orig := AttachFunc
	AttachFunc = func(key int, sz uint32) (ShmRegion, error) {
		return &fakeRegion{buf: shared}, nil
	}
	t.Cleanup(func() { AttachFunc = orig })
}

func TestGatewayRxTransmitRequiresActive(t *testing.T) {
	var rx GatewayRx
	err := rx.Transmit(mcmctx.Background(), []byte("hi"), new(uint32))
	require.ErrorIs(t, err, ErrWrongState)
}

func TestGatewayTxRxRoundTrip(t *testing.T) {
	withFakeRegion(t, 64)

	root := mcmctx.Background()

	var rx GatewayRx
	require.NoError(t, rx.Attach(root, Config{SysvKey: 42, MemRegionSz: 64}))

	var tx GatewayTx
	var mu sync.Mutex
	var received []byte
	var wg sync.WaitGroup
	wg.Add(1)
	tx.SetTxCallback(func(ctx *mcmctx.Context, payload []byte, sz uint32, sent *uint32) error {
		mu.Lock()
		defer mu.Unlock()
		if received == nil {
			received = append([]byte(nil), payload[:5]...)
			wg.Done()
		}
		*sent = sz
		return nil
	})
	require.NoError(t, tx.Attach(root, Config{SysvKey: 42, MemRegionSz: 64}))

	var sent uint32
	require.NoError(t, rx.Transmit(root, []byte("hello"), &sent))
	require.EqualValues(t, 5, sent)

	waitTimeout(t, &wg, 2*time.Second)

	mu.Lock()
	require.Equal(t, []byte("hello"), received)
	mu.Unlock()

	require.NoError(t, tx.Shutdown(root))
	require.NoError(t, rx.Shutdown(root))
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for tx callback")
	}
}
