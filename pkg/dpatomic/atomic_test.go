package dpatomic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestStoreWaitHotpathCommit mirrors spec.md §8 scenario 4: a writer
// calling StoreWait(567, 5s) must return before the timeout once a
// concurrent hotpath LoadNext observes the new value, and Load() must
// then report 567.
func TestStoreWaitHotpathCommit(t *testing.T) {
	var d Uint64

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		d.LoadNext()
		time.Sleep(20 * time.Millisecond)
		got := d.LoadNext()
		require.EqualValues(t, 567, got)
	}()

	start := time.Now()
	d.StoreWait(567, 5*time.Second)
	elapsed := time.Since(start)

	require.Less(t, elapsed, 5*time.Second)
	require.EqualValues(t, 567, d.Load())
	wg.Wait()
}

// TestStoreWaitTimeoutForceCommits verifies that when no hotpath
// thread ever calls LoadNext, StoreWait still returns within its
// timeout and Load() reflects the new value afterward.
func TestStoreWaitTimeoutForceCommits(t *testing.T) {
	var d Uint64

	start := time.Now()
	d.StoreWait(42, 30*time.Millisecond)
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)
	require.EqualValues(t, 42, d.Load())
}

func TestLoadNextReturnsPublishedValue(t *testing.T) {
	var d Uint64
	d.next.Store(99)
	require.EqualValues(t, 99, d.LoadNext())
	require.EqualValues(t, 99, d.Load())
}
