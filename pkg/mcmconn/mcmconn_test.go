package mcmconn

import (
	"context"
	"errors"
	"sync"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/internal/proxyrpc"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmlayout"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

// fakeProxyClient is a minimal in-process ProxyClient double, the
// mcmconn-side equivalent of internal/proxyrpc's mockServer (which
// lives behind a _test.go build tag in its own package and so cannot
// be imported here). Like *proxyrpc.Client, it reports a refused create
// as a CONN_FAILED error rather than as a reply with Ok == false.
type fakeProxyClient struct {
	mu         sync.Mutex
	attempts   map[string]int
	linkAfter  int
	failCreate bool
	sysvKey    int
	sysvSize   uint32
	deleted    []string
}

func newFakeProxyClient() *fakeProxyClient {
	return &fakeProxyClient{attempts: make(map[string]int), linkAfter: 1, sysvKey: 7, sysvSize: 4096}
}

func (f *fakeProxyClient) CreateConnection(ctx context.Context, req *proxyrpc.CreateConnectionRequest) (*proxyrpc.CreateConnectionReply, error) {
	if f.failCreate {
		return nil, mcmerr.New(mcmerr.ConnFailed, "fakeProxyClient.CreateConnection", errors.New("fake: create disabled"))
	}
	return &proxyrpc.CreateConnectionReply{
		Ok:           true,
		MemifSocket:  "/tmp/fake.sock",
		MemifID:      1,
		SysvShmKey:   f.sysvKey,
		SysvRegionSz: f.sysvSize,
	}, nil
}

func (f *fakeProxyClient) ActivateConnection(ctx context.Context, req *proxyrpc.ActivateConnectionRequest) (*proxyrpc.ActivateConnectionReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[req.ConnectionID]++
	linked := f.attempts[req.ConnectionID] >= f.linkAfter
	return &proxyrpc.ActivateConnectionReply{Ok: true, Linked: linked}, nil
}

func (f *fakeProxyClient) DeleteConnection(ctx context.Context, req *proxyrpc.DeleteConnectionRequest) (*proxyrpc.DeleteConnectionReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, req.ConnectionID)
	return &proxyrpc.DeleteConnectionReply{Ok: true}, nil
}

// testConfig builds a small Config suitable for both connection
// variants' tests: a 32-byte payload, no metadata.
func testConfig(kind mcmtype.ConnectionKind) mcmtype.Config {
	parts := mcmlayout.Compute(32, 0)
	return mcmtype.Config{
		Name:                  "test",
		Kind:                  kind,
		BufQueueCapacity:      4,
		CalculatedPayloadSize: 32,
		BufParts:              parts,
	}
}
