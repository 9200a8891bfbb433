package mcmconn

import (
	"context"
	"time"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/internal/proxyrpc"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmctx"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

// activateRetryInterval is the sleep between ActivateConnection
// attempts while the proxy has not yet linked the peer, per spec.md
// §4.6/§5.
const activateRetryInterval = 50 * time.Millisecond

// ProxyClient is the subset of *proxyrpc.Client a Connection needs.
// Defining it here (rather than depending on the concrete type)
// follows the same capability-interface-first pattern as
// pkg/memif.Transport, letting tests substitute a fake proxy without
// spinning up a grpc.Server.
type ProxyClient interface {
	CreateConnection(ctx context.Context, req *proxyrpc.CreateConnectionRequest) (*proxyrpc.CreateConnectionReply, error)
	ActivateConnection(ctx context.Context, req *proxyrpc.ActivateConnectionRequest) (*proxyrpc.ActivateConnectionReply, error)
	DeleteConnection(ctx context.Context, req *proxyrpc.DeleteConnectionRequest) (*proxyrpc.DeleteConnectionReply, error)
}

// Connection is the polymorphic contract both engine variants satisfy
// (spec.md §4.7).
type Connection interface {
	Establish(ctx *mcmctx.Context) error
	Shutdown(ctx *mcmctx.Context) error
	GetBuffer(ctx *mcmctx.Context, timeoutMs int) (*Buffer, error)
	PutBuffer(ctx *mcmctx.Context, buf *Buffer, timeoutMs int) error
	State() mcmtype.ConnectionState
}

// resolveTimeout substitutes the connection's configured default for
// TimeoutDefault; all other sentinel and positive values pass through
// unchanged to the endpoint's dequeue contract.
func resolveTimeout(timeoutMs, defaultMs int) int {
	if timeoutMs == mcmtype.TimeoutDefault {
		return defaultMs
	}
	return timeoutMs
}

// activateWithRetry calls ActivateConnection in a tight loop with
// activateRetryInterval sleeps while linked == false and ctx is live,
// the SDK-side half of spec.md §4.6's activation contract.
func activateWithRetry(ctx *mcmctx.Context, client ProxyClient, req *proxyrpc.ActivateConnectionRequest) error {
	for {
		reply, err := client.ActivateConnection(ctx, req)
		if err != nil {
			return err
		}
		if reply.Linked {
			return nil
		}
		if cancelled := mcmctx.Sleep(ctx, activateRetryInterval); cancelled {
			return mcmerr.New(mcmerr.ConnClosed, "mcmconn.activateWithRetry", nil)
		}
	}
}
