package mcmclient

import (
	"sync"

	"github.com/open-mcm/mesh-dataplane/pkg/mcmconn"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmctx"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

// ConnectionHandle is the opaque Connection handle create_tx_connection
// and create_rx_connection return: it pairs one mcmconn.Connection
// (C7) with its own child cancellation context, derived from the
// owning Client's global context, so a proxy unlink event or a
// process signal can cancel this connection's blocking calls without
// touching its siblings — spec.md §9 ("opaque handles across language
// boundaries... internally they are typed values with cancellation
// tokens and ownership").
type ConnectionHandle struct {
	id     string
	client *Client
	conn   mcmconn.Connection

	ctx *mcmctx.Context

	mu      sync.Mutex
	shut    bool
	deleted bool
}

// ID returns the connection identifier: a uuid the client generated
// when creating the connection and sent to the proxy with it.
func (h *ConnectionHandle) ID() string { return h.id }

// State reports the underlying connection's lifecycle position.
func (h *ConnectionHandle) State() mcmtype.ConnectionState {
	return h.conn.State()
}

// GetBuffer delegates to the underlying engine's dequeue, substituting
// this connection's own cancellation context — the public get_buffer/
// get_buffer_timeout pair of spec.md §6 collapse onto one method taking
// the timeout sentinel/value directly.
func (h *ConnectionHandle) GetBuffer(timeoutMs int) (*mcmconn.Buffer, error) {
	return h.conn.GetBuffer(h.ctx, timeoutMs)
}

// PutBuffer delegates to the underlying engine's enqueue.
func (h *ConnectionHandle) PutBuffer(buf *mcmconn.Buffer, timeoutMs int) error {
	return h.conn.PutBuffer(h.ctx, buf, timeoutMs)
}

// Shutdown moves the connection to the shutdown state and asks the
// proxy to delete it. Idempotent per spec.md §8: a second call returns
// nil without repeating the drain or the RPC.
func (h *ConnectionHandle) Shutdown() error {
	h.mu.Lock()
	if h.shut {
		h.mu.Unlock()
		return nil
	}
	h.shut = true
	h.mu.Unlock()

	return h.conn.Shutdown(h.ctx)
}

// Delete releases the handle from the owning client's live set.
// Per spec.md §8 ("calling delete_connection after shutdown_connection
// succeeds"), Delete implicitly shuts the connection down first if the
// caller skipped that step, then removes it; calling Delete twice is a
// no-op the second time.
func (h *ConnectionHandle) Delete() error {
	h.mu.Lock()
	if h.deleted {
		h.mu.Unlock()
		return nil
	}
	h.deleted = true
	h.mu.Unlock()

	err := h.Shutdown()
	h.client.deleteHandle(h.id)
	h.ctx.Cancel()
	return err
}
