// Package mcmsdk is the public SDK surface of spec.md §6: the
// free-function, opaque-handle API (create_client, create_tx_connection,
// get_buffer, put_buffer, err2str, ...) that a language binding or a
// CLI like cmd/meshctl calls directly. It is a thin translation layer
// over pkg/mcmclient: every function here does nothing but convert
// between the public handle types and pkg/mcmclient's Go-idiomatic
// ones, and convert internal errors into the stable numeric codes the
// boundary contract promises (spec.md §7 — "err2str(code) is the only
// way a caller outside this module recovers a human string").
package mcmsdk

import (
	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmclient"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmconn"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

// ErrorCode is the stable numeric error code crossing the public API
// boundary; it is mcmerr.Code renamed at this layer so callers outside
// this module never need to import an internal package.
type ErrorCode = mcmerr.Code

// Timeout sentinels accepted by GetBuffer/GetBufferTimeout, re-exported
// from mcmtype for callers that only import mcmsdk.
const (
	TimeoutDefault  = mcmtype.TimeoutDefault
	TimeoutInfinite = mcmtype.TimeoutInfinite
	TimeoutZero     = mcmtype.TimeoutZero
)

// ConnectionKind selects create_tx_connection vs create_rx_connection.
type ConnectionKind = mcmtype.ConnectionKind

const (
	Sender   = mcmtype.Sender
	Receiver = mcmtype.Receiver
)

// Client is the opaque handle create_client returns.
type Client struct{ c *mcmclient.Client }

// Connection is the opaque handle create_tx_connection/
// create_rx_connection return.
type Connection struct{ h *mcmclient.ConnectionHandle }

// Buffer is the opaque handle get_buffer/get_buffer_timeout return. It
// carries a non-owning back-reference to the connection it came from,
// so put_buffer/put_buffer_timeout don't need that connection passed
// in again, matching the {payload_ptr, payload_len, metadata_ptr,
// metadata_len, conn*} shape spec.md §4.7 describes.
type Buffer struct {
	buf  *mcmconn.Buffer
	conn *Connection
}

// CreateClient is create_client(cfg_json): parses and validates
// cfgJSON, dials the proxy it names, and registers.
func CreateClient(cfgJSON []byte) (*Client, error) {
	c, err := mcmclient.New(cfgJSON)
	if err != nil {
		return nil, err
	}
	return &Client{c: c}, nil
}

// DeleteClient is delete_client(client): refuses while any connection
// on it is still live, per spec.md §4.8.
func DeleteClient(client *Client) error {
	return client.c.Shutdown()
}

// CreateTxConnection is create_tx_connection(client, conn_cfg_json).
func CreateTxConnection(client *Client, connCfgJSON []byte) (*Connection, error) {
	h, err := client.c.CreateConnection(Sender, connCfgJSON)
	if err != nil {
		return nil, err
	}
	return &Connection{h: h}, nil
}

// CreateRxConnection is create_rx_connection(client, conn_cfg_json).
func CreateRxConnection(client *Client, connCfgJSON []byte) (*Connection, error) {
	h, err := client.c.CreateConnection(Receiver, connCfgJSON)
	if err != nil {
		return nil, err
	}
	return &Connection{h: h}, nil
}

// ShutdownConnection is shutdown_connection(conn): idempotent per
// spec.md §8.
func ShutdownConnection(conn *Connection) error {
	return conn.h.Shutdown()
}

// DeleteConnection is delete_connection(conn): implicitly shuts the
// connection down first if the caller skipped that step, then
// releases it. Idempotent.
func DeleteConnection(conn *Connection) error {
	return conn.h.Delete()
}

// GetBuffer is get_buffer(conn): uses the client's configured default
// timeout.
func GetBuffer(conn *Connection) (*Buffer, error) {
	return GetBufferTimeout(conn, TimeoutDefault)
}

// GetBufferTimeout is get_buffer_timeout(conn, timeout_ms).
func GetBufferTimeout(conn *Connection, timeoutMs int) (*Buffer, error) {
	buf, err := conn.h.GetBuffer(timeoutMs)
	if err != nil {
		return nil, err
	}
	return &Buffer{buf: buf, conn: conn}, nil
}

// PutBuffer is put_buffer(buffer): the connection comes from the
// buffer's own back-reference, not a separate argument.
func PutBuffer(buf *Buffer) error {
	return PutBufferTimeout(buf, TimeoutDefault)
}

// PutBufferTimeout is put_buffer_timeout(buffer, timeout_ms).
func PutBufferTimeout(buf *Buffer, timeoutMs int) error {
	return buf.conn.h.PutBuffer(buf.buf, timeoutMs)
}

// BufferSetPayloadLen is buffer_set_payload_len(buffer, len).
func BufferSetPayloadLen(buf *Buffer, n uint32) error {
	return buf.buf.SetPayloadLen(n)
}

// BufferSetMetadataLen is buffer_set_metadata_len(buffer, len).
func BufferSetMetadataLen(buf *Buffer, n uint32) error {
	return buf.buf.SetMetadataLen(n)
}

// Payload returns the buffer's live payload slice.
func (b *Buffer) Payload() []byte { return b.buf.Payload() }

// Metadata returns the buffer's live metadata slice.
func (b *Buffer) Metadata() []byte { return b.buf.Metadata() }

// Err2Str is err2str(code): the only sanctioned way a caller outside
// this module recovers a human-readable string for an error code.
func Err2Str(code ErrorCode) string {
	return mcmerr.Err2Str(code)
}

// CodeOf extracts the stable numeric code from an error this package
// returned, for callers that need to branch on it rather than just log
// or display it.
func CodeOf(err error) (ErrorCode, bool) {
	return mcmerr.CodeOf(err)
}

// ConnectionID returns this connection's identifier, a uuid generated
// by the client when the connection was created.
func (conn *Connection) ConnectionID() string { return conn.h.ID() }

// State reports the connection's lifecycle position.
func (conn *Connection) State() mcmtype.ConnectionState { return conn.h.State() }

// ClientID returns the identifier the proxy assigned this client.
func (c *Client) ClientID() string { return c.c.ClientID() }
