package proxyrpc

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/durationpb"
)

// RegisterClientRequest opens the long-lived event stream a
// ClientContext keeps for the lifetime of the process (spec.md §4.8).
// It carries no client-chosen id: per spec.md §6 the proxy assigns the
// client id on registration and returns it in the stream's first
// client_registered event.
type RegisterClientRequest struct{}

// CreateConnectionRequest asks the proxy to allocate a connection.
// Config is the slot for the connection's JSON config document;
// MemifConnection and ZeroCopyConnection do not fill it, so their
// requests carry no config and the proxy sees only the id and kind.
type CreateConnectionRequest struct {
	ClientID     string          `json:"clientId"`
	ConnectionID string          `json:"connectionId"`
	Kind         string          `json:"kind"`
	Config       json.RawMessage `json:"config"`

	// Budget is the client-side budget for this call, wire-typed as a
	// protobuf Duration so the proxy can log a client-reported budget
	// alongside the grpc deadline it already sees on the call context.
	// Client.CreateConnection fills it with CreateCallTimeout when the
	// caller leaves it nil.
	Budget *durationpb.Duration `json:"budget,omitempty"`
}

// CreateConnectionReply carries the proxy-assigned transport
// parameters (memif socket path, or the SysV key for zero-copy) a
// Connection Context needs to attach its endpoint.
type CreateConnectionReply struct {
	Ok           bool   `json:"ok"`
	Error        string `json:"error,omitempty"`
	MemifSocket  string `json:"memifSocket,omitempty"`
	MemifID      uint32 `json:"memifId,omitempty"`
	SysvShmKey   int    `json:"sysvShmKey,omitempty"`
	SysvRegionSz uint32 `json:"sysvRegionSize,omitempty"`
}

// ActivateConnectionRequest transitions a created connection into the
// active state once its local endpoint is attached and ready.
type ActivateConnectionRequest struct {
	ClientID     string `json:"clientId"`
	ConnectionID string `json:"connectionId"`
}

// ActivateConnectionReply reports whether the proxy has finished
// wiring up the peer. The caller retries on Linked == false.
type ActivateConnectionReply struct {
	Ok     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Linked bool   `json:"linked"`
}

// DeleteConnectionRequest tears a connection down on the proxy side.
type DeleteConnectionRequest struct {
	ClientID     string               `json:"clientId"`
	ConnectionID string               `json:"connectionId"`
	Budget       *durationpb.Duration `json:"budget,omitempty"`
}

// DeleteConnectionReply acknowledges teardown.
type DeleteConnectionReply struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Event is one message on the server-streaming channel opened by
// RegisterAndStreamEvents: out-of-band notifications about connections
// the proxy owns (conn_unlink_requested, logger_config_changed), plus
// the registration handshake itself. The first Event the proxy ever
// sends on a stream is always EventClientRegistered, carrying the
// proxy-assigned client id in ClientID.
type Event struct {
	ConnectionID string `json:"connectionId,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	Type         string `json:"type"`
	Detail       string `json:"detail,omitempty"`
}

// EventClientRegistered is the event type the proxy sends as the first
// message on a freshly opened event stream, acknowledging registration
// and assigning the client its id (spec.md §6).
const EventClientRegistered = "client_registered"
