package proxyrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/internal/mlog"
)

// Default call timeouts, per spec.md §4.6/§4.8: most proxy calls get a
// short default budget, connection lifecycle calls get a larger one to
// accommodate the proxy provisioning real transport resources.
const (
	DefaultCallTimeout    = 5 * time.Second
	CreateCallTimeout     = 20 * time.Second
	ActivateCallTimeout   = 20 * time.Second
	registrationWaitLimit = 15 * time.Second
)

var callOpt = grpc.CallContentSubtype(codecName)

// Client is C6: the RPC client a ClientContext (C8) owns for its
// whole lifetime.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the media-proxy control endpoint ("host:port").
// Dialing is lazy in google.golang.org/grpc: the TCP connection is
// only attempted on first RPC, matching client/client.go's
// grpc.NewClient + insecure credentials pattern.
func Dial(endpoint string) (*Client, error) {
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(callOpt),
	)
	if err != nil {
		return nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.Dial", err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// CreateConnection asks the proxy to allocate transport resources for
// one connection.
func (c *Client) CreateConnection(ctx context.Context, req *CreateConnectionRequest) (*CreateConnectionReply, error) {
	ctx, cancel := context.WithTimeout(ctx, CreateCallTimeout)
	defer cancel()
	if req.Budget == nil {
		req.Budget = durationpb.New(CreateCallTimeout)
	}
	out := new(CreateConnectionReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/CreateConnection", req, out, callOpt); err != nil {
		return nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.CreateConnection", err)
	}
	if !out.Ok {
		return nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.CreateConnection", fmt.Errorf("proxy: %s", out.Error))
	}
	return out, nil
}

// ActivateConnection transitions a created connection to active once
// the local endpoint is attached.
func (c *Client) ActivateConnection(ctx context.Context, req *ActivateConnectionRequest) (*ActivateConnectionReply, error) {
	ctx, cancel := context.WithTimeout(ctx, ActivateCallTimeout)
	defer cancel()
	out := new(ActivateConnectionReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/ActivateConnection", req, out, callOpt); err != nil {
		return nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.ActivateConnection", err)
	}
	if !out.Ok {
		return nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.ActivateConnection", fmt.Errorf("proxy: %s", out.Error))
	}
	return out, nil
}

// DeleteConnection tears a connection down on the proxy side.
func (c *Client) DeleteConnection(ctx context.Context, req *DeleteConnectionRequest) (*DeleteConnectionReply, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultCallTimeout)
	defer cancel()
	if req.Budget == nil {
		req.Budget = durationpb.New(DefaultCallTimeout)
	}
	out := new(DeleteConnectionReply)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/DeleteConnection", req, out, callOpt); err != nil {
		return nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.DeleteConnection", err)
	}
	if !out.Ok {
		return nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.DeleteConnection", fmt.Errorf("proxy: %s", out.Error))
	}
	return out, nil
}

// RegisterAndStreamEvents opens the client's long-lived event channel
// and blocks until the proxy's first message — always an
// EventClientRegistered carrying the client id the proxy assigned —
// arrives, or registrationWaitLimit elapses, matching the SDK startup
// contract of spec.md §4.8 ("the client waits up to 15s for the
// registration stream to come up before declaring the proxy
// unreachable") and the registration handshake of spec.md §6. The
// returned channel delivers every event after that one and is closed
// when the stream ends; the caller should keep draining it for the
// life of the client.
func (c *Client) RegisterAndStreamEvents(ctx context.Context) (string, <-chan *Event, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	desc := &grpc.StreamDesc{StreamName: "RegisterAndStreamEvents", ServerStreams: true}
	stream, err := c.conn.NewStream(streamCtx, desc, "/"+serviceName+"/RegisterAndStreamEvents", callOpt)
	if err != nil {
		cancel()
		return "", nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.RegisterAndStreamEvents", err)
	}
	if err := stream.SendMsg(&RegisterClientRequest{}); err != nil {
		cancel()
		return "", nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.RegisterAndStreamEvents", err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return "", nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.RegisterAndStreamEvents", err)
	}

	type ackResult struct {
		clientID string
		err      error
	}
	ack := make(chan ackResult, 1)
	go func() {
		evt := new(Event)
		if err := stream.RecvMsg(evt); err != nil {
			ack <- ackResult{err: err}
			return
		}
		if evt.Type != EventClientRegistered || evt.ClientID == "" {
			ack <- ackResult{err: fmt.Errorf("proxy sent %q as the first event, want %q with a client id", evt.Type, EventClientRegistered)}
			return
		}
		ack <- ackResult{clientID: evt.ClientID}
	}()

	select {
	case res := <-ack:
		if res.err != nil {
			cancel()
			return "", nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.RegisterAndStreamEvents", res.err)
		}

		events := make(chan *Event, 16)
		log := mlog.Component("proxyrpc")
		go func() {
			defer cancel()
			defer close(events)
			for {
				evt := new(Event)
				if err := stream.RecvMsg(evt); err != nil {
					if !isStreamEOF(err) {
						log.Warn().Err(err).Msg("event stream ended")
					}
					return
				}
				select {
				case events <- evt:
				case <-streamCtx.Done():
					return
				}
			}
		}()
		return res.clientID, events, nil
	case <-time.After(registrationWaitLimit):
		cancel()
		return "", nil, mcmerr.New(mcmerr.ConnFailed, "proxyrpc.RegisterAndStreamEvents",
			fmt.Errorf("proxy did not acknowledge registration within %s", registrationWaitLimit))
	}
}

func isStreamEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
