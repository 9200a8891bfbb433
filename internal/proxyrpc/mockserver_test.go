package proxyrpc

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
)

// mockServer is a minimal in-test stand-in for the real media-proxy
// control plane, adapted from the teacher's servo/server.go: a single
// mutex-guarded map of live connections plus one handler method per
// RPC. It exists so internal/proxyrpc's own tests can exercise the real
// grpc.ClientConn/grpc.Server wire path without a real proxy process;
// being a _test.go type, it is not importable by other packages' tests.
type mockServer struct {
	mu          sync.Mutex
	connections map[string]bool
	attempts    map[string]int
	linkAfter   int

	eventsMu     sync.Mutex
	streams      []mediaProxyRegisterAndStreamEventsServer
	nextClientID int

	failCreate bool
}

func newMockServer() *mockServer {
	return &mockServer{
		connections: make(map[string]bool),
		attempts:    make(map[string]int),
		linkAfter:   1,
	}
}

func (s *mockServer) CreateConnection(ctx context.Context, req *CreateConnectionRequest) (*CreateConnectionReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return &CreateConnectionReply{Ok: false, Error: "mock: create disabled"}, nil
	}
	s.connections[req.ConnectionID] = false
	return &CreateConnectionReply{
		Ok:           true,
		MemifSocket:  fmt.Sprintf("/run/mcm/%s.sock", req.ConnectionID),
		MemifID:      1,
		SysvShmKey:   42,
		SysvRegionSz: 4096,
	}, nil
}

func (s *mockServer) ActivateConnection(ctx context.Context, req *ActivateConnectionRequest) (*ActivateConnectionReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[req.ConnectionID]; !ok {
		return &ActivateConnectionReply{Ok: false, Error: "mock: unknown connection"}, nil
	}
	s.attempts[req.ConnectionID]++
	linked := s.attempts[req.ConnectionID] >= s.linkAfter
	s.connections[req.ConnectionID] = linked
	return &ActivateConnectionReply{Ok: true, Linked: linked}, nil
}

func (s *mockServer) DeleteConnection(ctx context.Context, req *DeleteConnectionRequest) (*DeleteConnectionReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[req.ConnectionID]; !ok {
		return &DeleteConnectionReply{Ok: false, Error: "mock: unknown connection"}, nil
	}
	delete(s.connections, req.ConnectionID)
	return &DeleteConnectionReply{Ok: true}, nil
}

func (s *mockServer) RegisterAndStreamEvents(req *RegisterClientRequest, stream mediaProxyRegisterAndStreamEventsServer) error {
	if err := stream.SendHeader(nil); err != nil {
		return err
	}

	s.eventsMu.Lock()
	s.nextClientID++
	clientID := fmt.Sprintf("mock-client-%d", s.nextClientID)
	if err := stream.Send(&Event{Type: EventClientRegistered, ClientID: clientID}); err != nil {
		s.eventsMu.Unlock()
		return err
	}
	s.streams = append(s.streams, stream)
	s.eventsMu.Unlock()

	<-stream.Context().Done()
	return nil
}

// broadcast pushes evt to every registered client stream, used by
// tests to simulate the proxy announcing out-of-band connection state.
func (s *mockServer) broadcast(evt *Event) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	for _, st := range s.streams {
		_ = st.Send(evt)
	}
}

func (s *mockServer) grpcServer() *grpc.Server {
	srv := grpc.NewServer()
	registerMediaProxyServer(srv, s)
	return srv
}
