package proxyrpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func startMockProxy(t *testing.T) (*mockServer, *Client) {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	mock := newMockServer()
	srv := mock.grpcServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(callOpt),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return mock, &Client{conn: conn}
}

func TestCreateActivateDeleteConnectionRoundTrip(t *testing.T) {
	_, client := startMockProxy(t)
	ctx := context.Background()

	reply, err := client.CreateConnection(ctx, &CreateConnectionRequest{ConnectionID: "conn-1", Kind: "sender"})
	require.NoError(t, err)
	require.Equal(t, "/run/mcm/conn-1.sock", reply.MemifSocket)

	actReply, err := client.ActivateConnection(ctx, &ActivateConnectionRequest{ConnectionID: "conn-1"})
	require.NoError(t, err)
	require.True(t, actReply.Ok)

	delReply, err := client.DeleteConnection(ctx, &DeleteConnectionRequest{ConnectionID: "conn-1"})
	require.NoError(t, err)
	require.True(t, delReply.Ok)
}

func TestCreateConnectionFillsDefaultBudget(t *testing.T) {
	_, client := startMockProxy(t)
	ctx := context.Background()

	req := &CreateConnectionRequest{ConnectionID: "conn-budget", Kind: "sender"}
	_, err := client.CreateConnection(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, req.Budget)
	require.Equal(t, CreateCallTimeout, req.Budget.AsDuration())
}

func TestActivateUnknownConnectionFails(t *testing.T) {
	_, client := startMockProxy(t)
	ctx := context.Background()

	_, err := client.ActivateConnection(ctx, &ActivateConnectionRequest{ConnectionID: "missing"})
	require.Error(t, err)
}

func TestRegisterAndStreamEventsDeliversBroadcastEvents(t *testing.T) {
	mock, client := startMockProxy(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientID, events, err := client.RegisterAndStreamEvents(ctx)
	require.NoError(t, err)
	require.Equal(t, "mock-client-1", clientID)

	mock.broadcast(&Event{ConnectionID: "conn-1", Type: "peer_connected"})

	select {
	case evt := <-events:
		require.Equal(t, "conn-1", evt.ConnectionID)
		require.Equal(t, "peer_connected", evt.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast event")
	}
}
