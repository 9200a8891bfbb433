package eventsdebug

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/open-mcm/mesh-dataplane/internal/proxyrpc"
)

func TestHubBroadcastsEventToSubscriber(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(&proxyrpc.Event{ConnectionID: "c1", Type: "conn_unlink_requested"})

	var got proxyrpc.Event
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "c1", got.ConnectionID)
	require.Equal(t, "conn_unlink_requested", got.Type)
}
