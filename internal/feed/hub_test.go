package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil, nil)
	router := gin.New()
	router.GET("/ws", hub.ServeWS)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, time.Second, 5*time.Millisecond)
}

func TestHub_FiltersByNode(t *testing.T) {
	hub, server := newTestServer(t)
	all := dial(t, server, "")
	kitchen := dial(t, server, "?node_id=kitchen")
	waitForClients(t, hub, 2)

	hub.Publish(Event{Type: EventCookCompleted, NodeIDs: []string{"pantry"}, Data: map[string]int{"n": 1}})
	hub.Publish(Event{Type: EventTransitArrived, NodeIDs: []string{"pantry", "kitchen"}})

	var got Event
	all.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, EventCookCompleted, got.Type)
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, EventTransitArrived, got.Type)

	// the kitchen client never sees the pantry-only event
	kitchen.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, kitchen.ReadJSON(&got))
	assert.Equal(t, EventTransitArrived, got.Type)
	assert.False(t, got.Time.IsZero())
}

func TestHub_SubscriptionMessageChangesFilter(t *testing.T) {
	hub, server := newTestServer(t)
	conn := dial(t, server, "")
	waitForClients(t, hub, 1)

	msg, _ := json.Marshal(subscription{NodeID: "kitchen"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			return !c.wants([]string{"pantry"})
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, server := newTestServer(t)
	conn := dial(t, server, "")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
