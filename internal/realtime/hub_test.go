package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestIsKnownStream(t *testing.T) {
	require.True(t, IsKnownStream(StreamGroves))
	require.True(t, IsKnownStream(StreamRooms))
	require.False(t, IsKnownStream("presence"))
	require.False(t, IsKnownStream(""))
}

func dialTestHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, nil, w, r)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// A pong reply proves the session's read loop is registered and running.
	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	var pong Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, "pong", pong.Event)

	return conn
}

func TestHubBroadcastToUser(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub, "user-1")

	hub.BroadcastToUser(StreamGroves, "user-1", Message{
		Event: EventGroveCreated,
		Data:  map[string]any{"grove_id": "g-1"},
	})

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, StreamGroves, got.Stream)
	require.Equal(t, EventGroveCreated, got.Event)
}

func TestBroadcastReturnsWhenSessionBackpressured(t *testing.T) {
	hub := NewHub()

	serverConns := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	// A session whose write loop never runs: the outbox has no capacity, so
	// the very first delivery hits the backpressure path.
	sess := &session{
		hub:     hub,
		conn:    <-serverConns,
		userID:  "user-1",
		streams: map[string]struct{}{StreamGroves: {}},
		outbox:  make(chan Message),
	}
	hub.mu.Lock()
	hub.sessions["user-1"] = map[*session]struct{}{sess: {}}
	hub.mu.Unlock()

	returned := make(chan struct{})
	go func() {
		hub.BroadcastToUser(StreamGroves, "user-1", Message{Event: EventGroveCompleted})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast blocked on a backpressured session")
	}

	// The slow session gets deregistered, and later broadcasts still work.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, registered := hub.sessions["user-1"]
		return !registered
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastToUser(StreamGroves, "user-1", Message{Event: EventGroveCompleted})
}

func TestHubIgnoresUnknownStreamsAndOtherUsers(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub, "user-1")

	hub.BroadcastStream("presence", Message{Event: "noise"})
	hub.BroadcastToUser(StreamGroves, "someone-else", Message{Event: EventGroveCompleted})
	hub.BroadcastStream(StreamRooms, Message{Event: EventRoomStarted})

	var got Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, StreamRooms, got.Stream)
	require.Equal(t, EventRoomStarted, got.Event)
}
