package observability

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engdocs-qa-platform/models"
)

// dialHub stands up a websocket endpoint whose server side is
// subscribed to the hub and returns the client side.
func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ready := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		unsubscribe := hub.Subscribe(conn)
		close(ready)
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		unsubscribe()
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	<-ready
	return client
}

func TestHubBroadcastDeliversProjection(t *testing.T) {
	hub := NewHub()
	client := dialHub(t, hub)
	require.Equal(t, 1, hub.SubscriberCount())

	event := models.Event{
		Timestamp: time.Now().UTC(),
		Type:      models.EventResponse,
		Level:     models.LevelInfo,
		TraceID:   "trace-9",
		Message:   "answered",
		Response:  "full response text stays out of the projection",
		LatencyMS: 812,
		Status:    models.EventStatusSuccess,
		Provider:  "local-chat",
		Model:     "llama3.1:8b",
	}
	hub.Broadcast(event)

	var got models.EventProjection
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, client.ReadJSON(&got))

	assert.Equal(t, models.EventResponse, got.Type)
	assert.Equal(t, "trace-9", got.TraceID)
	assert.Equal(t, "answered", got.Message)
	assert.Equal(t, int64(812), got.LatencyMS)
	assert.Equal(t, "llama3.1:8b", got.Model)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	client := dialHub(t, hub)
	require.Equal(t, 1, hub.SubscriberCount())

	client.Close()
	// The server read loop notices the close and unsubscribes.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	// Broadcasting into an empty hub is a no-op.
	hub.Broadcast(models.Event{Type: models.EventSystem, Message: "quiet"})
}

func TestHubBroadcastPreservesOrderPerSubscriber(t *testing.T) {
	hub := NewHub()
	client := dialHub(t, hub)
	require.Equal(t, 1, hub.SubscriberCount())

	const n = 20
	for i := 0; i < n; i++ {
		hub.Broadcast(models.Event{
			Type:    models.EventSystem,
			Message: fmt.Sprintf("step-%02d", i),
		})
	}

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < n; i++ {
		var got models.EventProjection
		require.NoError(t, client.ReadJSON(&got))
		assert.Equal(t, fmt.Sprintf("step-%02d", i), got.Message)
	}
}

func TestHubBroadcastWithNoSubscribers(t *testing.T) {
	hub := NewHub()
	assert.Equal(t, 0, hub.SubscriberCount())
	hub.Broadcast(models.Event{Type: models.EventSystem})
}
