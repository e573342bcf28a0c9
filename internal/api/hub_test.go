package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homepal-gateway/internal/models"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestHub_PublishShape(t *testing.T) {
	hub := NewHub(testLogger())
	conn, done := dialHub(t, hub)
	defer done()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	ev := models.NormalizedEvent{
		RawEvent: models.RawEvent{ID: "e1", Action: "Bed-Exit", Time: models.NewEventTime(time.Now())},
	}
	hub.Publish(models.NotificationPayload{
		Title:       "HomePal Alert",
		Body:        "New event: Bed-Exit",
		Icon:        "/logo192.png",
		SourceEvent: &ev,
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg models.PushMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "HomePal Alert", msg.Notification.Title)
	assert.Equal(t, "New event: Bed-Exit", msg.Notification.Body)
	assert.Equal(t, "/logo192.png", msg.Notification.Icon)
	require.NotNil(t, msg.Data)
	assert.Equal(t, "e1", msg.Data.ID)
}

func TestHub_ClientDisconnectTracked(t *testing.T) {
	hub := NewHub(testLogger())
	conn, done := dialHub(t, hub)
	defer done()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_StalledClientEvicted(t *testing.T) {
	hub := NewHub(testLogger())
	hub.writeWait = 50 * time.Millisecond
	_, done := dialHub(t, hub) // client never reads
	defer done()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	// large payloads fill the socket buffers until a write blocks; the
	// deadline then trips and the client is dropped
	payload := models.NotificationPayload{Title: "HomePal Alert", Body: strings.Repeat("x", 1<<20)}
	require.Eventually(t, func() bool {
		hub.Publish(payload)
		return hub.ClientCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHub_CloseDisconnectsAll(t *testing.T) {
	hub := NewHub(testLogger())
	_, done := dialHub(t, hub)
	defer done()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)
	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())
	assert.NotPanics(t, hub.Close)

	// publishing to an empty hub is harmless
	assert.NotPanics(t, func() {
		hub.Publish(models.NotificationPayload{Title: "x", Body: "y"})
	})
}
