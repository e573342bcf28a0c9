package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homepal-gateway/internal/lifecycle"
	"homepal-gateway/internal/models"
)

func fastBackoff() lifecycle.BackoffConfig {
	return lifecycle.BackoffConfig{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestSocket_EventFrame(t *testing.T) {
	s := NewSocket(testLogger(), fastBackoff())

	var c collector
	unsub := s.Subscribe(c.fn)
	defer unsub()

	s.handle([]byte(`{"type":"event","data":{"id":"e1","action":"Bed-Exit","time":"2026-08-28T10:00:00Z","deviceId":"d1","patientId":"p1"}}`))

	got := c.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].Event.ID)
	assert.Equal(t, "Bed-Exit", got[0].Event.Action)
	assert.Equal(t, SourceSocket, got[0].Source)
	assert.False(t, got[0].Initial, "socket arrivals are live by construction")
}

func TestSocket_NotificationFrame(t *testing.T) {
	s := NewSocket(testLogger(), fastBackoff())

	var mu sync.Mutex
	var msgs []models.PushMessage
	s.OnNotification(func(m models.PushMessage) {
		mu.Lock()
		msgs = append(msgs, m)
		mu.Unlock()
	})

	s.handle([]byte(`{"type":"notification","data":{"notification":{"title":"HomePal Alert","body":"New event: Bed-Exit"}}}`))
	require.Len(t, msgs, 1)
	assert.Equal(t, "HomePal Alert", msgs[0].Notification.Title)

	// missing fields are repaired at the boundary
	s.handle([]byte(`{"type":"notification","data":{}}`))
	require.Len(t, msgs, 2)
	assert.Equal(t, models.DefaultTitle, msgs[1].Notification.Title)
	assert.Equal(t, models.DefaultBody, msgs[1].Notification.Body)
}

func TestSocket_MalformedFramesDropped(t *testing.T) {
	s := NewSocket(testLogger(), fastBackoff())

	var c collector
	defer s.Subscribe(c.fn)()

	assert.NotPanics(t, func() {
		s.handle([]byte(`not json`))
		s.handle([]byte(`{"type":"event","data":"nope"}`))
		s.handle([]byte(`{"type":"event","data":{"action":"no-id"}}`))
		s.handle([]byte(`{"type":"mystery","data":{}}`))
	})
	assert.Equal(t, 0, c.count())
}

func TestSocket_ConnectRejectsBadEndpoint(t *testing.T) {
	s := NewSocket(testLogger(), fastBackoff())
	defer s.Close()

	assert.False(t, s.Connect(""))
	assert.False(t, s.Connect("http://example.com/ws"), "only ws/wss schemes are accepted")
	assert.False(t, s.Connect("://bad"))
	assert.Equal(t, lifecycle.Disconnected, s.State())
}

func TestSocket_ConnectInitiatesAndCloseIsIdempotent(t *testing.T) {
	s := NewSocket(testLogger(), fastBackoff())

	// nothing listens on this port; the attempt is still initiated
	assert.True(t, s.Connect("ws://127.0.0.1:1/ws"))
	assert.False(t, s.Connect("ws://127.0.0.1:1/ws"), "already supervising")

	s.Close()
	assert.NotPanics(t, s.Close)
	assert.False(t, s.IsConnected())
}

func TestFanout_UnsubscribeFromInsideCallback(t *testing.T) {
	var f fanout

	var calls int
	var unsub func()
	unsub = f.subscribe(func(Record) {
		calls++
		unsub()
	})

	rec := Record{Event: ev("e1")}
	assert.NotPanics(t, func() { f.emit(rec) })
	f.emit(rec)
	assert.Equal(t, 1, calls, "no delivery after unsubscribe, even re-entrant")
}
