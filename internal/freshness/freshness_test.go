package freshness

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homepal-gateway/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
}

func eventAt(t time.Time) models.RawEvent {
	return models.RawEvent{ID: "e1", Action: "Bed-Exit", Time: models.NewEventTime(t)}
}

func TestFilter_FreshWithinWindow(t *testing.T) {
	f := New(60*time.Second, testLogger(), func() time.Time { return fixedNow() })

	ev, ok := f.Admit(eventAt(fixedNow().Add(-5 * time.Second)))
	require.True(t, ok)
	assert.Equal(t, fixedNow(), ev.ReceivedAt)
	assert.InDelta(t, 5.0, ev.AgeSeconds, 0.001)
	assert.Equal(t, "Bed-Exit", ev.Action)
}

func TestFilter_ZeroAgeIsFresh(t *testing.T) {
	f := New(60*time.Second, testLogger(), func() time.Time { return fixedNow() })
	assert.True(t, f.IsFresh(eventAt(fixedNow())))
}

func TestFilter_WindowBoundaryIsStale(t *testing.T) {
	f := New(60*time.Second, testLogger(), func() time.Time { return fixedNow() })
	assert.False(t, f.IsFresh(eventAt(fixedNow().Add(-60*time.Second))))
	assert.True(t, f.IsFresh(eventAt(fixedNow().Add(-59*time.Second))))
}

func TestFilter_FutureTimestampIsStale(t *testing.T) {
	f := New(60*time.Second, testLogger(), func() time.Time { return fixedNow() })
	assert.False(t, f.IsFresh(eventAt(fixedNow().Add(10*time.Second))))
}

func TestFilter_UnparseableTimeIsStale(t *testing.T) {
	f := New(60*time.Second, testLogger(), func() time.Time { return fixedNow() })

	var ev models.RawEvent
	require.NoError(t, json.Unmarshal([]byte(`{"id":"e1","time":"not-a-date"}`), &ev))

	assert.NotPanics(t, func() {
		assert.False(t, f.IsFresh(ev))
	})
}

func TestFilter_ConfigurableWindow(t *testing.T) {
	f := New(5*time.Minute, testLogger(), func() time.Time { return fixedNow() })
	assert.True(t, f.IsFresh(eventAt(fixedNow().Add(-2*time.Minute))))
	assert.False(t, f.IsFresh(eventAt(fixedNow().Add(-6*time.Minute))))
}

func TestFilter_DefaultsApplied(t *testing.T) {
	f := New(0, testLogger(), nil)
	assert.Equal(t, DefaultWindow, f.window)

	// nil clock falls back to time.Now
	assert.True(t, f.IsFresh(eventAt(time.Now().Add(-time.Second))))
}
