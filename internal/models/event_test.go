package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTime_RFC3339(t *testing.T) {
	var ev RawEvent
	err := json.Unmarshal([]byte(`{"id":"e1","time":"2026-08-28T10:30:00Z"}`), &ev)
	require.NoError(t, err)

	got, ok := ev.Time.Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC), got.UTC())
}

func TestEventTime_EpochSeconds(t *testing.T) {
	var ev RawEvent
	err := json.Unmarshal([]byte(`{"id":"e1","time":1724840000}`), &ev)
	require.NoError(t, err)

	got, ok := ev.Time.Time()
	require.True(t, ok)
	assert.Equal(t, int64(1724840000), got.Unix())
}

func TestEventTime_EpochMillis(t *testing.T) {
	var ev RawEvent
	err := json.Unmarshal([]byte(`{"id":"e1","time":1724840000500}`), &ev)
	require.NoError(t, err)

	got, ok := ev.Time.Time()
	require.True(t, ok)
	assert.Equal(t, int64(1724840000), got.Unix())
	assert.Equal(t, 500*int(time.Millisecond), got.Nanosecond())
}

func TestEventTime_FirestoreObject(t *testing.T) {
	var ev RawEvent
	err := json.Unmarshal([]byte(`{"id":"e1","time":{"seconds":1724840000,"nanos":250000000}}`), &ev)
	require.NoError(t, err)

	got, ok := ev.Time.Time()
	require.True(t, ok)
	assert.Equal(t, int64(1724840000), got.Unix())
	assert.Equal(t, 250000000, got.Nanosecond())
}

func TestEventTime_MalformedDoesNotFailDecode(t *testing.T) {
	cases := []string{
		`{"id":"e1","time":"not-a-date"}`,
		`{"id":"e1","time":null}`,
		`{"id":"e1","time":{"nanos":5}}`,
		`{"id":"e1","time":-100}`,
		`{"id":"e1"}`,
	}
	for _, raw := range cases {
		var ev RawEvent
		err := json.Unmarshal([]byte(raw), &ev)
		require.NoError(t, err, "decode of %s must not fail", raw)

		_, ok := ev.Time.Time()
		assert.False(t, ok, "time in %s must be invalid", raw)
		assert.Equal(t, "e1", ev.ID, "the record itself must survive a bad time field")
	}
}

func TestEventTime_MarshalRoundTrip(t *testing.T) {
	et := NewEventTime(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC))
	data, err := json.Marshal(et)
	require.NoError(t, err)
	assert.Equal(t, `"2026-08-28T10:00:00Z"`, string(data))

	data, err = json.Marshal(EventTime{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestRawEvent_Validate(t *testing.T) {
	assert.Error(t, RawEvent{}.Validate())
	assert.NoError(t, RawEvent{ID: "e1"}.Validate())
}

func TestPushMessage_Normalize(t *testing.T) {
	var msg PushMessage
	msg.Normalize()
	assert.Equal(t, DefaultTitle, msg.Notification.Title)
	assert.Equal(t, DefaultBody, msg.Notification.Body)

	msg = PushMessage{Notification: PushNotification{Title: "Custom", Body: "Something"}}
	msg.Normalize()
	assert.Equal(t, "Custom", msg.Notification.Title)
	assert.Equal(t, "Something", msg.Notification.Body)
}
