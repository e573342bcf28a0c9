package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EventTime is an event origin timestamp as found on the wire. Monitors and
// backends disagree about the representation, so it accepts an RFC3339
// string, an epoch seconds number (millisecond epochs are detected by
// magnitude, fractional seconds are kept), or a Firestore-style
// {"seconds":..,"nanos":..} object.
//
// An unparseable value does not fail the enclosing decode; it yields an
// invalid EventTime, which downstream classification treats as stale. The
// record itself must survive so the stream is not aborted by one bad field.
type EventTime struct {
	t     time.Time
	valid bool
}

// NewEventTime wraps a known-good instant.
func NewEventTime(t time.Time) EventTime {
	return EventTime{t: t, valid: true}
}

// Time returns the parsed instant and whether the original value parsed.
func (et EventTime) Time() (time.Time, bool) {
	return et.t, et.valid
}

// epoch values at or above this are taken as milliseconds
const millisEpochThreshold = 1e12

func (et *EventTime) UnmarshalJSON(data []byte) error {
	et.valid = false

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			et.t = t
			et.valid = true
		}
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		if n <= 0 {
			return nil
		}
		if n >= millisEpochThreshold {
			n /= 1000
		}
		sec := int64(n)
		nsec := int64((n - float64(sec)) * float64(time.Second))
		et.t = time.Unix(sec, nsec).UTC()
		et.valid = true
		return nil
	}

	var obj struct {
		Seconds *int64 `json:"seconds"`
		Nanos   int64  `json:"nanos"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Seconds != nil {
		et.t = time.Unix(*obj.Seconds, obj.Nanos).UTC()
		et.valid = true
	}
	return nil
}

func (et EventTime) MarshalJSON() ([]byte, error) {
	if !et.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(et.t.Format(time.RFC3339Nano))), nil
}

// RawEvent is a monitoring event as received from a transport, before any
// freshness classification.
type RawEvent struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Time        EventTime `json:"time"`
	IsHandled   bool      `json:"isHandled"`
	DeviceID    string    `json:"deviceId"`
	PatientID   string    `json:"patientId"`
	Description string    `json:"description,omitempty"`
}

// Validate rejects records the pipeline cannot correlate. A missing or
// unparseable time is not a validation error: such records are still stored
// and served, they just never notify.
func (e RawEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event missing id")
	}
	return nil
}

// NormalizedEvent is a RawEvent admitted by the freshness filter, stamped
// with the local observation time. Constructed once per admission and never
// mutated afterwards.
type NormalizedEvent struct {
	RawEvent
	ReceivedAt time.Time
	AgeSeconds float64
}
