// Package freshness decides whether an inbound record is a live arrival or
// historical backfill. Only live arrivals may notify; backfill is served to
// the dashboard through the store, never through the dispatcher.
package freshness

import (
	"time"

	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/models"
)

// DefaultWindow matches the recency window the dashboard has always used.
const DefaultWindow = 60 * time.Second

// Filter classifies records against a recency window.
type Filter struct {
	window time.Duration
	now    func() time.Time
	logger *logrus.Logger
}

// New builds a Filter. A non-positive window falls back to DefaultWindow;
// a nil clock falls back to time.Now.
func New(window time.Duration, logger *logrus.Logger, now func() time.Time) *Filter {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Filter{window: window, now: now, logger: logger}
}

// Window returns the admission window.
func (f *Filter) Window() time.Duration {
	return f.window
}

// IsFresh reports whether ev arrived within the recency window. Records
// timestamped in the future (negative age, clock skew) and records whose
// time failed to parse are stale; both are dropped quietly rather than
// treated as errors.
func (f *Filter) IsFresh(ev models.RawEvent) bool {
	_, ok := f.admit(ev)
	return ok
}

// Admit classifies ev and, when fresh, returns its normalized form stamped
// with the local observation time.
func (f *Filter) Admit(ev models.RawEvent) (models.NormalizedEvent, bool) {
	return f.admit(ev)
}

func (f *Filter) admit(ev models.RawEvent) (models.NormalizedEvent, bool) {
	origin, ok := ev.Time.Time()
	if !ok {
		f.logger.Warnf("Event %s has unparseable time, treating as stale", ev.ID)
		return models.NormalizedEvent{}, false
	}

	receivedAt := f.now()
	age := receivedAt.Sub(origin)
	if age < 0 {
		f.logger.Debugf("Event %s timestamped %s in the future, treating as stale", ev.ID, -age)
		return models.NormalizedEvent{}, false
	}
	if age >= f.window {
		return models.NormalizedEvent{}, false
	}

	return models.NormalizedEvent{
		RawEvent:   ev,
		ReceivedAt: receivedAt,
		AgeSeconds: age.Seconds(),
	}, true
}
