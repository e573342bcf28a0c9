// Package registry implements the in-app notification fan-out: an
// insertion-ordered subscriber list with snapshot-iteration broadcasts.
package registry

import (
	"sync"

	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/models"
)

// Func receives every broadcast payload.
type Func func(models.NotificationPayload)

// Subscription identifies one registration. Every Register call returns a
// distinct Subscription, even for the same function value: Go functions are
// not comparable, so identity lives in the handle, and registering a
// function twice delivers each broadcast to it twice. Callers that want
// at-most-once delivery hold on to the handle and register once.
type Subscription struct {
	fn     Func
	closed bool
}

// Registry is a broadcast list for notification payloads. Broadcast iterates
// a snapshot of the list taken when the broadcast starts: a subscriber added
// or removed mid-broadcast does not affect the in-flight broadcast, only the
// next one.
type Registry struct {
	mu     sync.Mutex
	subs   []*Subscription
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register appends fn to the subscriber list. A nil fn returns a nil
// Subscription, which Unregister ignores.
func (r *Registry) Register(fn Func) *Subscription {
	if fn == nil {
		return nil
	}
	sub := &Subscription{fn: fn}
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return sub
}

// Unregister removes sub from the list. Safe to call more than once, with a
// nil handle, and from inside a subscriber callback during a broadcast; the
// broadcast already in flight still delivers to sub, later ones do not.
func (r *Registry) Unregister(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	for i, s := range r.subs {
		if s == sub {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			break
		}
	}
}

// Len reports the current number of subscribers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Broadcast delivers payload to every subscriber registered at the time of
// the call. A panicking subscriber is logged and does not stop delivery to
// the rest.
func (r *Registry) Broadcast(payload models.NotificationPayload) {
	r.mu.Lock()
	snapshot := make([]*Subscription, len(r.subs))
	copy(snapshot, r.subs)
	r.mu.Unlock()

	for _, sub := range snapshot {
		r.invoke(sub, payload)
	}
}

func (r *Registry) invoke(sub *Subscription, payload models.NotificationPayload) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("Notification subscriber panicked: %v", rec)
		}
	}()
	sub.fn(payload)
}
