// Package transport normalizes the inbound channels (WebSocket push, Kafka,
// polled store snapshots) into a single stream of records. Adapters never
// panic into the caller: channel-level failures are logged and surfaced as
// connection-state changes.
package transport

import (
	"sync"
	"sync/atomic"

	"homepal-gateway/internal/models"
)

// Sources identify which channel produced a record.
const (
	SourceSocket   = "socket"
	SourceKafka    = "kafka"
	SourceSnapshot = "snapshot"
	SourceAPI      = "api"
)

// Record wraps a RawEvent with its provenance. Initial marks records from
// the first snapshot batch of a subscription: historical backfill that must
// never notify.
type Record struct {
	Event   models.RawEvent
	Initial bool
	Source  string
}

// RecordFunc receives inbound records. Delivery is serialized per adapter.
type RecordFunc func(Record)

// Adapter is a subscribable record stream. The returned unsubscribe is
// idempotent, safe after the channel has closed, and safe to call from
// inside the callback; no delivery happens after it returns.
type Adapter interface {
	Subscribe(fn RecordFunc) (unsubscribe func())
}

type subscriber struct {
	fn     RecordFunc
	closed atomic.Bool
}

func (s *subscriber) deliver(rec Record) {
	if s.closed.Load() {
		return
	}
	s.fn(rec)
}

// fanout is the shared subscription bookkeeping for push-style adapters.
type fanout struct {
	mu   sync.Mutex
	subs []*subscriber
}

func (f *fanout) add(fn RecordFunc) *subscriber {
	sub := &subscriber{fn: fn}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub
}

func (f *fanout) remove(sub *subscriber) {
	sub.closed.Store(true)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s == sub {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return
		}
	}
}

func (f *fanout) emit(rec Record) {
	f.mu.Lock()
	snapshot := make([]*subscriber, len(f.subs))
	copy(snapshot, f.subs)
	f.mu.Unlock()

	for _, sub := range snapshot {
		sub.deliver(rec)
	}
}

// subscribe wires fn into the fanout and returns the idempotent unsubscribe.
func (f *fanout) subscribe(fn RecordFunc) func() {
	if fn == nil {
		return func() {}
	}
	sub := f.add(fn)
	var once sync.Once
	return func() {
		once.Do(func() { f.remove(sub) })
	}
}
