package transport

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/models"
)

// RecentQuerier is the slice of the event store the snapshot listener needs:
// the most recent limit events ordered by time descending.
type RecentQuerier interface {
	RecentEvents(ctx context.Context, limit int) ([]models.RawEvent, error)
}

// Snapshot is the snapshot-style transport: it polls the store's
// most-recent-N window and reports incremental additions, mirroring a
// Firestore listener. The first poll of each subscription is the initial
// snapshot and is labelled historical; only records appearing in later polls
// are live additions. Records that scroll out of the window cannot reappear
// (the query is ordered by time descending), so the seen-set is just the
// previous poll's ids.
type Snapshot struct {
	store    RecentQuerier
	limit    int
	interval time.Duration
	logger   *logrus.Logger
}

func NewSnapshot(store RecentQuerier, limit int, interval time.Duration, logger *logrus.Logger) *Snapshot {
	if limit <= 0 {
		limit = 20
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Snapshot{store: store, limit: limit, interval: interval, logger: logger}
}

// Subscribe starts a polling loop for fn. Each subscription observes its own
// initial snapshot. Unsubscribing stops the loop; idempotent and safe from
// inside the callback.
func (s *Snapshot) Subscribe(fn RecordFunc) func() {
	if fn == nil {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{fn: fn}
	go s.poll(ctx, sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.closed.Store(true)
			cancel()
		})
	}
}

func (s *Snapshot) poll(ctx context.Context, sub *subscriber) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	initial := true
	seen := make(map[string]struct{})

	for {
		events, err := s.store.RecentEvents(ctx, s.limit)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// a failed poll keeps the stream alive; last state stands
			s.logger.Warnf("Snapshot poll failed: %v", err)
		} else {
			next := make(map[string]struct{}, len(events))
			// oldest first, so additions arrive in origin order
			for i := len(events) - 1; i >= 0; i-- {
				ev := events[i]
				next[ev.ID] = struct{}{}
				if _, ok := seen[ev.ID]; ok {
					continue
				}
				sub.deliver(Record{Event: ev, Initial: initial, Source: SourceSnapshot})
			}
			seen = next
			initial = false
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
