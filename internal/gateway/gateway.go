// Package gateway is the event pipeline core: records from every transport
// are queued, validated, persisted, classified for freshness, and then
// dispatched. Everything here is best-effort by policy; a bad record or a
// failed channel never stops the stream.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/dispatch"
	"homepal-gateway/internal/freshness"
	"homepal-gateway/internal/lifecycle"
	"homepal-gateway/internal/models"
	"homepal-gateway/internal/transport"
)

// EventStore is the persistence slice the pipeline needs.
type EventStore interface {
	InsertEvent(ctx context.Context, ev models.RawEvent) error
}

// ConnectionStatus exposes the push transport's health for the dashboard
// indicator.
type ConnectionStatus interface {
	State() lifecycle.State
	IsConnected() bool
}

// Service processes inbound records through a bounded queue and worker pool.
type Service struct {
	store      EventStore
	filter     *freshness.Filter
	dispatcher *dispatch.Dispatcher
	logger     *logrus.Logger

	records chan transport.Record
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
	workers int

	mu     sync.Mutex
	conn   ConnectionStatus
	unsubs []func()

	dedupeTTL  time.Duration
	dedupeMu   sync.Mutex
	dispatched map[string]time.Time

	closeOnce sync.Once
}

// New constructs the pipeline Service. store may be nil when running without
// persistence (events then only notify).
func New(store EventStore, filter *freshness.Filter, dispatcher *dispatch.Dispatcher, queueSize, maxWorkers int, logger *logrus.Logger) *Service {
	if queueSize <= 0 {
		queueSize = 500
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:      store,
		filter:     filter,
		dispatcher: dispatcher,
		logger:     logger,
		records:    make(chan transport.Record, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		workers:    maxWorkers,
		dedupeTTL:  filter.Window(),
		dispatched: make(map[string]time.Time),
	}
}

// SetConnection wires the push transport whose health the status endpoint
// reports.
func (s *Service) SetConnection(conn ConnectionStatus) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

// Start launches the worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Attach subscribes the pipeline to a transport. The subscription is torn
// down on Close; the returned unsubscribe allows earlier detachment.
func (s *Service) Attach(a transport.Adapter) func() {
	unsub := a.Subscribe(s.Enqueue)
	s.mu.Lock()
	s.unsubs = append(s.unsubs, unsub)
	s.mu.Unlock()
	return unsub
}

// Enqueue adds a record to the pipeline, dropping it when the queue is full.
func (s *Service) Enqueue(rec transport.Record) {
	select {
	case s.records <- rec:
	default:
		s.logger.Errorf("Queue full, dropping event %s from %s", rec.Event.ID, rec.Source)
	}
}

// ForwardNotification pushes a pre-composed upstream notification straight
// to the in-app subscribers.
func (s *Service) ForwardNotification(msg models.PushMessage) {
	s.dispatcher.Forward(msg)
}

// RequestPermission resolves the native-delivery permission state.
func (s *Service) RequestPermission() bool {
	return s.dispatcher.RequestPermission()
}

// State reports the push transport's connection state; Disconnected when no
// push transport is configured.
func (s *Service) State() lifecycle.State {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return lifecycle.Disconnected
	}
	return conn.State()
}

// IsConnected reports whether the push transport is up.
func (s *Service) IsConnected() bool {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	return conn != nil && conn.IsConnected()
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Worker %d stopped", id)
			return
		case rec := <-s.records:
			s.handleRecord(rec)
		}
	}
}

func (s *Service) handleRecord(rec transport.Record) {
	if err := rec.Event.Validate(); err != nil {
		s.logger.Warnf("Dropping invalid record from %s: %v", rec.Source, err)
		return
	}

	// Snapshot records came out of the store; writing them back would only
	// churn. Everything else is persisted so the REST fallback sees it.
	if s.store != nil && rec.Source != transport.SourceSnapshot {
		if err := s.store.InsertEvent(s.ctx, rec.Event); err != nil {
			s.logger.Errorf("Persist event %s failed: %v", rec.Event.ID, err)
		}
	}

	// initial-snapshot records are backfill, never notifications
	if rec.Initial {
		return
	}

	ev, ok := s.filter.Admit(rec.Event)
	if !ok {
		return
	}

	// the same event can arrive on more than one transport: the snapshot
	// poller rediscovers records the pipeline itself just persisted. Dispatch
	// once per id within the freshness window; after that the record is stale
	// anyway.
	if !s.markDispatched(ev.ID) {
		s.logger.Debugf("Event %s already dispatched, suppressing duplicate from %s", ev.ID, rec.Source)
		return
	}

	result := s.dispatcher.Dispatch(s.ctx, ev)
	s.logger.Infof("Event %s (%s) dispatched, native=%t", ev.ID, ev.Action, result.NativeDelivered)
}

// markDispatched records a dispatch for id and reports whether it is the
// first one inside the dedupe window. Expired entries are pruned on the way.
func (s *Service) markDispatched(id string) bool {
	now := time.Now()
	s.dedupeMu.Lock()
	defer s.dedupeMu.Unlock()
	for k, at := range s.dispatched {
		if now.Sub(at) >= s.dedupeTTL {
			delete(s.dispatched, k)
		}
	}
	if _, ok := s.dispatched[id]; ok {
		return false
	}
	s.dispatched[id] = now
	return true
}

// Close detaches from all transports and stops the workers. Idempotent;
// queued records that have not been picked up are discarded.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		unsubs := s.unsubs
		s.unsubs = nil
		s.mu.Unlock()
		for _, unsub := range unsubs {
			unsub()
		}
		s.cancel()
	})
}
