package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/lifecycle"
	"homepal-gateway/internal/models"
)

// NotificationFunc receives pre-composed "notification" frames from the
// upstream; these skip the freshness filter because the upstream already
// composed and timed them.
type NotificationFunc func(models.PushMessage)

// socketFrame is the upstream wire format: named JSON messages.
type socketFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Socket is the push-style transport: a WebSocket client to the monitor
// backend. Every inbound "event" frame is a live arrival by construction.
// Connection supervision (reconnect, backoff, state) is delegated to a
// lifecycle.Manager.
type Socket struct {
	logger *logrus.Logger
	mgr    *lifecycle.Manager
	dialer *websocket.Dialer
	fan    fanout

	mu       sync.Mutex
	endpoint string
	onNotify NotificationFunc
}

func NewSocket(logger *logrus.Logger, backoff lifecycle.BackoffConfig) *Socket {
	return &Socket{
		logger: logger,
		mgr:    lifecycle.NewManager(logger, backoff),
		dialer: websocket.DefaultDialer,
	}
}

// Subscribe registers fn for live event records.
func (s *Socket) Subscribe(fn RecordFunc) func() {
	return s.fan.subscribe(fn)
}

// OnNotification registers the handler for pre-composed notification frames.
func (s *Socket) OnNotification(fn NotificationFunc) {
	s.mu.Lock()
	s.onNotify = fn
	s.mu.Unlock()
}

// Connect validates the endpoint and starts connection supervision. The
// boolean reflects whether the attempt was initiated; success arrives
// asynchronously via State. Never panics: a bad endpoint is logged and
// reported as false.
func (s *Socket) Connect(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "ws" && u.Scheme != "wss") {
		s.logger.Errorf("Invalid socket endpoint %q", endpoint)
		return false
	}
	s.mu.Lock()
	s.endpoint = endpoint
	s.mu.Unlock()
	return s.mgr.Start(s.run)
}

// State exposes the connection state for the dashboard indicator.
func (s *Socket) State() lifecycle.State {
	return s.mgr.State()
}

// IsConnected is a pure read of the current state; safe to poll.
func (s *Socket) IsConnected() bool {
	return s.mgr.IsConnected()
}

// Close tears the connection down; idempotent.
func (s *Socket) Close() {
	s.mgr.Close()
}

// run is one connection session under lifecycle supervision.
func (s *Socket) run(ctx context.Context, up func()) error {
	s.mu.Lock()
	endpoint := s.endpoint
	s.mu.Unlock()

	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()
	up()

	// unblock the read loop when the session is cancelled
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("read: %w", err)
			}
			return nil
		}
		s.handle(data)
	}
}

func (s *Socket) handle(data []byte) {
	var frame socketFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Warnf("Dropping malformed socket frame: %v", err)
		return
	}

	switch frame.Type {
	case "event":
		var ev models.RawEvent
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			s.logger.Warnf("Dropping malformed event frame: %v", err)
			return
		}
		if err := ev.Validate(); err != nil {
			s.logger.Warnf("Dropping invalid event frame: %v", err)
			return
		}
		s.fan.emit(Record{Event: ev, Source: SourceSocket})
	case "notification":
		var msg models.PushMessage
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			s.logger.Warnf("Dropping malformed notification frame: %v", err)
			return
		}
		msg.Normalize()
		s.mu.Lock()
		notify := s.onNotify
		s.mu.Unlock()
		if notify != nil {
			notify(msg)
		}
	default:
		s.logger.Debugf("Ignoring socket frame of type %q", frame.Type)
	}
}
