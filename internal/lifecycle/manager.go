// Package lifecycle supervises push-style transport connections: it owns the
// connect/reconnect loop, exposes the current state for the dashboard's
// connectivity indicator, and guarantees teardown happens exactly once.
package lifecycle

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the connection state visible to pollers.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// RunFunc holds one connection session: it dials, calls up() once the
// connection is established, and blocks until the connection drops or ctx is
// cancelled. The returned error describes why the session ended; it is
// logged, never propagated.
type RunFunc func(ctx context.Context, up func()) error

// Manager drives RunFunc sessions with capped exponential backoff between
// attempts. Connection failures are never fatal to the host: the state just
// degrades and callers fall back to REST polling.
type Manager struct {
	logger  *logrus.Logger
	backoff BackoffConfig

	state atomic.Int32

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	closeOnce sync.Once
}

func NewManager(logger *logrus.Logger, backoff BackoffConfig) *Manager {
	return &Manager{
		logger:  logger,
		backoff: backoff,
		done:    make(chan struct{}),
	}
}

// State returns the current connection state; safe to poll.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// IsConnected reports whether a session is currently up.
func (m *Manager) IsConnected() bool {
	return m.State() == Connected
}

// Start launches the supervisor goroutine for run. The boolean reflects
// whether supervision was initiated, not whether a connection succeeded;
// success surfaces asynchronously through State. Returns false when already
// started or already closed.
func (m *Manager) Start(run RunFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
	}
	m.started = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.supervise(ctx, run)
	return true
}

func (m *Manager) supervise(ctx context.Context, run RunFunc) {
	defer m.state.Store(int32(Disconnected))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0
	first := true

	for {
		if first {
			m.state.Store(int32(Connecting))
			first = false
		} else {
			m.state.Store(int32(Reconnecting))
		}

		err := run(ctx, func() {
			attempt = 0
			m.state.Store(int32(Connected))
			m.logger.Info("Transport connected")
		})

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.logger.Warnf("Transport session ended: %v", err)
		}

		attempt++
		delay := NextDelay(attempt, m.backoff, rng)
		m.logger.Infof("Reconnecting in %s (attempt %d)", delay.Round(time.Millisecond), attempt)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// Close stops supervision and releases resources. Idempotent: the second and
// later calls are no-ops, and it is safe before Start and from inside a
// session callback.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.mu.Lock()
		cancel := m.cancel
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		m.state.Store(int32(Disconnected))
	})
}
