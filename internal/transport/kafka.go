package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/lifecycle"
	"homepal-gateway/internal/models"
)

// Kafka is a push-style transport reading monitor events from a topic.
// Kafka messages are live arrivals by construction; there is no initial
// snapshot to suppress. Like the socket transport, consumption runs under a
// lifecycle.Manager so broker health is visible to the status endpoint.
type Kafka struct {
	cfg    kafka.ReaderConfig
	logger *logrus.Logger
	mgr    *lifecycle.Manager
	fan    fanout
}

func NewKafka(broker, topic, groupID string, logger *logrus.Logger, backoff lifecycle.BackoffConfig) *Kafka {
	return &Kafka{
		cfg: kafka.ReaderConfig{
			Brokers:  []string{broker},
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		},
		logger: logger,
		mgr:    lifecycle.NewManager(logger, backoff),
	}
}

// Subscribe registers fn for records read from the topic.
func (k *Kafka) Subscribe(fn RecordFunc) func() {
	return k.fan.subscribe(fn)
}

// Start launches consumption under connection supervision. The boolean
// reflects whether supervision was initiated; broker health arrives
// asynchronously via State. Returns false when already started or closed.
func (k *Kafka) Start() bool {
	return k.mgr.Start(k.run)
}

// State exposes broker connectivity for the dashboard indicator.
func (k *Kafka) State() lifecycle.State {
	return k.mgr.State()
}

// IsConnected reports whether the consumer currently has the broker in reach.
func (k *Kafka) IsConnected() bool {
	return k.mgr.IsConnected()
}

// Close stops consumption; idempotent.
func (k *Kafka) Close() {
	k.mgr.Close()
}

// run is one consumer session. The broker dial is the connectivity check;
// the reader only surfaces errors once its internal retries are exhausted,
// at which point the session ends and the manager backs off.
func (k *Kafka) run(ctx context.Context, up func()) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", k.cfg.Brokers[0], err)
	}
	conn.Close()

	reader := kafka.NewReader(k.cfg)
	defer reader.Close()
	up()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
		k.handle(msg)
	}
}

// handle decodes one message; per-message failures only skip the message.
func (k *Kafka) handle(msg kafka.Message) {
	var ev models.RawEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		k.logger.Errorf("Unmarshal message failed: %v", err)
		return
	}
	if err := ev.Validate(); err != nil {
		k.logger.Errorf("Invalid message at offset %d: %v", msg.Offset, err)
		return
	}
	k.fan.emit(Record{Event: ev, Source: SourceKafka})
}
