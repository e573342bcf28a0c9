// Package dispatch delivers qualifying events over every available channel.
// Native channels (Telegram, email, SMS) and the in-app registry are not
// mutually exclusive: native delivery can fail silently at the far end, so
// the registry always fires for a fresh event regardless of native outcome.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/models"
	"homepal-gateway/internal/registry"
)

// NativeChannel is one externally-delivered notification surface. Channels
// are independently fallible; a Send error or panic never propagates past
// the dispatcher.
type NativeChannel interface {
	Name() string
	// Available reports whether the channel is configured well enough to
	// attempt delivery. Must not block or panic.
	Available() bool
	Send(ctx context.Context, payload models.NotificationPayload) error
}

// PermissionState gates native delivery.
type PermissionState int

const (
	PermissionUnknown PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (p PermissionState) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// DispatchResult records the native delivery outcome; in-app delivery always
// happens and has no failure mode visible to the caller.
type DispatchResult struct {
	NativeDelivered bool
}

// Dispatcher fans one event out to the native channels and the registry.
type Dispatcher struct {
	channels []NativeChannel
	registry *registry.Registry
	logger   *logrus.Logger
	icon     string

	mu         sync.Mutex
	permission PermissionState
}

func New(reg *registry.Registry, channels []NativeChannel, icon string, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		channels:   channels,
		registry:   reg,
		logger:     logger,
		icon:       icon,
		permission: PermissionUnknown,
	}
}

// Permission returns the current native-delivery permission state.
func (d *Dispatcher) Permission() PermissionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission
}

// RequestPermission resolves an unknown permission state. Permission is
// granted when at least one native channel is available, denied otherwise.
// Once denied it stays denied; there is no automatic re-prompt, matching the
// browser permission model the dashboard relies on.
func (d *Dispatcher) RequestPermission() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.permission {
	case PermissionGranted:
		return true
	case PermissionDenied:
		return false
	}
	if d.supportsNative() {
		d.permission = PermissionGranted
		return true
	}
	d.permission = PermissionDenied
	return false
}

func (d *Dispatcher) supportsNative() bool {
	for _, ch := range d.channels {
		if channelAvailable(ch) {
			return true
		}
	}
	return false
}

// channelAvailable guards against a misbehaving Available implementation.
func channelAvailable(ch NativeChannel) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return ch.Available()
}

// BuildPayload composes the notification payload for a fresh event.
func (d *Dispatcher) BuildPayload(event models.NormalizedEvent) models.NotificationPayload {
	action := event.Action
	if action == "" {
		action = "Event detected"
	}
	ev := event
	return models.NotificationPayload{
		Title:       models.DefaultTitle,
		Body:        fmt.Sprintf("New event: %s", action),
		Icon:        d.icon,
		SourceEvent: &ev,
	}
}

// Dispatch delivers a fresh event. Native channels are attempted in order
// when permission is granted; the registry is broadcast to unconditionally.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.NormalizedEvent) DispatchResult {
	payload := d.BuildPayload(event)

	result := DispatchResult{}
	if d.Permission() == PermissionGranted {
		for _, ch := range d.channels {
			if !channelAvailable(ch) {
				continue
			}
			if d.sendNative(ctx, ch, payload) {
				result.NativeDelivered = true
			}
		}
	}

	d.registry.Broadcast(payload)
	return result
}

// Forward pushes a pre-composed payload (an upstream "notification" frame)
// to the registry without a native attempt or freshness check; the upstream
// already composed and timed it.
func (d *Dispatcher) Forward(msg models.PushMessage) {
	msg.Normalize()
	d.registry.Broadcast(msg.Payload())
}

func (d *Dispatcher) sendNative(ctx context.Context, ch NativeChannel, payload models.NotificationPayload) (delivered bool) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Errorf("Native channel %s panicked: %v", ch.Name(), rec)
			delivered = false
		}
	}()
	if err := ch.Send(ctx, payload); err != nil {
		d.logger.Errorf("Dispatch error via %s: %v", ch.Name(), err)
		return false
	}
	d.logger.Infof("Dispatched %q via %s", payload.Body, ch.Name())
	return true
}
