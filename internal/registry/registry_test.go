package registry

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homepal-gateway/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func payload(body string) models.NotificationPayload {
	return models.NotificationPayload{Title: models.DefaultTitle, Body: body}
}

func TestRegistry_BroadcastInInsertionOrder(t *testing.T) {
	reg := New(testLogger())

	var order []string
	reg.Register(func(models.NotificationPayload) { order = append(order, "a") })
	reg.Register(func(models.NotificationPayload) { order = append(order, "b") })
	reg.Register(func(models.NotificationPayload) { order = append(order, "c") })

	reg.Broadcast(payload("x"))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRegistry_DuplicateRegistrationFiresPerSubscription(t *testing.T) {
	reg := New(testLogger())

	count := 0
	fn := func(models.NotificationPayload) { count++ }
	s1 := reg.Register(fn)
	s2 := reg.Register(fn)
	require.NotSame(t, s1, s2)

	reg.Broadcast(payload("x"))
	assert.Equal(t, 2, count, "each registration is a distinct subscription")

	reg.Unregister(s1)
	reg.Broadcast(payload("y"))
	assert.Equal(t, 3, count)
}

func TestRegistry_UnregisterDuringBroadcast(t *testing.T) {
	reg := New(testLogger())

	var got []string
	var second *Subscription
	reg.Register(func(models.NotificationPayload) {
		got = append(got, "first")
		reg.Unregister(second)
	})
	second = reg.Register(func(models.NotificationPayload) {
		got = append(got, "second")
	})

	// in-flight broadcast still reaches the removed subscriber
	reg.Broadcast(payload("x"))
	assert.Equal(t, []string{"first", "second"}, got)

	// later broadcasts do not
	got = nil
	reg.Broadcast(payload("y"))
	assert.Equal(t, []string{"first"}, got)
}

func TestRegistry_RegisterDuringBroadcastAffectsNextOnly(t *testing.T) {
	reg := New(testLogger())

	var calls int
	reg.Register(func(models.NotificationPayload) {
		if calls == 0 {
			reg.Register(func(models.NotificationPayload) { calls += 10 })
		}
		calls++
	})

	reg.Broadcast(payload("x"))
	assert.Equal(t, 1, calls, "subscriber added mid-broadcast must not see the current broadcast")

	reg.Broadcast(payload("y"))
	assert.Equal(t, 12, calls)
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	reg := New(testLogger())
	sub := reg.Register(func(models.NotificationPayload) {})

	reg.Unregister(sub)
	assert.NotPanics(t, func() { reg.Unregister(sub) })
	assert.NotPanics(t, func() { reg.Unregister(nil) })
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_PanickingSubscriberIsolated(t *testing.T) {
	reg := New(testLogger())

	var delivered []string
	reg.Register(func(models.NotificationPayload) { panic("boom") })
	reg.Register(func(models.NotificationPayload) { delivered = append(delivered, "later") })

	assert.NotPanics(t, func() { reg.Broadcast(payload("x")) })
	assert.Equal(t, []string{"later"}, delivered)
}

func TestRegistry_NilFuncIgnored(t *testing.T) {
	reg := New(testLogger())
	assert.Nil(t, reg.Register(nil))
	assert.Equal(t, 0, reg.Len())
	assert.NotPanics(t, func() { reg.Broadcast(payload("x")) })
}
