package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_VersionIncreases(t *testing.T) {
	h := NewHub()
	assert.Equal(t, uint64(0), h.Latest().Version)

	a := h.Publish("2026-10-18 10:00:00", time.Now())
	b := h.Publish("2026-10-18 10:00:01", time.Now())
	assert.Equal(t, uint64(1), a.Version)
	assert.Equal(t, uint64(2), b.Version)
	assert.Equal(t, b, h.Latest())
}

func TestHub_Delivers(t *testing.T) {
	h := NewHub()
	events, unsubscribe := h.Subscribe()
	defer unsubscribe()

	h.Publish("x", time.Now())

	select {
	case ev := <-events:
		assert.Equal(t, "x", ev.Signal)
		assert.Equal(t, uint64(1), ev.Version)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	h := NewHub()
	events, unsubscribe := h.Subscribe()

	for i := 0; i <= subscriberBuffer; i++ {
		h.Publish("x", time.Now())
	}
	assert.Equal(t, 0, h.Subscribers())

	n := 0
	for range events {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)

	require.NotPanics(t, unsubscribe)
}

func TestHub_UnsubscribeTwice(t *testing.T) {
	h := NewHub()
	_, unsubscribe := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())

	unsubscribe()
	require.NotPanics(t, unsubscribe)
	assert.Equal(t, 0, h.Subscribers())
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	h := NewHub()
	events, unsubscribe := h.Subscribe()

	h.Close()
	assert.Equal(t, 0, h.Subscribers())

	_, ok := <-events
	assert.False(t, ok)
	require.NotPanics(t, unsubscribe)

	late, _ := h.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")
	assert.Equal(t, 0, h.Subscribers())

	require.NotPanics(t, func() { h.Publish("x", time.Now()) })
	assert.Equal(t, uint64(1), h.Latest().Version)
}
