package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got []Event
	bus.Subscribe(TypeBreakStarted, func(event Event) error {
		got = append(got, event)
		return nil
	})
	bus.Subscribe(TypeBreakEnded, func(event Event) error {
		t.Fatal("wrong event type delivered")
		return nil
	})

	require.NoError(t, bus.PublishJSON(TypeBreakStarted, map[string]int64{"agent_id": 7}))

	require.Len(t, got, 1)
	assert.Equal(t, TypeBreakStarted, got[0].Type)
	assert.False(t, got[0].CreatedAt.IsZero())

	var payload map[string]int64
	require.NoError(t, json.Unmarshal(got[0].Payload, &payload))
	assert.Equal(t, int64(7), payload["agent_id"])
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.PublishJSON(TypeActivityChanged, struct{}{}))
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	for i := 0; i < 3; i++ {
		bus.Subscribe(TypeBreakExpired, func(Event) error {
			calls++
			return nil
		})
	}

	bus.Publish(Event{Type: TypeBreakExpired})
	assert.Equal(t, 3, calls)
}
