package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus()

	var got []BookingEventPayload
	bus.Subscribe(EventBookingCreated, func(event *Event) error {
		var payload BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}
		got = append(got, payload)
		return nil
	})

	payload := BookingEventPayload{BookingID: "b1", StudentID: "s1", Status: "pending"}
	require.NoError(t, bus.PublishJSON(EventBookingCreated, payload))

	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].BookingID)
}

func TestPublishOnlyMatchingType(t *testing.T) {
	bus := NewEventBus()

	created := 0
	cancelled := 0
	bus.Subscribe(EventBookingCreated, func(*Event) error { created++; return nil })
	bus.Subscribe(EventBookingCancelled, func(*Event) error { cancelled++; return nil })

	require.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: "b1"}))
	require.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: "b2"}))

	assert.Equal(t, 2, created)
	assert.Zero(t, cancelled)
}

func TestPublishSetsCreatedAt(t *testing.T) {
	bus := NewEventBus()

	var stamped bool
	bus.Subscribe(EventSlotAdded, func(event *Event) error {
		stamped = !event.CreatedAt.IsZero()
		return nil
	})

	bus.Publish(&Event{Type: EventSlotAdded})
	assert.True(t, stamped)
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{}))
}
