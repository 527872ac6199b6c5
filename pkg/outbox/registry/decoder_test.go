package registry

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOrderStatusChanged, 2, func(payload json.RawMessage) (any, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	output, err := reg.Decode(enums.EventOrderStatusChanged, 2, json.RawMessage(`{"to":"shipped"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"to": "shipped"}, output)

	_, err = reg.Decode(enums.EventOrderStatusChanged, 1, json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrNoDecoder)
}

func TestDecoderRegistryForPublishedEvents(t *testing.T) {
	events := newTestEventRegistry(t)
	reg := NewDecoderRegistryFor(events)
	orderID := uuid.New()

	output, err := reg.Decode(enums.EventOrderCanceled, outbox.EnvelopeVersion, mustMarshal(t, payloads.OrderCanceledEvent{OrderID: orderID}))
	require.NoError(t, err)
	decoded, ok := output.(*payloads.OrderCanceledEvent)
	require.True(t, ok)
	assert.Equal(t, orderID, decoded.OrderID)
}

func TestDecoderRegistryForEveryPublishedEvent(t *testing.T) {
	reg := NewDecoderRegistryFor(newTestEventRegistry(t))
	for _, eventType := range []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventOrderCanceled,
		enums.EventOrderStatusChanged,
		enums.EventPaymentSucceeded,
		enums.EventPaymentFailed,
	} {
		_, err := reg.Decode(eventType, outbox.EnvelopeVersion, json.RawMessage(`{}`))
		assert.NoError(t, err, eventType)
	}
}
