package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/agromart/agromart-backend/pkg/db/models"
	"github.com/agromart/agromart-backend/pkg/enums"
	"github.com/agromart/agromart-backend/pkg/logger"
	"github.com/agromart/agromart-backend/pkg/outbox"
	"github.com/agromart/agromart-backend/pkg/outbox/idempotency"
)

// ConsumerName scopes the idempotency claims of the notification consumers.
const ConsumerName = "order-notifications"

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

// Consumer turns order and payment events into in-app notifications for the buyer.
type Consumer struct {
	repo         creator
	subscription receiver
	decoder      payloadDecoder
	guard        *idempotency.Guard
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo creator, subscription receiver, decoder payloadDecoder, guard *idempotency.Guard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if decoder == nil {
		return nil, fmt.Errorf("payload decoder required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		decoder:      decoder,
		guard:        guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) == outcomeRetry {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
)

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) outcome {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event type")
		return outcomeAck
	}

	envelope, err := outbox.ParseEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return outcomeAck
	}
	eventID, _ := envelope.ID()
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	payload, err := c.decoder.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return outcomeAck
	}

	notification := notificationFor(payload)
	if notification == nil {
		c.logg.Debug(logCtx, "event does not notify the buyer")
		return outcomeAck
	}

	ran, err := c.guard.Run(ctx, eventID, func(ctx context.Context) error {
		return c.repo.Create(ctx, notification)
	})
	if err != nil {
		c.logg.Error(logCtx, "failed to store notification", err)
		return outcomeRetry
	}
	if !ran {
		c.logg.Info(logCtx, "event already processed")
		return outcomeAck
	}

	c.logg.Info(c.logg.WithUserID(logCtx, notification.UserID.String()), "buyer notified")
	return outcomeAck
}
