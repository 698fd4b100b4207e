package achievements

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/porter-backend/pkg/enums"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/outbox"
	"github.com/angelmondragon/porter-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/porter-backend/pkg/outbox/registry"
)

const deliveryConsumer = "achievements-on-delivery"

type checker interface {
	CheckAchievements(ctx context.Context, userID uuid.UUID) ([]Definition, error)
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer runs an achievement check for the owner and the driver of every
// delivered order.
type Consumer struct {
	checker      checker
	subscription *pubsub.Subscriber
	decoders     *registry.DecoderRegistry
	idempotency  idempotencyGuard
	logg         *logger.Logger
}

func NewConsumer(svc checker, subscription *pubsub.Subscriber, guard idempotencyGuard, logg *logger.Logger) (*Consumer, error) {
	if svc == nil {
		return nil, fmt.Errorf("achievements service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		checker:      svc,
		subscription: subscription,
		decoders:     registry.NewDomainDecoders(),
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run receives messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked.
func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	eventType := attrs["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventOrderStatusChanged) {
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}
	version := envelope.Version
	if version == 0 {
		version = 1
	}
	decoded, err := c.decoders.Decode(enums.EventOrderStatusChanged, version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return true
	}
	event := decoded.(*payloads.OrderStatusChangedEvent)
	if event.To != enums.OrderStatusDelivered {
		return true
	}

	logCtx = c.logg.WithOrderID(logCtx, event.OrderID.String())
	already, err := c.idempotency.CheckAndMarkProcessed(ctx, deliveryConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	users := []uuid.UUID{event.UserID}
	if event.DriverID != nil && *event.DriverID != uuid.Nil && *event.DriverID != event.UserID {
		users = append(users, *event.DriverID)
	}
	for _, userID := range users {
		unlocked, err := c.checker.CheckAchievements(ctx, userID)
		if err != nil {
			c.logg.Error(c.logg.WithUserID(logCtx, userID.String()), "achievement check failed", err)
			if relErr := c.idempotency.Release(ctx, deliveryConsumer, eventID); relErr != nil {
				c.logg.Warn(logCtx, "idempotency release failed")
			}
			return false
		}
		if len(unlocked) > 0 {
			c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
				"user_id":  userID.String(),
				"unlocked": len(unlocked),
			}), "achievements unlocked from delivery")
		}
	}
	return true
}
