package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/logger"
)

// Notifier delivers a user-facing event. Callers treat failures as
// best-effort.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType enums.NotificationType, payload map[string]any) error
}

// Publisher fans a persisted notification out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// ChannelFor names the realtime channel of a user.
func ChannelFor(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

type notifier struct {
	repo      Repository
	publisher Publisher
	logg      *logger.Logger
}

// NewNotifier persists notifications and optionally publishes them.
func NewNotifier(repo Repository, publisher Publisher, logg *logger.Logger) (Notifier, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &notifier{repo: repo, publisher: publisher, logg: logg}, nil
}

// realtimeMessage is what subscribers on the user channel receive.
type realtimeMessage struct {
	ID      uuid.UUID              `json:"id"`
	Type    enums.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Payload map[string]any         `json:"payload,omitempty"`
}

func (n *notifier) Notify(ctx context.Context, userID uuid.UUID, eventType enums.NotificationType, payload map[string]any) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !eventType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported notification type %q", eventType))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode notification payload")
	}
	title, message := render(eventType, payload)
	row := &models.Notification{
		UserID:  userID,
		Type:    eventType,
		Title:   title,
		Message: message,
		Payload: raw,
	}
	if err := n.repo.Create(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store notification")
	}

	if n.publisher != nil {
		msg := realtimeMessage{ID: row.ID, Type: eventType, Title: title, Message: message, Payload: payload}
		encoded, err := json.Marshal(msg)
		if err == nil {
			err = n.publisher.Publish(ctx, ChannelFor(userID), encoded)
		}
		if err != nil {
			logCtx := n.logg.WithFields(ctx, map[string]any{
				"user_id":           userID.String(),
				"notification_type": eventType,
				"error":             err.Error(),
			})
			n.logg.Warn(logCtx, "notification realtime publish failed")
		}
	}
	return nil
}

func render(eventType enums.NotificationType, payload map[string]any) (string, string) {
	switch eventType {
	case enums.NotificationOrderStatusChange:
		return "Order update", fmt.Sprintf("Your order %v is now %v.", payload["orderId"], payload["status"])
	case enums.NotificationLevelUp:
		return "Level up!", fmt.Sprintf("You reached level %v.", payload["level"])
	case enums.NotificationAchievementUnlocked:
		return "Achievement unlocked", fmt.Sprintf("You unlocked %v.", payload["title"])
	default:
		return string(eventType), ""
	}
}
