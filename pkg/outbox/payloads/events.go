package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/porter-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when a customer books a delivery.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID         `json:"orderId"`
	UserID      uuid.UUID         `json:"userId"`
	PackageType enums.PackageType `json:"packageType"`
	Cost        decimal.Decimal   `json:"cost"`
}

// OrderStatusChangedEvent carries one state-machine transition.
type OrderStatusChangedEvent struct {
	OrderID  uuid.UUID         `json:"orderId"`
	UserID   uuid.UUID         `json:"userId"`
	DriverID *uuid.UUID        `json:"driverId,omitempty"`
	From     enums.OrderStatus `json:"from"`
	To       enums.OrderStatus `json:"to"`
	Seq      int               `json:"seq"`
}

// OrderCanceledEvent is emitted when a customer cancels a pending order.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID `json:"orderId"`
	UserID     uuid.UUID `json:"userId"`
	CanceledAt time.Time `json:"canceledAt"`
}

// OrderDeletedEvent is emitted when an order is removed.
type OrderDeletedEvent struct {
	OrderID   uuid.UUID `json:"orderId"`
	UserID    uuid.UUID `json:"userId"`
	DeletedBy uuid.UUID `json:"deletedBy"`
}

// AchievementUnlockedEvent lists the achievements one check unlocked.
type AchievementUnlockedEvent struct {
	UserID         uuid.UUID   `json:"userId"`
	AchievementIDs []uuid.UUID `json:"achievementIds"`
	XPAwarded      int64       `json:"xpAwarded"`
}
