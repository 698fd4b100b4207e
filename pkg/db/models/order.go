package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/pkg/enums"
)

// Order is a delivery request owned by a customer and optionally assigned to
// a driver.
type Order struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	DriverID          *uuid.UUID          `gorm:"column:driver_id;type:uuid"`
	PickupAddress     string              `gorm:"column:pickup_address;not null"`
	PickupContact     string              `gorm:"column:pickup_contact;not null"`
	DeliveryAddress   string              `gorm:"column:delivery_address;not null"`
	DeliveryContact   string              `gorm:"column:delivery_contact;not null"`
	PackageType       enums.PackageType   `gorm:"column:package_type;type:package_type;not null"`
	Weight            decimal.Decimal     `gorm:"column:weight;type:numeric(10,2);not null"`
	Description       *string             `gorm:"column:description"`
	Priority          enums.OrderPriority `gorm:"column:priority;type:order_priority;not null"`
	ScheduledDate     time.Time           `gorm:"column:scheduled_date;not null"`
	EstimatedDelivery time.Time           `gorm:"column:estimated_delivery;not null"`
	Cost              decimal.Decimal     `gorm:"column:cost;type:numeric(12,2);not null"`
	Status            enums.OrderStatus   `gorm:"column:status;type:order_status;not null"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Timeline []OrderTimelineEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderTimelineEntry is one append-only status record of an order.
type OrderTimelineEntry struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null"`
	Seq       int               `gorm:"column:seq;not null"`
	Status    enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	ActorID   *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (e *OrderTimelineEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
