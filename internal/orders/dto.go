package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/porter-backend/internal/email"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	"github.com/angelmondragon/porter-backend/pkg/outbox"
	"github.com/angelmondragon/porter-backend/pkg/pagination"
)

// Actor is the authenticated caller of an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) isAdmin() bool {
	return a.Role == enums.RoleAdmin
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, Role: a.Role}
}

// TimelineEntryDTO is one status record.
type TimelineEntryDTO struct {
	Seq       int               `json:"seq"`
	Status    enums.OrderStatus `json:"status"`
	ActorID   *uuid.UUID        `json:"actorId,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID                uuid.UUID           `json:"id"`
	UserID            uuid.UUID           `json:"userId"`
	DriverID          *uuid.UUID          `json:"driverId,omitempty"`
	PickupAddress     string              `json:"pickupAddress"`
	PickupContact     string              `json:"pickupContact"`
	DeliveryAddress   string              `json:"deliveryAddress"`
	DeliveryContact   string              `json:"deliveryContact"`
	PackageType       enums.PackageType   `json:"packageType"`
	Weight            decimal.Decimal     `json:"weight"`
	Description       *string             `json:"description,omitempty"`
	Priority          enums.OrderPriority `json:"priority"`
	ScheduledDate     time.Time           `json:"scheduledDate"`
	EstimatedDelivery time.Time           `json:"estimatedDelivery"`
	Cost              decimal.Decimal     `json:"cost"`
	Status            enums.OrderStatus   `json:"status"`
	DeliveredAt       *time.Time          `json:"deliveredAt,omitempty"`
	CancelledAt       *time.Time          `json:"cancelledAt,omitempty"`
	Timeline          []TimelineEntryDTO  `json:"timeline"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// ListResult is one page of orders.
type ListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// ListAllParams filters the admin order listing.
type ListAllParams struct {
	pagination.Params
	Status string
}

// StatusStat aggregates the caller's orders in one status.
type StatusStat struct {
	Status    enums.OrderStatus `json:"status"`
	Count     int64             `json:"count"`
	TotalCost decimal.Decimal   `json:"totalCost"`
}

// Stats summarises the caller's orders.
type Stats struct {
	TotalOrders int64           `json:"totalOrders"`
	TotalCost   decimal.Decimal `json:"totalCost"`
	ByStatus    []StatusStat    `json:"byStatus"`
}

func orderFromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:                o.ID,
		UserID:            o.UserID,
		DriverID:          o.DriverID,
		PickupAddress:     o.PickupAddress,
		PickupContact:     o.PickupContact,
		DeliveryAddress:   o.DeliveryAddress,
		DeliveryContact:   o.DeliveryContact,
		PackageType:       o.PackageType,
		Weight:            o.Weight,
		Description:       o.Description,
		Priority:          o.Priority,
		ScheduledDate:     o.ScheduledDate,
		EstimatedDelivery: o.EstimatedDelivery,
		Cost:              o.Cost,
		Status:            o.Status,
		DeliveredAt:       o.DeliveredAt,
		CancelledAt:       o.CancelledAt,
		Timeline:          make([]TimelineEntryDTO, 0, len(o.Timeline)),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for _, entry := range o.Timeline {
		dto.Timeline = append(dto.Timeline, TimelineEntryDTO{
			Seq:       entry.Seq,
			Status:    entry.Status,
			ActorID:   entry.ActorID,
			Timestamp: entry.CreatedAt,
		})
	}
	return dto
}

func summaryFromModel(o *models.Order) email.OrderSummary {
	return email.OrderSummary{
		ID:              o.ID,
		Status:          o.Status,
		PickupAddress:   o.PickupAddress,
		DeliveryAddress: o.DeliveryAddress,
		PackageType:     o.PackageType,
		Weight:          o.Weight,
		ScheduledDate:   o.ScheduledDate,
		Cost:            o.Cost,
	}
}
