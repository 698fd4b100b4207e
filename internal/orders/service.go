package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/internal/dispatch"
	"github.com/angelmondragon/porter-backend/internal/email"
	"github.com/angelmondragon/porter-backend/internal/notifications"
	"github.com/angelmondragon/porter-backend/internal/rewards"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/outbox"
	"github.com/angelmondragon/porter-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/porter-backend/pkg/pagination"
)

const defaultDeliveryXP = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type xpAwarder interface {
	AwardXP(ctx context.Context, userID uuid.UUID, amount int64) (*rewards.Award, error)
}

// Service runs the order state machine.
type Service interface {
	CreateOrder(ctx context.Context, actor Actor, input CreateOrderInput) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status string, actor Actor) (*OrderDTO, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	DeleteOrder(ctx context.Context, orderID uuid.UUID, actor Actor) error
	GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	ListOrders(ctx context.Context, actor Actor, params pagination.Params) (*ListResult, error)
	ListAllOrders(ctx context.Context, actor Actor, params ListAllParams) (*ListResult, error)
	Stats(ctx context.Context, actor Actor) (*Stats, error)
	AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, actor Actor) (*OrderDTO, error)
}

// ServiceParams wires the order service. Rewards, Notifier and Emailer are
// only reached through Dispatcher after a commit.
type ServiceParams struct {
	DB         txRunner
	Repository Repository
	Outbox     outbox.Emitter
	Dispatcher dispatch.Runner
	Rewards    xpAwarder
	Notifier   notifications.Notifier
	Emailer    email.Emailer
	DeliveryXP int64
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	db         txRunner
	repo       Repository
	outbox     outbox.Emitter
	dispatcher dispatch.Runner
	rewards    xpAwarder
	notifier   notifications.Notifier
	emailer    email.Emailer
	deliveryXP int64
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	}
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if params.Dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "side effect dispatcher required")
	}
	if params.Rewards == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reward ledger required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if params.Emailer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "emailer required")
	}
	deliveryXP := params.DeliveryXP
	if deliveryXP <= 0 {
		deliveryXP = defaultDeliveryXP
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		db:         params.DB,
		repo:       params.Repository,
		outbox:     params.Outbox,
		dispatcher: params.Dispatcher,
		rewards:    params.Rewards,
		notifier:   params.Notifier,
		emailer:    params.Emailer,
		deliveryXP: deliveryXP,
		logg:       logg,
		now:        now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, actor Actor, input CreateOrderInput) (*OrderDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	valid, err := validateCreateInput(input)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:                uuid.New(),
		UserID:            actor.UserID,
		PickupAddress:     valid.PickupAddress,
		PickupContact:     valid.PickupContact,
		DeliveryAddress:   valid.DeliveryAddress,
		DeliveryContact:   valid.DeliveryContact,
		PackageType:       valid.PackageType,
		Weight:            valid.Weight,
		Description:       valid.Description,
		Priority:          valid.Priority,
		ScheduledDate:     valid.ScheduledDate,
		EstimatedDelivery: EstimatedDelivery(valid.PackageType, valid.ScheduledDate),
		Cost:              Cost(valid.PackageType, valid.Weight),
		Status:            enums.OrderStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	order.Timeline = []models.OrderTimelineEntry{
		*timelineEntry(order.ID, enums.OrderStatusPending, actor.UserID, now),
	}
	order.Timeline[0].Seq = 1

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.ref(),
			OccurredAt:    now,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				PackageType: order.PackageType,
				Cost:        order.Cost,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	summary := summaryFromModel(order)
	s.dispatch(ctx, "order_confirmation_email", order, func(ctx context.Context) error {
		to, err := s.recipient(ctx, order.UserID)
		if err != nil {
			return err
		}
		return s.emailer.SendOrderConfirmation(ctx, to, summary)
	})
	return orderFromModel(order), nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string, actor Actor) (*OrderDTO, error) {
	if !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can update order status")
	}
	target, err := enums.ParseOrderStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]string{"status": "must be one of: pending, in_transit, delivered, cancelled"})
	}

	var order *models.Order
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(current.Status, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal status transition").
				WithDetails(map[string]any{"from": current.Status, "to": target})
		}

		now := s.now().UTC()
		columns := map[string]any{"status": target, "updated_at": now}
		switch target {
		case enums.OrderStatusDelivered:
			columns["delivered_at"] = now
			completers := []uuid.UUID{current.UserID}
			if current.DriverID != nil && *current.DriverID != current.UserID {
				completers = append(completers, *current.DriverID)
			}
			if err := repo.IncrementCompletedOrders(ctx, completers...); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment completed orders")
			}
		case enums.OrderStatusCancelled:
			columns["cancelled_at"] = now
		}
		if err := repo.UpdateColumns(ctx, orderID, columns); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		entry := timelineEntry(orderID, target, actor.UserID, now)
		if err := repo.AppendTimeline(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append timeline")
		}

		if err := s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor.ref(),
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:  orderID,
				UserID:   current.UserID,
				DriverID: current.DriverID,
				From:     current.Status,
				To:       target,
				Seq:      entry.Seq,
			},
		}); err != nil {
			return err
		}

		order, err = repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, order)
	return orderFromModel(order), nil
}

// afterStatusChange schedules the side effects of a committed transition.
// Each one runs independently; none can fail the transition.
func (s *service) afterStatusChange(ctx context.Context, order *models.Order) {
	ownerID := order.UserID
	if order.Status == enums.OrderStatusDelivered {
		s.dispatch(ctx, "award_delivery_xp", order, func(ctx context.Context) error {
			_, err := s.rewards.AwardXP(ctx, ownerID, s.deliveryXP)
			return err
		})
		s.dispatch(ctx, "notify_status_change", order, func(ctx context.Context) error {
			return s.notifyStatus(ctx, ownerID, order.ID, order.Status)
		})
	}

	summary := summaryFromModel(order)
	s.dispatch(ctx, "order_status_email", order, func(ctx context.Context) error {
		to, err := s.recipient(ctx, ownerID)
		if err != nil {
			return err
		}
		return s.emailer.SendOrderStatusUpdate(ctx, to, summary)
	})
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	notCancellable := pkgerrors.New(pkgerrors.CodeNotFound, "order not found or cannot be cancelled")

	var order *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notCancellable
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if current.UserID != actor.UserID || current.Status != enums.OrderStatusPending {
			return notCancellable
		}

		now := s.now().UTC()
		if err := repo.UpdateColumns(ctx, orderID, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if err := repo.AppendTimeline(ctx, timelineEntry(orderID, enums.OrderStatusCancelled, actor.UserID, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append timeline")
		}
		if err := s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor.ref(),
			OccurredAt:    now,
			Data: payloads.OrderCanceledEvent{
				OrderID:    orderID,
				UserID:     current.UserID,
				CanceledAt: now,
			},
		}); err != nil {
			return err
		}

		order, err = repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, "notify_status_change", order, func(ctx context.Context) error {
		return s.notifyStatus(ctx, order.UserID, order.ID, enums.OrderStatusCancelled)
	})
	return orderFromModel(order), nil
}

func (s *service) DeleteOrder(ctx context.Context, orderID uuid.UUID, actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if current.UserID != actor.UserID && !actor.isAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		if err := repo.Delete(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor.ref(),
			OccurredAt:    s.now().UTC(),
			Data: payloads.OrderDeletedEvent{
				OrderID:   orderID,
				UserID:    current.UserID,
				DeletedBy: actor.UserID,
			},
		})
	})
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	assigned := order.DriverID != nil && *order.DriverID == actor.UserID
	if order.UserID != actor.UserID && !assigned && !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return orderFromModel(order), nil
}

// ListOrders pages the caller's orders. Drivers see the orders assigned to
// them; everyone else sees the orders they booked.
func (s *service) ListOrders(ctx context.Context, actor Actor, params pagination.Params) (*ListResult, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query := listParams{Limit: params.Limit, Cursor: cursor}
	userID := actor.UserID
	if actor.Role == enums.RoleDriver {
		query.DriverID = &userID
	} else {
		query.OwnerID = &userID
	}
	return s.list(ctx, query)
}

func (s *service) ListAllOrders(ctx context.Context, actor Actor, params ListAllParams) (*ListResult, error) {
	if !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query := listParams{Limit: params.Limit, Cursor: cursor}
	if raw := strings.TrimSpace(params.Status); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
				WithDetails(map[string]string{"status": "unknown status"})
		}
		query.Status = &status
	}
	return s.list(ctx, query)
}

func (s *service) list(ctx context.Context, query listParams) (*ListResult, error) {
	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	result := &ListResult{Orders: make([]OrderDTO, 0, len(rows))}
	for i := range rows {
		result.Orders = append(result.Orders, *orderFromModel(&rows[i]))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Stats(ctx context.Context, actor Actor) (*Stats, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.StatsByStatus(ctx, actor.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order stats")
	}
	stats := &Stats{ByStatus: make([]StatusStat, 0, len(rows))}
	for _, row := range rows {
		stats.TotalOrders += row.Count
		stats.TotalCost = stats.TotalCost.Add(row.TotalCost)
		stats.ByStatus = append(stats.ByStatus, StatusStat{
			Status:    row.Status,
			Count:     row.Count,
			TotalCost: row.TotalCost.Round(2),
		})
	}
	stats.TotalCost = stats.TotalCost.Round(2)
	return stats, nil
}

func (s *service) AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, actor Actor) (*OrderDTO, error) {
	if !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}

	var order *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		driver, err := repo.FindUser(ctx, driverID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
		}
		if driver.Role != enums.RoleDriver || !driver.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "user is not an active driver").
				WithDetails(map[string]string{"driverId": "must reference an active driver"})
		}

		current, err := s.lockOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already closed").
				WithDetails(map[string]any{"status": current.Status})
		}
		if err := repo.UpdateColumns(ctx, orderID, map[string]any{
			"driver_id":  driverID,
			"updated_at": s.now().UTC(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
		}

		order, err = repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orderFromModel(order), nil
}

func (s *service) lockOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(event.EventType))
	}
	return nil
}

func (s *service) notifyStatus(ctx context.Context, userID, orderID uuid.UUID, status enums.OrderStatus) error {
	return s.notifier.Notify(ctx, userID, enums.NotificationOrderStatusChange, map[string]any{
		"orderId": orderID.String(),
		"status":  string(status),
	})
}

func (s *service) recipient(ctx context.Context, userID uuid.UUID) (email.Recipient, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return email.Recipient{}, err
	}
	return email.Recipient{
		Email:    user.Email,
		FullName: strings.TrimSpace(user.FirstName + " " + user.LastName),
	}, nil
}

func (s *service) dispatch(ctx context.Context, name string, order *models.Order, run func(ctx context.Context) error) {
	task := dispatch.Task{
		Name: name,
		Fields: map[string]any{
			"order_id": order.ID.String(),
			"user_id":  order.UserID.String(),
		},
		Run: run,
	}
	if err := s.dispatcher.Go(ctx, task); err != nil {
		s.logg.Error(s.logg.WithFields(ctx, task.Fields), "side effect not scheduled",
			pkgerrors.Wrap(pkgerrors.CodeSideEffect, err, name))
	}
}
