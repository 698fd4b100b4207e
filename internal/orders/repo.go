package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	"github.com/angelmondragon/porter-backend/pkg/pagination"
)

// Repository persists orders and their timelines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]any) error
	AppendTimeline(ctx context.Context, entry *models.OrderTimelineEntry) error
	IncrementCompletedOrders(ctx context.Context, userIDs ...uuid.UUID) error
	List(ctx context.Context, params listParams) ([]models.Order, *pagination.Cursor, error)
	StatsByStatus(ctx context.Context, userID uuid.UUID) ([]statusAggregate, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type listParams struct {
	OwnerID  *uuid.UUID
	DriverID *uuid.UUID
	Status   *enums.OrderStatus
	Limit    int
	Cursor   *pagination.Cursor
}

type statusAggregate struct {
	Status    enums.OrderStatus
	Count     int64
	TotalCost decimal.Decimal
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its initial timeline entries.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit("Timeline").Create(order).Error; err != nil {
		return err
	}
	if len(order.Timeline) == 0 {
		return nil
	}
	for i := range order.Timeline {
		order.Timeline[i].OrderID = order.ID
	}
	return db.Create(&order.Timeline).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate loads the order row under a row lock.
func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(columns).Error
}

// AppendTimeline stores entry with seq one past the current maximum.
func (r *repository) AppendTimeline(ctx context.Context, entry *models.OrderTimelineEntry) error {
	db := r.db.WithContext(ctx)
	var last int
	if err := db.Model(&models.OrderTimelineEntry{}).
		Where("order_id = ?", entry.OrderID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&last).Error; err != nil {
		return err
	}
	entry.Seq = last + 1
	return db.Create(entry).Error
}

func (r *repository) IncrementCompletedOrders(ctx context.Context, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id IN ?", userIDs).
		UpdateColumn("completed_orders", gorm.Expr("completed_orders + 1")).Error
}

// List pages orders newest first.
func (r *repository) List(ctx context.Context, params listParams) ([]models.Order, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if params.OwnerID != nil {
		query = query.Where("user_id = ?", *params.OwnerID)
	}
	if params.DriverID != nil {
		query = query.Where("driver_id = ?", *params.DriverID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Order
	err := query.
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

func (r *repository) StatsByStatus(ctx context.Context, userID uuid.UUID) ([]statusAggregate, error) {
	var rows []statusAggregate
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(cost), 0) AS total_cost").
		Where("user_id = ?", userID).
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	return rows, err
}

// Delete removes the order and its timeline.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", id).Delete(&models.OrderTimelineEntry{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&models.Order{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Select("id", "email", "first_name", "last_name", "role", "is_active").
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func timelineEntry(orderID uuid.UUID, status enums.OrderStatus, actorID uuid.UUID, at time.Time) *models.OrderTimelineEntry {
	entry := &models.OrderTimelineEntry{
		OrderID:   orderID,
		Status:    status,
		CreatedAt: at,
	}
	if actorID != uuid.Nil {
		entry.ActorID = &actorID
	}
	return entry
}
