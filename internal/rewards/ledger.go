package rewards

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/porter-backend/internal/leveling"
	"github.com/angelmondragon/porter-backend/internal/notifications"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/metrics"
)

// Award is the outcome of one XP credit.
type Award struct {
	UserID        uuid.UUID `json:"userId"`
	Amount        int64     `json:"amount"`
	XP            int64     `json:"xp"`
	PreviousLevel int       `json:"previousLevel"`
	Level         int       `json:"level"`
	LeveledUp     bool      `json:"leveledUp"`
}

// Ledger credits XP and keeps the stored level in step with it.
type Ledger interface {
	// AwardXP credits amount in its own transaction and announces the result.
	AwardXP(ctx context.Context, userID uuid.UUID, amount int64) (*Award, error)
	// AwardXPTx credits amount inside the caller's transaction. The caller
	// must Announce the award once that transaction commits.
	AwardXPTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64) (*Award, error)
	// Announce records metrics and sends the level-up notification.
	Announce(ctx context.Context, award *Award)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LedgerParams wires the ledger.
type LedgerParams struct {
	DB       txRunner
	Notifier notifications.Notifier
	Metrics  *metrics.RewardMetrics
	Logger   *logger.Logger
}

type ledger struct {
	db       txRunner
	notifier notifications.Notifier
	metrics  *metrics.RewardMetrics
	logg     *logger.Logger
}

// NewLedger builds a Ledger. Notifier and Metrics are optional.
func NewLedger(params LedgerParams) (Ledger, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &ledger{
		db:       params.DB,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

func (l *ledger) AwardXP(ctx context.Context, userID uuid.UUID, amount int64) (*Award, error) {
	var award *Award
	err := l.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		award, err = l.AwardXPTx(ctx, tx, userID, amount)
		return err
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "award xp")
		}
		l.metrics.IncAwardFailure()
		return nil, err
	}
	l.Announce(ctx, award)
	return award, nil
}

func (l *ledger) AwardXPTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount int64) (*Award, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "xp amount must be positive")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	db := tx.WithContext(ctx)

	var user models.User
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "xp", "level").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user")
	}

	if err := db.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("xp", gorm.Expr("xp + ?", amount)).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment xp")
	}

	var newXP int64
	if err := db.Model(&models.User{}).
		Where("id = ?", userID).
		Select("xp").
		Scan(&newXP).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read xp")
	}

	award := &Award{
		UserID:        userID,
		Amount:        amount,
		XP:            newXP,
		PreviousLevel: user.Level,
		Level:         user.Level,
	}
	// Level only ever moves up, even if the stored value was ahead of the table.
	if computed := leveling.LevelFromXP(newXP); computed > user.Level {
		if err := db.Model(&models.User{}).
			Where("id = ?", userID).
			UpdateColumn("level", computed).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update level")
		}
		award.Level = computed
		award.LeveledUp = true
	}
	return award, nil
}

func (l *ledger) Announce(ctx context.Context, award *Award) {
	if award == nil {
		return
	}
	l.metrics.AddXP(award.Amount)
	if !award.LeveledUp {
		return
	}
	l.metrics.IncLevelUp(strconv.Itoa(award.Level))

	logCtx := l.logg.WithFields(ctx, map[string]any{
		"user_id":        award.UserID.String(),
		"previous_level": award.PreviousLevel,
		"level":          award.Level,
		"xp":             award.XP,
	})
	l.logg.Info(logCtx, "user leveled up")

	if l.notifier == nil {
		return
	}
	payload := map[string]any{"level": award.Level, "previousLevel": award.PreviousLevel, "xp": award.XP}
	if err := l.notifier.Notify(ctx, award.UserID, enums.NotificationLevelUp, payload); err != nil {
		l.logg.Error(logCtx, "level up notification failed", pkgerrors.Wrap(pkgerrors.CodeSideEffect, err, "notify level up"))
	}
}
