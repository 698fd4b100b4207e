package achievements

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/internal/notifications"
	"github.com/angelmondragon/porter-backend/internal/rewards"
	"github.com/angelmondragon/porter-backend/pkg/db"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/metrics"
	"github.com/angelmondragon/porter-backend/pkg/outbox"
	"github.com/angelmondragon/porter-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/porter-backend/pkg/redis"
)

const defaultCatalogTTL = 10 * time.Minute

// Cache holds the catalog between admin writes.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(parts ...string) string
}

// Service evaluates and manages achievements.
type Service interface {
	// CheckAchievements unlocks every achievement the user now qualifies for,
	// including ones enabled by XP granted earlier in the same run.
	CheckAchievements(ctx context.Context, userID uuid.UUID) ([]Definition, error)
	ListOwned(ctx context.Context, userID uuid.UUID) ([]OwnedAchievement, error)
	Catalog(ctx context.Context) ([]Definition, error)
	Create(ctx context.Context, input DefinitionInput) (*Definition, error)
	Update(ctx context.Context, id uuid.UUID, input DefinitionInput) (*Definition, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the achievements service. Outbox, Notifier, Cache and
// Metrics are optional.
type ServiceParams struct {
	DB         txRunner
	Repository Repository
	Ledger     rewards.Ledger
	Outbox     outbox.Emitter
	Notifier   notifications.Notifier
	Cache      Cache
	CatalogTTL time.Duration
	Metrics    *metrics.RewardMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	db       txRunner
	repo     Repository
	ledger   rewards.Ledger
	outbox   outbox.Emitter
	notifier notifications.Notifier
	cache    Cache
	ttl      time.Duration
	metrics  *metrics.RewardMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the orchestrator. DB, Repository and Ledger are required.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	}
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "achievements repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reward ledger required")
	}
	ttl := params.CatalogTTL
	if ttl <= 0 {
		ttl = defaultCatalogTTL
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
		db:       params.DB,
		repo:     params.Repository,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		cache:    params.Cache,
		ttl:      ttl,
		metrics:  params.Metrics,
		logg:     logg,
		now:      now,
	}, nil
}

func (s *service) CheckAchievements(ctx context.Context, userID uuid.UUID) ([]Definition, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	ctx = s.logg.WithUserID(ctx, userID.String())

	var (
		unlocked []Definition
		awards   []*rewards.Award
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		unlocked, awards = nil, nil

		stats, err := s.repo.LockStats(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user stats")
		}
		owned, err := s.repo.OwnedIDs(ctx, tx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load owned achievements")
		}
		rows, err := s.repo.ListCatalog(ctx, tx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog")
		}
		catalog := make([]Definition, 0, len(rows))
		for _, row := range rows {
			catalog = append(catalog, definitionFromModel(row))
		}

		// Re-scan until a pass unlocks nothing: an award may lift the user
		// over another entry's threshold.
		for progressed := true; progressed; {
			progressed = false
			for _, def := range catalog {
				if _, ok := owned[def.ID]; ok || !Eligible(stats, def) {
					continue
				}
				owned[def.ID] = struct{}{}
				award, err := s.ledger.AwardXPTx(ctx, tx, userID, def.XPReward)
				if err != nil {
					return err
				}
				stats.XP = award.XP
				stats.Level = award.Level
				awards = append(awards, award)
				unlocked = append(unlocked, def)
				progressed = true
			}
		}
		if len(unlocked) == 0 {
			return nil
		}

		unlockedAt := s.now().UTC()
		ownedRows := make([]models.UserAchievement, 0, len(unlocked))
		ids := make([]uuid.UUID, 0, len(unlocked))
		var total int64
		for _, def := range unlocked {
			ownedRows = append(ownedRows, models.UserAchievement{
				UserID:        userID,
				AchievementID: def.ID,
				UnlockedAt:    unlockedAt,
			})
			ids = append(ids, def.ID)
			total += def.XPReward
		}
		if err := s.repo.InsertOwned(ctx, tx, ownedRows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist unlocks")
		}
		if s.outbox != nil {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventAchievementUnlocked,
				AggregateType: enums.AggregateUser,
				AggregateID:   userID,
				Data: payloads.AchievementUnlockedEvent{
					UserID:         userID,
					AchievementIDs: ids,
					XPAwarded:      total,
				},
				OccurredAt: unlockedAt,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit achievement event")
			}
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed == nil || typed.Code() == pkgerrors.CodeValidation {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check achievements")
		}
		return nil, err
	}

	for _, award := range awards {
		s.ledger.Announce(ctx, award)
	}
	if len(unlocked) > 0 {
		s.metrics.AddUnlocks(len(unlocked))
		s.logg.Info(s.logg.WithField(ctx, "unlocked", len(unlocked)), "achievements unlocked")
	}
	for _, def := range unlocked {
		s.announceUnlock(ctx, userID, def)
	}
	if unlocked == nil {
		unlocked = []Definition{}
	}
	return unlocked, nil
}

func (s *service) announceUnlock(ctx context.Context, userID uuid.UUID, def Definition) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"achievementId": def.ID.String(),
		"title":         def.Title,
		"xpReward":      def.XPReward,
	}
	if err := s.notifier.Notify(ctx, userID, enums.NotificationAchievementUnlocked, payload); err != nil {
		logCtx := s.logg.WithField(ctx, "achievement_id", def.ID.String())
		s.logg.Error(logCtx, "achievement notification failed", pkgerrors.Wrap(pkgerrors.CodeSideEffect, err, "notify achievement"))
	}
}

func (s *service) ListOwned(ctx context.Context, userID uuid.UUID) ([]OwnedAchievement, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListOwned(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list achievements")
	}
	owned := make([]OwnedAchievement, 0, len(rows))
	for _, row := range rows {
		owned = append(owned, OwnedAchievement{
			Definition: definitionFromModel(row.Achievement),
			UnlockedAt: row.UnlockedAt,
		})
	}
	return owned, nil
}

func (s *service) Catalog(ctx context.Context) ([]Definition, error) {
	if cached, ok := s.catalogFromCache(ctx); ok {
		return cached, nil
	}
	rows, err := s.repo.ListCatalog(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog")
	}
	catalog := make([]Definition, 0, len(rows))
	for _, row := range rows {
		catalog = append(catalog, definitionFromModel(row))
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, s.catalogKey(), catalog, s.ttl); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog cache write failed")
		}
	}
	return catalog, nil
}

func (s *service) Create(ctx context.Context, input DefinitionInput) (*Definition, error) {
	row, err := s.rowFromInput(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "achievement title already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create achievement")
	}
	s.invalidateCatalog(ctx)
	def := definitionFromModel(*row)
	return &def, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input DefinitionInput) (*Definition, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "achievement id required")
	}
	row, err := s.rowFromInput(input)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "achievement not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load achievement")
	}
	row.ID = id
	if err := s.repo.Update(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "achievement title already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update achievement")
	}
	s.invalidateCatalog(ctx)
	def := definitionFromModel(*row)
	return &def, nil
}

func (s *service) rowFromInput(input DefinitionInput) (*models.Achievement, error) {
	details := map[string]string{}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		details["title"] = "required"
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		details["description"] = "required"
	}
	if input.XPReward <= 0 {
		details["xpReward"] = "must be greater than zero"
	}
	for field, msg := range validateCriteria(input.Criteria) {
		details[field] = msg
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid achievement").WithDetails(details)
	}
	criteria, err := EncodeCriteria(input.Criteria)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid criteria")
	}
	return &models.Achievement{
		Title:       title,
		Description: description,
		XPReward:    input.XPReward,
		Icon:        input.Icon,
		Criteria:    criteria,
	}, nil
}

func (s *service) catalogKey() string {
	return s.cache.CacheKey("achievements", "catalog")
}

func (s *service) catalogFromCache(ctx context.Context) ([]Definition, bool) {
	if s.cache == nil {
		return nil, false
	}
	var catalog []Definition
	if err := s.cache.GetJSON(ctx, s.catalogKey(), &catalog); err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog cache read failed")
		}
		return nil, false
	}
	return catalog, true
}

func (s *service) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.catalogKey()); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "catalog cache invalidation failed")
	}
}
