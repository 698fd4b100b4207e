package leveling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/logger"
	"github.com/angelmondragon/porter-backend/pkg/redis"
)

const defaultLadderTTL = 30 * time.Minute

// Cache is the read-through store used for ladders.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

// LadderService answers trip-count level questions per role.
type LadderService interface {
	Ladder(ctx context.Context, role enums.Role) ([]LadderLevel, error)
	CurrentLevel(ctx context.Context, role enums.Role, trips int) (*LadderLevel, error)
	NextLevel(ctx context.Context, role enums.Role, trips int) (*LadderLevel, error)
	Status(ctx context.Context, role enums.Role, trips int) (*LadderStatus, error)
	Level(ctx context.Context, role enums.Role, id uuid.UUID) (*LadderLevel, error)
}

// LadderParams wires the ladder service.
type LadderParams struct {
	Repository Repository
	Cache      Cache
	CacheTTL   time.Duration
	Logger     *logger.Logger
}

type ladderService struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	logg  *logger.Logger
}

// NewLadderService builds a LadderService. Cache is optional.
func NewLadderService(params LadderParams) (LadderService, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "levels repository required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultLadderTTL
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &ladderService{
		repo:  params.Repository,
		cache: params.Cache,
		ttl:   ttl,
		logg:  logg,
	}, nil
}

func (s *ladderService) Ladder(ctx context.Context, role enums.Role) ([]LadderLevel, error) {
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}

	if cached, ok := s.fromCache(ctx, role); ok {
		return cached, nil
	}

	rows, err := s.repo.ListByRole(ctx, role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load levels")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no levels defined for role %s", role))
	}

	ladder := make([]LadderLevel, 0, len(rows))
	for _, row := range rows {
		ladder = append(ladder, fromModel(row))
	}
	s.store(ctx, role, ladder)
	return ladder, nil
}

func (s *ladderService) CurrentLevel(ctx context.Context, role enums.Role, trips int) (*LadderLevel, error) {
	ladder, err := s.ladderFor(ctx, role, trips)
	if err != nil {
		return nil, err
	}
	current := currentRung(ladder, trips)
	return &current, nil
}

func (s *ladderService) NextLevel(ctx context.Context, role enums.Role, trips int) (*LadderLevel, error) {
	ladder, err := s.ladderFor(ctx, role, trips)
	if err != nil {
		return nil, err
	}
	next := nextRung(ladder, trips)
	return &next, nil
}

func (s *ladderService) Status(ctx context.Context, role enums.Role, trips int) (*LadderStatus, error) {
	ladder, err := s.ladderFor(ctx, role, trips)
	if err != nil {
		return nil, err
	}
	status := &LadderStatus{
		Trips:   trips,
		Current: currentRung(ladder, trips),
		Next:    nextRung(ladder, trips),
	}
	if status.Next.RequiredTrips > trips {
		status.TripsToNext = status.Next.RequiredTrips - trips
	}
	return status, nil
}

func (s *ladderService) Level(ctx context.Context, role enums.Role, id uuid.UUID) (*LadderLevel, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "level id required")
	}
	ladder, err := s.Ladder(ctx, role)
	if err != nil {
		return nil, err
	}
	for _, rung := range ladder {
		if rung.ID == id {
			found := rung
			return &found, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "level not found")
}

func (s *ladderService) ladderFor(ctx context.Context, role enums.Role, trips int) ([]LadderLevel, error) {
	if trips < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "trips must be zero or greater")
	}
	return s.Ladder(ctx, role)
}

// currentRung picks the highest rung reached, or the lowest rung when none is.
func currentRung(ladder []LadderLevel, trips int) LadderLevel {
	current := ladder[0]
	for _, rung := range ladder {
		if rung.RequiredTrips <= trips {
			current = rung
		}
	}
	return current
}

// nextRung picks the lowest rung above trips, or the top rung when none is.
func nextRung(ladder []LadderLevel, trips int) LadderLevel {
	for _, rung := range ladder {
		if rung.RequiredTrips > trips {
			return rung
		}
	}
	return ladder[len(ladder)-1]
}

func (s *ladderService) cacheKey(role enums.Role) string {
	return s.cache.CacheKey("levels", string(role))
}

func (s *ladderService) fromCache(ctx context.Context, role enums.Role) ([]LadderLevel, bool) {
	if s.cache == nil {
		return nil, false
	}
	var ladder []LadderLevel
	if err := s.cache.GetJSON(ctx, s.cacheKey(role), &ladder); err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "levels cache read failed")
		}
		return nil, false
	}
	if len(ladder) == 0 {
		return nil, false
	}
	return ladder, true
}

func (s *ladderService) store(ctx context.Context, role enums.Role, ladder []LadderLevel) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, s.cacheKey(role), ladder, s.ttl); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "levels cache write failed")
	}
}
