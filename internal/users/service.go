package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/internal/leveling"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
)

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CountAchievements(ctx context.Context, id uuid.UUID) (int64, error)
}

type ladderStatus interface {
	Status(ctx context.Context, role enums.Role, trips int) (*leveling.LadderStatus, error)
}

// Service serves the caller's own account.
type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
}

type service struct {
	users  userReader
	ladder ladderStatus
}

func NewService(users userReader, ladder ladderStatus) (Service, error) {
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if ladder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ladder service required")
	}
	return &service{users: users, ladder: ladder}, nil
}

// Profile reports the XP level and, for customers and drivers, the ladder
// rung reached by completed orders.
func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	unlocked, err := s.users.CountAchievements(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count achievements")
	}

	profile := &ProfileDTO{
		User:     FromModel(user),
		XP:       leveling.Progress(user.XP),
		Unlocked: unlocked,
	}
	if user.Role.HasLadder() {
		status, err := s.ladder.Status(ctx, user.Role, user.CompletedOrders)
		switch {
		case err == nil:
			profile.Ladder = status
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			// no ladder seeded for the role
		default:
			return nil, err
		}
	}
	return profile, nil
}
