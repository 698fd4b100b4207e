package controllers

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/porter-backend/internal/achievements"
	"github.com/angelmondragon/porter-backend/internal/leveling"
	"github.com/angelmondragon/porter-backend/internal/notifications"
	"github.com/angelmondragon/porter-backend/internal/orders"
	"github.com/angelmondragon/porter-backend/internal/users"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
)

type stubOrdersService struct {
	orders.Service
	listAllFn      func(ctx context.Context, actor orders.Actor, params orders.ListAllParams) (*orders.ListResult, error)
	updateStatusFn func(ctx context.Context, orderID uuid.UUID, status string, actor orders.Actor) (*orders.OrderDTO, error)
	assignFn       func(ctx context.Context, orderID, driverID uuid.UUID, actor orders.Actor) (*orders.OrderDTO, error)
}

func (s *stubOrdersService) ListAllOrders(ctx context.Context, actor orders.Actor, params orders.ListAllParams) (*orders.ListResult, error) {
	return s.listAllFn(ctx, actor, params)
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string, actor orders.Actor) (*orders.OrderDTO, error) {
	return s.updateStatusFn(ctx, orderID, status, actor)
}

func (s *stubOrdersService) AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, actor orders.Actor) (*orders.OrderDTO, error) {
	return s.assignFn(ctx, orderID, driverID, actor)
}

type stubNotificationsService struct {
	listFn        func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (s *stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return s.listFn(ctx, params)
}

func (s *stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.markReadFn(ctx, userID, notificationID)
}

func (s *stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.markAllReadFn(ctx, userID)
}

type stubLadder struct {
	leveling.LadderService
	ladder  []leveling.LadderLevel
	byTrips func(role enums.Role, trips int) *leveling.LadderLevel
	levelFn func(ctx context.Context, role enums.Role, id uuid.UUID) (*leveling.LadderLevel, error)
}

func (s *stubLadder) Ladder(context.Context, enums.Role) ([]leveling.LadderLevel, error) {
	return s.ladder, nil
}

func (s *stubLadder) CurrentLevel(_ context.Context, role enums.Role, trips int) (*leveling.LadderLevel, error) {
	return s.byTrips(role, trips), nil
}

func (s *stubLadder) NextLevel(_ context.Context, role enums.Role, trips int) (*leveling.LadderLevel, error) {
	return s.byTrips(role, trips+1), nil
}

func (s *stubLadder) Level(ctx context.Context, role enums.Role, id uuid.UUID) (*leveling.LadderLevel, error) {
	return s.levelFn(ctx, role, id)
}

type stubUserFinder struct {
	user *models.User
	err  error
}

func (s *stubUserFinder) FindByID(context.Context, uuid.UUID) (*models.User, error) {
	return s.user, s.err
}

type stubAchievements struct {
	achievements.Service
	checkFn  func(ctx context.Context, userID uuid.UUID) ([]achievements.Definition, error)
	createFn func(ctx context.Context, input achievements.DefinitionInput) (*achievements.Definition, error)
	updateFn func(ctx context.Context, id uuid.UUID, input achievements.DefinitionInput) (*achievements.Definition, error)
	catalog  []achievements.Definition
}

func (s *stubAchievements) CheckAchievements(ctx context.Context, userID uuid.UUID) ([]achievements.Definition, error) {
	return s.checkFn(ctx, userID)
}

func (s *stubAchievements) Catalog(context.Context) ([]achievements.Definition, error) {
	return s.catalog, nil
}

func (s *stubAchievements) Create(ctx context.Context, input achievements.DefinitionInput) (*achievements.Definition, error) {
	return s.createFn(ctx, input)
}

func (s *stubAchievements) Update(ctx context.Context, id uuid.UUID, input achievements.DefinitionInput) (*achievements.Definition, error) {
	return s.updateFn(ctx, id, input)
}

type stubProfiles struct {
	profile *users.ProfileDTO
}

func (s *stubProfiles) Profile(_ context.Context, userID uuid.UUID) (*users.ProfileDTO, error) {
	s.profile.User.ID = userID
	return s.profile, nil
}

