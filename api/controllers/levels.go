package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/porter-backend/api/responses"
	"github.com/angelmondragon/porter-backend/api/validators"
	"github.com/angelmondragon/porter-backend/internal/leveling"
	"github.com/angelmondragon/porter-backend/pkg/db/models"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/logger"
)

// UserFinder loads the caller's account for trip counts.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ListLevels returns the ladder for the caller's role.
func ListLevels(svc leveling.LadderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "levels service unavailable"))
			return
		}
		_, role, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ladder, err := svc.Ladder(r.Context(), role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"levels": ladder})
	}
}

// CurrentLevel returns the rung reached by the caller's completed orders.
func CurrentLevel(svc leveling.LadderService, users UserFinder, logg *logger.Logger) http.HandlerFunc {
	return ladderPosition(svc, users, logg, func(ctx context.Context, role enums.Role, trips int) (*leveling.LadderLevel, error) {
		return svc.CurrentLevel(ctx, role, trips)
	})
}

// NextLevel returns the rung after the caller's current one; at the top of
// the ladder that is the top rung itself.
func NextLevel(svc leveling.LadderService, users UserFinder, logg *logger.Logger) http.HandlerFunc {
	return ladderPosition(svc, users, logg, func(ctx context.Context, role enums.Role, trips int) (*leveling.LadderLevel, error) {
		return svc.NextLevel(ctx, role, trips)
	})
}

type ladderLookup func(ctx context.Context, role enums.Role, trips int) (*leveling.LadderLevel, error)

func ladderPosition(svc leveling.LadderService, users UserFinder, logg *logger.Logger, lookup ladderLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || users == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "levels service unavailable"))
			return
		}
		userID, _, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := users.FindByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			} else {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		level, err := lookup(r.Context(), user.Role, user.CompletedOrders)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"level": level,
			"trips": user.CompletedOrders,
		})
	}
}

// GetLevel returns one rung of the caller's ladder.
func GetLevel(svc leveling.LadderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "levels service unavailable"))
			return
		}
		_, role, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		levelID, err := validators.ParseUUIDParam(r, "levelId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		level, err := svc.Level(r.Context(), role, levelID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}
