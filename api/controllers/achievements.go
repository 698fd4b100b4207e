package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/angelmondragon/porter-backend/api/responses"
	"github.com/angelmondragon/porter-backend/api/validators"
	"github.com/angelmondragon/porter-backend/internal/achievements"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
	"github.com/angelmondragon/porter-backend/pkg/logger"
)

type achievementRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	XPReward    int64           `json:"xpReward"`
	Icon        *string         `json:"icon,omitempty"`
	Criteria    json.RawMessage `json:"criteria"`
}

// toInput decodes the criteria document; field rules are enforced by the
// service so the error details match across create and update.
func (req achievementRequest) toInput() (achievements.DefinitionInput, error) {
	if len(req.Criteria) == 0 {
		return achievements.DefinitionInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid achievement").
			WithDetails(map[string]string{"criteria": "required"})
	}
	criteria, err := achievements.DecodeCriteria(req.Criteria)
	if err != nil {
		return achievements.DefinitionInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid criteria").
			WithDetails(map[string]string{"criteria": "must be a criteria object with a kind"})
	}
	return achievements.DefinitionInput{
		Title:       req.Title,
		Description: req.Description,
		XPReward:    req.XPReward,
		Icon:        req.Icon,
		Criteria:    criteria,
	}, nil
}

// ListAchievements returns the caller's unlocked achievements.
func ListAchievements(svc achievements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "achievements service unavailable"))
			return
		}
		userID, _, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		owned, err := svc.ListOwned(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"achievements": owned})
	}
}

func AchievementCatalog(svc achievements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "achievements service unavailable"))
			return
		}

		catalog, err := svc.Catalog(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"achievements": catalog})
	}
}

// CheckAchievements evaluates the caller now and returns what was newly
// unlocked.
func CheckAchievements(svc achievements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "achievements service unavailable"))
			return
		}
		userID, _, err := caller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		unlocked, err := svc.CheckAchievements(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if unlocked == nil {
			unlocked = []achievements.Definition{}
		}
		responses.WriteSuccess(w, map[string]any{"unlocked": unlocked})
	}
}

func AdminCreateAchievement(svc achievements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "achievements service unavailable"))
			return
		}

		var body achievementRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		def, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, def)
	}
}

func AdminUpdateAchievement(svc achievements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "achievements service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "achievementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body achievementRequest
		if err := validators.DecodeJSON(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		def, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, def)
	}
}
