package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/porter-backend/api/middleware"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
)

// caller returns the authenticated user id and role set by middleware.Auth.
func caller(r *http.Request) (uuid.UUID, enums.Role, error) {
	userID, ok := middleware.ParsedUserID(r.Context())
	if !ok {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return userID, middleware.RoleFromContext(r.Context()), nil
}
