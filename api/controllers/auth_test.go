package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/porter-backend/api/middleware"
	"github.com/angelmondragon/porter-backend/internal/auth"
	"github.com/angelmondragon/porter-backend/internal/users"
	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
)

type stubAuthService struct {
	loginFn  func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	logoutFn func(ctx context.Context, accessID string) error
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return s.loginFn(ctx, req)
}

func (s *stubAuthService) Logout(ctx context.Context, accessID string) error {
	return s.logoutFn(ctx, accessID)
}

type stubRegisterService struct {
	registerFn func(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error)
}

func (s *stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	return s.registerFn(ctx, req)
}

func TestAuthLoginSetsTokenHeader(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(_ context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
			assert.Equal(t, "ada@porter.test", req.Email)
			return &auth.LoginResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}

	req := newRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ada@porter.test","password":"secret1"}`)
	rec, env := serve(t, AuthLogin(svc, testLogger()), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", rec.Header().Get("X-Porter-Token"))
	var body auth.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "Bearer", body.TokenType)
}

func TestAuthLoginValidatesBody(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}

	rec, env := serve(t, AuthLogin(svc, testLogger()), newRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"nope"}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)
	assert.Contains(t, env.Error.Details, "email")
	assert.Contains(t, env.Error.Details, "password")
}

func TestAuthLoginPropagatesUnauthorized(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		},
	}
	rec, _ := serve(t, AuthLogin(svc, testLogger()), newRequest(http.MethodPost, "/", `{"email":"a@b.co","password":"x"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthLogoutRevokesAccessID(t *testing.T) {
	var revoked string
	svc := &stubAuthService{
		logoutFn: func(_ context.Context, accessID string) error {
			revoked = accessID
			return nil
		},
	}

	req := newRequest(http.MethodPost, "/api/v1/auth/logout", "")
	req = req.WithContext(middleware.WithIdentity(req.Context(), uuid.NewString(), enums.RoleUser, "jti-42"))
	rec := serveRaw(AuthLogout(svc, testLogger()), req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "jti-42", revoked)
}

func TestAuthRegisterReturnsCreated(t *testing.T) {
	userID := uuid.New()
	reg := &stubRegisterService{
		registerFn: func(_ context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
			assert.Equal(t, "driver", req.Role)
			return &users.UserDTO{ID: userID, Email: req.Email, Role: enums.RoleDriver, Level: 1}, nil
		},
	}

	body := `{"firstName":"Ada","lastName":"Okafor","email":"ada@porter.test","password":"secret1","role":"driver"}`
	rec, env := serve(t, AuthRegister(reg, testLogger()), newRequest(http.MethodPost, "/api/v1/auth/register", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	var payload struct {
		User users.UserDTO `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, userID, payload.User.ID)
	assert.Equal(t, enums.RoleDriver, payload.User.Role)
}

func TestAuthRegisterConflict(t *testing.T) {
	reg := &stubRegisterService{
		registerFn: func(context.Context, auth.RegisterRequest) (*users.UserDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		},
	}
	body := `{"firstName":"Ada","lastName":"Okafor","email":"ada@porter.test","password":"secret1"}`
	rec, env := serve(t, AuthRegister(reg, testLogger()), newRequest(http.MethodPost, "/", body))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), env.Error.Code)
}
