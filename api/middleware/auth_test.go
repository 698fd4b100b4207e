package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/porter-backend/pkg/auth"
	"github.com/angelmondragon/porter-backend/pkg/config"
	"github.com/angelmondragon/porter-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

type stubSessionVerifier struct {
	ok  bool
	err error
	got string
}

func (s *stubSessionVerifier) HasSession(_ context.Context, accessID string) (bool, error) {
	s.got = accessID
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}

func mintTestToken(t *testing.T, userID uuid.UUID, role enums.Role, jti string) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    jti,
	})
	require.NoError(t, err)
	return token
}

func serveAuth(verifier *stubSessionVerifier, header string, next http.HandlerFunc) *httptest.ResponseRecorder {
	handler := Auth(testJWT, verifier, nil)(next)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestAuthRejectsMissingOrInvalidToken(t *testing.T) {
	for _, header := range []string{"", "Bearer ", "Bearer invalid", "Basic dXNlcjpwYXNz"} {
		rec := serveAuth(&stubSessionVerifier{ok: true}, header, okHandler)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthSeedsIdentity(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, userID, enums.RoleDriver, "jti-42")
	verifier := &stubSessionVerifier{ok: true}

	var gotUser string
	var gotRole enums.Role
	var gotAccess string
	rec := serveAuth(verifier, "bearer "+token, func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotAccess = AccessIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID.String(), gotUser)
	assert.Equal(t, enums.RoleDriver, gotRole)
	assert.Equal(t, "jti-42", gotAccess)
	assert.Equal(t, "jti-42", verifier.got)
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	token := mintTestToken(t, uuid.New(), enums.RoleUser, "jti")
	rec := serveAuth(&stubSessionVerifier{ok: false}, "Bearer "+token, okHandler)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthSessionStoreDown(t *testing.T) {
	token := mintTestToken(t, uuid.New(), enums.RoleUser, "jti")
	rec := serveAuth(&stubSessionVerifier{err: errors.New("redis down")}, "Bearer "+token, okHandler)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.RoleAdmin)(http.HandlerFunc(okHandler))

	for role, want := range map[enums.Role]int{
		enums.RoleAdmin:  http.StatusOK,
		enums.RoleDriver: http.StatusForbidden,
		"":               http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), uuid.NewString(), role, "jti"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}
