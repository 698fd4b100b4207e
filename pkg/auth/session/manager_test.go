package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mockStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func TestManagerLifecycle(t *testing.T) {
	store := newMockStore()
	manager := &Manager{store: store, ttl: time.Hour}
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, manager.Create(ctx, "access-123", userID))
	assert.Equal(t, userID.String(), store.data["sess:access-123"])
	assert.Equal(t, time.Hour, store.ttls["sess:access-123"])

	ok, err := manager.HasSession(ctx, "access-123")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, manager.Revoke(ctx, "access-123"))
	ok, err = manager.HasSession(ctx, "access-123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerRejectsBlankAccessID(t *testing.T) {
	manager := &Manager{store: newMockStore(), ttl: time.Hour}
	ctx := context.Background()

	assert.Error(t, manager.Create(ctx, " ", uuid.New()))
	_, err := manager.HasSession(ctx, "")
	assert.Error(t, err)
	assert.Error(t, manager.Revoke(ctx, ""))
}
