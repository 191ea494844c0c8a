package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/classroom-api/pkg/config"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
)

type mockCacheStore struct {
	entries  map[string][]byte
	ttls     map[string]time.Duration
	patterns []string
}

func (m *mockCacheStore) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCacheStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
		m.ttls = make(map[string]time.Duration)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *mockCacheStore) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	delete(m.entries, pattern)
	return nil
}

func TestCacheServiceNilIsDisabled(t *testing.T) {
	var svc *CacheService

	assert.False(t, svc.Enabled())

	var dest []string
	hit, err := svc.Get(context.Background(), "k", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(context.Background(), "k", []string{"v"}, time.Minute))
	require.NoError(t, svc.Invalidate(context.Background(), "k"))
}

func TestCacheServiceDisabledByConfig(t *testing.T) {
	store := &mockCacheStore{}
	svc := NewCacheService(store, config.CacheConfig{Enabled: false}, nil, zap.NewNop())

	require.NoError(t, svc.Set(context.Background(), "k", "v", time.Minute))
	assert.Empty(t, store.entries)
}

func TestCacheServiceRoundTrip(t *testing.T) {
	store := &mockCacheStore{}
	svc := NewCacheService(store, config.CacheConfig{Enabled: true, LiveTTL: time.Minute}, nil, zap.NewNop())

	require.NoError(t, svc.Set(context.Background(), "k", []string{"a", "b"}, 0))
	assert.Equal(t, time.Minute, store.ttls["k"])

	var dest []string
	hit, err := svc.Get(context.Background(), "k", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, dest)
}

func TestCacheServiceMissIsNotAnError(t *testing.T) {
	svc := NewCacheService(&mockCacheStore{}, config.CacheConfig{Enabled: true}, nil, zap.NewNop())

	var dest []string
	hit, err := svc.Get(context.Background(), "absent", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCacheServiceInvalidate(t *testing.T) {
	store := &mockCacheStore{}
	svc := NewCacheService(store, config.CacheConfig{Enabled: true, LiveTTL: time.Minute}, nil, zap.NewNop())

	require.NoError(t, svc.Set(context.Background(), "lectures:course:CS101", "rows", 0))
	require.NoError(t, svc.Invalidate(context.Background(), "lectures:course:CS101"))
	assert.Contains(t, store.patterns, "lectures:course:CS101")

	var dest string
	hit, err := svc.Get(context.Background(), "lectures:course:CS101", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
}
