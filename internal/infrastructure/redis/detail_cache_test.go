package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellnest/survey-api/internal/survey/application"
)

type fakeStore struct {
	values map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(ctx context.Context, key string) *goredis.StringCmd {
	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	f.store(key, value, expiration)
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.BoolCmd {
	if _, ok := f.values[key]; ok {
		return goredis.NewBoolResult(false, nil)
	}
	f.store(key, value, expiration)
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeStore) store(key string, value interface{}, expiration time.Duration) {
	switch v := value.(type) {
	case []byte:
		f.values[key] = v
	case string:
		f.values[key] = []byte(v)
	}
	f.ttls[key] = expiration
}

// expire drops a key the way Redis does once its TTL elapses.
func (f *fakeStore) expire(key string) {
	delete(f.values, key)
	delete(f.ttls, key)
}

func TestDetailCacheRoundTrip(t *testing.T) {
	store := newFakeStore()
	cache := newDetailCache(store, time.Minute, nil)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "s1")
	assert.False(t, ok)

	cache.Set(ctx, &application.SurveyDetail{ID: "s1", Title: "Sleep", Version: 3})
	assert.Equal(t, time.Minute, store.ttls["survey:detail:s1"])

	detail, ok := cache.Get(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, "Sleep", detail.Title)
	assert.EqualValues(t, 3, detail.Version)

	cache.Invalidate(ctx, "s1")
	_, ok = cache.Get(ctx, "s1")
	assert.False(t, ok)
}

func TestDetailCacheKeepsStaleReadOutAfterInvalidate(t *testing.T) {
	store := newFakeStore()
	cache := newDetailCache(store, time.Minute, nil)
	ctx := context.Background()

	cache.Set(ctx, &application.SurveyDetail{ID: "s1", Title: "Old", Version: 1})
	cache.Invalidate(ctx, "s1")
	assert.Equal(t, invalidationFence, store.ttls["survey:detail:s1"])

	// a read that loaded version 1 before the write finishes after the invalidation
	cache.Set(ctx, &application.SurveyDetail{ID: "s1", Title: "Old", Version: 1})
	_, ok := cache.Get(ctx, "s1")
	assert.False(t, ok)

	store.expire("survey:detail:s1")
	cache.Set(ctx, &application.SurveyDetail{ID: "s1", Title: "New", Version: 2})
	detail, ok := cache.Get(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, "New", detail.Title)
	assert.EqualValues(t, 2, detail.Version)
}

func TestDetailCacheDegradesOnErrors(t *testing.T) {
	store := newFakeStore()
	store.values["survey:detail:bad"] = []byte("{not json")
	cache := newDetailCache(store, 0, nil)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "bad")
	assert.False(t, ok)

	store.getErr = errors.New("connection refused")
	_, ok = cache.Get(ctx, "s1")
	assert.False(t, ok)

	cache.Set(ctx, nil)
	cache.Set(ctx, &application.SurveyDetail{})
	assert.Len(t, store.values, 1)
}
