package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedisStore struct {
	values   map[string]string
	setNXErr error
	getErr   error
	delErr   error

	setCalls int
	delCalls int
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: map[string]string{}}
}

func (f *fakeRedisStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.setCalls++
	if f.setNXErr != nil {
		return false, f.setNXErr
	}
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	value, exists := f.values[key]
	if !exists {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedisStore) Del(_ context.Context, keys ...string) error {
	f.delCalls++
	if f.delErr != nil {
		return f.delErr
	}
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLock_AcquireAndRelease(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "test:lock", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, store.values, 1)

	require.NoError(t, lock.Release(context.Background()))
	assert.Empty(t, store.values)
}

func TestRedisLock_ContentionBlocksSecondHolder(t *testing.T) {
	store := newFakeRedisStore()
	first, err := NewRedisLock(store, "test:lock", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "test:lock", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(context.Background()))
	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ReleaseOnlyDeletesOwnValue(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "test:lock", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// TTL expiry handed the lock to another replica.
	store.values["test:lock"] = "someone-else"

	require.NoError(t, lock.Release(context.Background()))
	assert.Equal(t, "someone-else", store.values["test:lock"], "foreign lock must survive release")
	assert.Zero(t, store.delCalls)
}

func TestRedisLock_ReleaseToleratesExpiredKey(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "test:lock", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	delete(store.values, "test:lock")
	require.NoError(t, lock.Release(context.Background()))
}

func TestRedisLock_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "test:lock", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lock.Release(context.Background()))
	assert.Zero(t, store.delCalls)
}

func TestRedisLock_AcquireErrorSurfaces(t *testing.T) {
	store := newFakeRedisStore()
	store.setNXErr = errors.New("connection refused")
	lock, err := NewRedisLock(store, "test:lock", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(context.Background())
	require.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisLock_Validation(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Minute)
	require.Error(t, err)

	_, err = NewRedisLock(newFakeRedisStore(), "", time.Minute)
	require.Error(t, err)
}
