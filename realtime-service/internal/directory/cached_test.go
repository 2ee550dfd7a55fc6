package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	GetFunc func(ctx context.Context, key string) error
	entries map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]time.Duration{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) error {
	if f.GetFunc != nil {
		return f.GetFunc(ctx, key)
	}
	if _, ok := f.entries[key]; ok {
		return nil
	}
	return ErrCacheMiss
}

func (f *fakeCache) Set(ctx context.Context, key string, ttl time.Duration) error {
	f.entries[key] = ttl
	return nil
}

func (f *fakeCache) BuildKey(userID, conversationID string) string {
	return fmt.Sprintf("test:member:%s:%s", conversationID, userID)
}

func (f *fakeCache) Close() error { return nil }

type fakeDirectory struct {
	IsParticipantFunc func(ctx context.Context, userID, conversationID string) (bool, error)
	calls             int
}

func (f *fakeDirectory) IsParticipant(ctx context.Context, userID, conversationID string) (bool, error) {
	f.calls++
	return f.IsParticipantFunc(ctx, userID, conversationID)
}

type lookupCounter map[string]int

func (c lookupCounter) ParticipantCacheLookup(result string) { c[result]++ }

func TestCached_CachesPositiveAnswers(t *testing.T) {
	next := &fakeDirectory{IsParticipantFunc: func(ctx context.Context, userID, conversationID string) (bool, error) {
		return userID == "alice", nil
	}}
	cache := newFakeCache()
	counter := lookupCounter{}
	d := NewCached(next, cache, time.Minute, counter)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := d.IsParticipant(ctx, "alice", "c1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, time.Minute, cache.entries["test:member:c1:alice"])
	assert.Equal(t, 2, counter["hit"])
	assert.Equal(t, 1, counter["miss"])
}

func TestCached_NeverCachesDenials(t *testing.T) {
	member := false
	next := &fakeDirectory{IsParticipantFunc: func(ctx context.Context, userID, conversationID string) (bool, error) {
		return member, nil
	}}
	cache := newFakeCache()
	d := NewCached(next, cache, time.Minute, nil)
	ctx := context.Background()

	ok, err := d.IsParticipant(ctx, "bob", "c1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, cache.entries)

	member = true
	ok, err = d.IsParticipant(ctx, "bob", "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, next.calls)
}

func TestCached_FallsThroughOnCacheError(t *testing.T) {
	next := &fakeDirectory{IsParticipantFunc: func(ctx context.Context, userID, conversationID string) (bool, error) {
		return true, nil
	}}
	cache := newFakeCache()
	cache.GetFunc = func(ctx context.Context, key string) error { return errors.New("redis down") }
	counter := lookupCounter{}
	d := NewCached(next, cache, 0, counter)

	ok, err := d.IsParticipant(context.Background(), "alice", "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, counter["error"])
	assert.Equal(t, 5*time.Minute, cache.entries["test:member:c1:alice"])
}

func TestCached_PropagatesDirectoryErrors(t *testing.T) {
	boom := errors.New("store failure")
	next := &fakeDirectory{IsParticipantFunc: func(ctx context.Context, userID, conversationID string) (bool, error) {
		return false, boom
	}}
	d := NewCached(next, newFakeCache(), time.Minute, nil)

	_, err := d.IsParticipant(context.Background(), "alice", "c1")
	assert.ErrorIs(t, err, boom)
}
