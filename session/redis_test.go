package session

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcraft-ai/agentcraft/core"
	"github.com/agentcraft-ai/agentcraft/internal/testutil"
)

// newTestRedisStore connects to the Redis instance named by TEST_REDIS_ADDR,
// skipping the test when the variable is unset.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping Redis integration test")
	}
	store, err := NewRedisStoreFromAddr(addr, WithKeyPrefix("agentcraft:test"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStoreCreateAndGet(t *testing.T) {
	store := newTestRedisStore(t)
	key := testutil.Key("redis-s1")
	defer store.Delete(key)

	_, err := store.Create(key, map[string]any{"user_name": "Ada"})
	require.NoError(t, err)

	got, err := store.Get(key)
	require.NoError(t, err)
	v, ok := got.GetState("user_name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)
}

func TestRedisStoreGetMissing(t *testing.T) {
	store := newTestRedisStore(t)

	_, err := store.Get(testutil.Key("redis-missing"))
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestRedisStoreAppendEventAndDelta(t *testing.T) {
	store := newTestRedisStore(t)
	key := testutil.Key("redis-s2")
	defer store.Delete(key)

	ev := testutil.NewEventBuilder().Run("run-1").AssistantText("hello").Build()
	require.NoError(t, store.AppendEvent(key, ev))
	require.NoError(t, store.ApplyDelta(key, map[string]any{"count": float64(2)}))

	got, err := store.Get(key)
	require.NoError(t, err)
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "hello", got.Events()[0].Text())

	v, ok := got.GetState("count")
	require.True(t, ok)
	assert.Equal(t, float64(2), v)
}

func TestRedisStoreListAndDelete(t *testing.T) {
	store := newTestRedisStore(t)
	keyA := testutil.Key("redis-list-a")
	keyB := testutil.Key("redis-list-b")
	defer store.Delete(keyA)
	defer store.Delete(keyB)

	_, err := store.Create(keyA, nil)
	require.NoError(t, err)
	_, err = store.Create(keyB, nil)
	require.NoError(t, err)

	ids, err := store.List("test-app", "test-user")
	require.NoError(t, err)
	assert.Subset(t, ids, []string{"redis-list-a", "redis-list-b"})

	require.NoError(t, store.Delete(keyA))
	_, err = store.Get(keyA)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}
