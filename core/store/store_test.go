package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/flowbot/core/database"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "store.db")}
	require.NoError(t, database.RunMigrations(cfg))
	db, err := database.Connect(cfg)
	require.NoError(t, err)

	out := map[string]Backend{
		"memory": NewMemory(MemoryOptions{}),
		"redis":  NewRedis(client, RedisOptions{Prefix: "test"}),
		"sqlite": NewSQL(db),
	}
	t.Cleanup(func() {
		for _, b := range out {
			_ = b.Close()
		}
	})
	return out
}

func TestBackendContract(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := b.ResolveInternalID(ctx, 42)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.ErrorIs(t, b.SaveContext(ctx, 42, []byte(`{}`)), ErrUnknownActor)

			id, err := b.EnsureUser(ctx, 42, "alice")
			require.NoError(t, err)
			again, err := b.EnsureUser(ctx, 42, "alice2")
			require.NoError(t, err)
			assert.Equal(t, id, again)
			other, err := b.EnsureUser(ctx, 43, "")
			require.NoError(t, err)
			assert.NotEqual(t, id, other)

			resolved, ok, err := b.ResolveInternalID(ctx, 42)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, id, resolved)

			_, found, err := b.LoadContext(ctx, 42)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, b.SaveContext(ctx, 42, []byte(`{"currentFlow":"a"}`)))
			require.NoError(t, b.SaveContext(ctx, 42, []byte(`{"currentFlow":"b"}`)))
			blob, found, err := b.LoadContext(ctx, 42)
			require.NoError(t, err)
			require.True(t, found)
			assert.JSONEq(t, `{"currentFlow":"b"}`, string(blob))

			_, ok, err = b.TopicFor(ctx, 42)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.BindTopic(ctx, 42, 555))
			topic, ok, err := b.TopicFor(ctx, 42)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, int64(555), topic)
			user, ok, err := b.UserForTopic(ctx, 555)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, int64(42), user)

			require.NoError(t, b.BindTopic(ctx, 42, 556))
			topic, _, _ = b.TopicFor(ctx, 42)
			assert.Equal(t, int64(556), topic)
		})
	}
}

func TestMemoryCopiesBlobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(MemoryOptions{})
	_, err := m.EnsureUser(ctx, 1, "")
	require.NoError(t, err)

	blob := []byte(`{"a":1}`)
	require.NoError(t, m.SaveContext(ctx, 1, blob))
	blob[2] = 'b'

	got, _, err := m.LoadContext(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))
}

func TestRedisKeyLayout(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	r := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), RedisOptions{})
	defer r.Close()

	_, err := r.EnsureUser(ctx, 42, "alice")
	require.NoError(t, err)
	require.NoError(t, r.SaveContext(ctx, 42, []byte(`{}`)))

	assert.True(t, mr.Exists("flowbot:ctx:42"))
	assert.Equal(t, "alice", mr.HGet("flowbot:usernames", "42"))
	assert.Equal(t, "1", mr.HGet("flowbot:users", "42"))
}
