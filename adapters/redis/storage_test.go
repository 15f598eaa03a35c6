package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coupong/core"
)

// newTestClient spins up a miniredis server and returns a client plus the server.
func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

const queueKey = "LEADERBOARDQUEUE:promoA"

func TestStore_AddAndRange(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	added, err := store.Add(ctx, queueKey, "alice", 100)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.Add(ctx, queueKey, "bob", 50)
	require.NoError(t, err)
	assert.True(t, added)

	members, err := store.Range(ctx, queueKey, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []core.MemberID{"bob", "alice"}, members)
}

func TestStore_AddExistingUpdatesScore(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	_, err := store.Add(ctx, queueKey, "alice", 100)
	require.NoError(t, err)
	_, err = store.Add(ctx, queueKey, "bob", 50)
	require.NoError(t, err)

	added, err := store.Add(ctx, queueKey, "alice", 10)
	require.NoError(t, err)
	assert.False(t, added, "score update must not count as an insert")

	entries, err := store.RangeWithScores(ctx, queueKey, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []core.ScoredMember{{Member: "alice", Score: 10}, {Member: "bob", Score: 50}}, entries)
}

func TestStore_RangeLimit(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	for i, m := range []core.MemberID{"a", "b", "c"} {
		_, err := store.Add(ctx, queueKey, m, float64(i))
		require.NoError(t, err)
	}

	top, err := store.Range(ctx, queueKey, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []core.MemberID{"a", "b"}, top)

	empty, err := store.Range(ctx, "LEADERBOARDQUEUE:none", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_RemoveAndRank(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	_, err := store.Add(ctx, queueKey, "alice", 100)
	require.NoError(t, err)

	rank, found, err := store.Rank(ctx, queueKey, "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(0), rank)

	removed, err := store.Remove(ctx, queueKey, "alice")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Remove(ctx, queueKey, "alice")
	require.NoError(t, err)
	assert.False(t, removed)

	_, found, err = store.Rank(ctx, queueKey, "alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_RemoveRange(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewWithClient(client)
	ctx := context.Background()

	_, _ = store.Add(ctx, queueKey, "a", 1)
	_, _ = store.Add(ctx, queueKey, "b", 2)
	_, _ = store.Add(ctx, "LEADERBOARDQUEUE:promoB", "c", 3)

	n, err := store.RemoveRange(ctx, queueKey, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	members, err := store.Range(ctx, queueKey, 0, -1)
	require.NoError(t, err)
	assert.Empty(t, members)

	other, err := store.Range(ctx, "LEADERBOARDQUEUE:promoB", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []core.MemberID{"c"}, other)
}

func TestStore_ErrorsWhenServerDown(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewWithClient(client)
	mr.Close()

	_, err := store.Add(context.Background(), queueKey, "alice", 1)
	assert.Error(t, err)
	_, _, err = store.Rank(context.Background(), queueKey, "alice")
	assert.Error(t, err)
	assert.Error(t, store.Ping(context.Background()))
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	client, _ := newTestClient(t)
	snaps := NewSnapshotStore(client, core.DefaultKeySpace())
	ctx := context.Background()

	_, err := snaps.Load(ctx, "promoA")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	snap := core.NewSnapshot("promoA", []core.MemberID{"bob", "alice"}, core.Float64(50))
	require.NoError(t, snaps.Save(ctx, snap))

	got, err := snaps.Load(ctx, "promoA")
	require.NoError(t, err)
	assert.Equal(t, snap.Members, got.Members)
	require.NotNil(t, got.Score)
	assert.Equal(t, 50.0, *got.Score)
	assert.WithinDuration(t, snap.Time, got.Time, time.Millisecond)

	exists, err := client.Exists(ctx, "LEADERBOARD:promoA").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestSnapshotStore_SaveClearedDropsScore(t *testing.T) {
	client, _ := newTestClient(t)
	snaps := NewSnapshotStore(client, core.DefaultKeySpace())
	ctx := context.Background()

	require.NoError(t, snaps.Save(ctx, core.NewSnapshot("promoA", []core.MemberID{"a"}, core.Float64(1))))
	require.NoError(t, snaps.Save(ctx, core.NewSnapshot("promoA", nil, nil)))

	got, err := snaps.Load(ctx, "promoA")
	require.NoError(t, err)
	assert.Empty(t, got.Members)
	assert.NotNil(t, got.Members)
	assert.Nil(t, got.Score)
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, "", config.Password)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 2, config.MinIdleConns)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
	assert.NoError(t, config.Validate())

	config.Addr = ""
	assert.Error(t, config.Validate())
}

func TestNew_ConnectFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	store, err := New(cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.NoError(t, store.Ping(context.Background()))
}
