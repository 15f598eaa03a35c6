package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"coupong/core"

	"github.com/redis/go-redis/v9"
)

// SnapshotStore persists the stored leaderboard projection as one hash per category:
//   - {leaderboard prefix}{category} -> hash{members: JSON array, updated: RFC3339, score?: float}
type SnapshotStore struct {
	client *redis.Client
	keys   core.KeySpace
}

// NewSnapshotStore creates a snapshot store on an existing client.
func NewSnapshotStore(client *redis.Client, keys core.KeySpace) *SnapshotStore {
	return &SnapshotStore{client: client, keys: keys}
}

// Lua script replacing a leaderboard hash atomically, so readers never see a partial snapshot.
var replaceSnapshotScript = redis.NewScript(`
	local key = KEYS[1]
	redis.call('DEL', key)
	redis.call('HSET', key, 'members', ARGV[1], 'updated', ARGV[2])
	if ARGV[3] ~= '' then
		redis.call('HSET', key, 'score', ARGV[3])
	end
	return 1
`)

// Save replaces the stored leaderboard of the snapshot's category.
func (s *SnapshotStore) Save(ctx context.Context, snap core.Snapshot) error {
	members, err := json.Marshal(nonNilMembers(snap.Members))
	if err != nil {
		return fmt.Errorf("failed to encode members: %w", err)
	}
	score := ""
	if snap.Score != nil {
		score = strconv.FormatFloat(*snap.Score, 'f', -1, 64)
	}
	key := s.keys.LeaderboardKey(snap.Category)
	if err := replaceSnapshotScript.Run(ctx, s.client, []string{key}, string(members), snap.Time.UTC().Format(time.RFC3339Nano), score).Err(); err != nil {
		return fmt.Errorf("failed to save leaderboard: %w", err)
	}
	return nil
}

// Load returns the stored leaderboard of category, or core.ErrNotFound.
func (s *SnapshotStore) Load(ctx context.Context, c core.Category) (core.Snapshot, error) {
	key := s.keys.LeaderboardKey(c)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	if len(fields) == 0 {
		return core.Snapshot{}, core.ErrNotFound
	}

	snap := core.Snapshot{Category: c}
	if err := json.Unmarshal([]byte(fields["members"]), &snap.Members); err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to decode members: %w", err)
	}
	snap.Members = nonNilMembers(snap.Members)
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated"]); err == nil {
		snap.Time = ts
	}
	if raw, ok := fields["score"]; ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return core.Snapshot{}, fmt.Errorf("failed to decode score: %w", err)
		}
		snap.Score = &v
	}
	return snap, nil
}

func nonNilMembers(m []core.MemberID) []core.MemberID {
	if m == nil {
		return []core.MemberID{}
	}
	return m
}
