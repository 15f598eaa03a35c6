package engine

import (
	"context"

	"coupong/core"
)

// SortedSetStore abstracts the external sorted-set service holding the queues.
// Members are ordered by ascending score; ranges are inclusive rank indexes where -1 is the last member.
type SortedSetStore interface {
	// Add inserts member or updates its score. added is true only for a new member.
	Add(ctx context.Context, key string, member core.MemberID, score float64) (added bool, err error)
	Range(ctx context.Context, key string, start, stop int64) ([]core.MemberID, error)
	RangeWithScores(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error)
	Remove(ctx context.Context, key string, member core.MemberID) (removed bool, err error)
	RemoveRange(ctx context.Context, key string, start, stop int64) (removed int64, err error)
	// Rank reports the zero-based rank of member; found is false when it is absent.
	Rank(ctx context.Context, key string, member core.MemberID) (rank int64, found bool, err error)
	Ping(ctx context.Context) error
}

// Synchronizer republishes a category snapshot as the category's current leaderboard.
type Synchronizer interface {
	Synchronize(ctx context.Context, snap core.Snapshot) error
}

// SynchronizerFunc adapts a function to Synchronizer.
type SynchronizerFunc func(ctx context.Context, snap core.Snapshot) error

func (f SynchronizerFunc) Synchronize(ctx context.Context, snap core.Snapshot) error {
	return f(ctx, snap)
}
