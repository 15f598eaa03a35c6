package core

import (
	"errors"
	"fmt"
	"strings"
)

// Category partitions the queue and leaderboard namespaces, e.g. a coupon type.
type Category string

// MemberID identifies a user inside a category's queue.
type MemberID string

// ScoredMember pairs a member with its sorted-set score.
type ScoredMember struct {
	Member MemberID `json:"member"`
	Score  float64  `json:"score"`
}

var (
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyMember   = errors.New("empty member id")
	// ErrNotFound is returned by lookups that legitimately found nothing.
	ErrNotFound = errors.New("not found")
)

// NormalizeCategory trims a category and rejects blank values.
func NormalizeCategory(c Category) (Category, error) {
	s := strings.TrimSpace(string(c))
	if s == "" {
		return "", ErrEmptyCategory
	}
	return Category(s), nil
}

// NormalizeMemberID trims a member identifier and rejects blank values.
// Member ids are case sensitive; they are used verbatim as sorted-set members.
func NormalizeMemberID(m MemberID) (MemberID, error) {
	s := strings.TrimSpace(string(m))
	if s == "" {
		return "", ErrEmptyMember
	}
	return MemberID(s), nil
}

// Default key prefixes.
const (
	DefaultQueuePrefix       = "LEADERBOARDQUEUE:"
	DefaultLeaderboardPrefix = "LEADERBOARD:"
)

// KeySpace derives store keys from categories.
type KeySpace struct {
	QueuePrefix       string `json:"queue_prefix" yaml:"queue_prefix" env:"COUPONG_QUEUE_PREFIX"`
	LeaderboardPrefix string `json:"leaderboard_prefix" yaml:"leaderboard_prefix" env:"COUPONG_LEADERBOARD_PREFIX"`
}

// DefaultKeySpace returns the default key prefixes.
func DefaultKeySpace() KeySpace {
	return KeySpace{QueuePrefix: DefaultQueuePrefix, LeaderboardPrefix: DefaultLeaderboardPrefix}
}

// QueueKey returns the sorted-set key holding a category's queue.
func (k KeySpace) QueueKey(c Category) string { return k.QueuePrefix + string(c) }

// LeaderboardKey returns the key holding a category's stored leaderboard.
func (k KeySpace) LeaderboardKey(c Category) string { return k.LeaderboardPrefix + string(c) }

// Validate ensures both prefixes are set and cannot collide.
func (k KeySpace) Validate() error {
	var errs []string
	if strings.TrimSpace(k.QueuePrefix) == "" {
		errs = append(errs, "queue_prefix cannot be empty")
	}
	if strings.TrimSpace(k.LeaderboardPrefix) == "" {
		errs = append(errs, "leaderboard_prefix cannot be empty")
	}
	if k.QueuePrefix != "" && k.QueuePrefix == k.LeaderboardPrefix {
		errs = append(errs, "queue_prefix and leaderboard_prefix must differ")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// StoreError reports a failed sorted-set store call.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err carries a store failure.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
