package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coupong/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr" env:"COUPONG_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" yaml:"password,omitempty" env:"COUPONG_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" env:"COUPONG_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" env:"COUPONG_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns" env:"COUPONG_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"COUPONG_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" env:"COUPONG_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"COUPONG_REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Validate checks the connection settings.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr cannot be empty")
	}
	if c.DB < 0 {
		return errors.New("db cannot be negative")
	}
	if c.PoolSize <= 0 {
		return errors.New("pool_size must be positive")
	}
	return nil
}

// NewClient opens a client and verifies the connection.
func NewClient(config Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Store implements the sorted-set store on Redis ZSETs.
// Members are stored verbatim; ordering, uniqueness and tie-breaks are Redis's own.
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed sorted-set store with the provided configuration
func New(config Config) (*Store, error) {
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Client exposes the underlying client so the snapshot store can share the connection pool.
func (s *Store) Client() *redis.Client { return s.client }

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Add inserts member with score, or updates the score of an existing member.
func (s *Store) Add(ctx context.Context, key string, member core.MemberID, score float64) (bool, error) {
	n, err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: string(member)}).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Range returns members between rank start and stop, inclusive.
func (s *Store) Range(ctx context.Context, key string, start, stop int64) ([]core.MemberID, error) {
	vals, err := s.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]core.MemberID, 0, len(vals))
	for _, v := range vals {
		out = append(out, core.MemberID(v))
	}
	return out, nil
}

// RangeWithScores returns members between rank start and stop with their scores.
func (s *Store) RangeWithScores(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	zs, err := s.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]core.ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		out = append(out, core.ScoredMember{Member: core.MemberID(member), Score: z.Score})
	}
	return out, nil
}

// Remove deletes member; removed is false when it was absent.
func (s *Store) Remove(ctx context.Context, key string, member core.MemberID) (bool, error) {
	n, err := s.client.ZRem(ctx, key, string(member)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RemoveRange deletes members between rank start and stop.
func (s *Store) RemoveRange(ctx context.Context, key string, start, stop int64) (int64, error) {
	return s.client.ZRemRangeByRank(ctx, key, start, stop).Result()
}

// Rank returns the zero-based rank of member.
func (s *Store) Rank(ctx context.Context, key string, member core.MemberID) (int64, bool, error) {
	rank, err := s.client.ZRank(ctx, key, string(member)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank, true, nil
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
