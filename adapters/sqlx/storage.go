// Package sqlx stores leaderboard snapshots in a SQL database through jmoiron/sqlx.
// PostgreSQL (lib/pq) and MySQL (go-sql-driver/mysql) are supported.
package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	libsqlx "github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"coupong/core"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver" yaml:"driver" env:"COUPONG_SQL_DRIVER"`
	DSN             string        `json:"dsn,omitempty" yaml:"dsn,omitempty" env:"COUPONG_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" env:"COUPONG_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" env:"COUPONG_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"COUPONG_SQL_CONN_MAX_LIFETIME"`
}

// DefaultConfig returns pool defaults for the given driver. The DSN must still be provided.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Validate checks driver and DSN.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("driver must be one of: %s, %s", DriverPostgres, DriverMySQL)
	}
	if c.DSN == "" {
		return errors.New("dsn cannot be empty")
	}
	return nil
}

// Store keeps one row per category in leaderboard_snapshots.
type Store struct {
	db     *libsqlx.DB
	driver Driver
}

type snapshotRow struct {
	Category  string          `db:"category"`
	Members   string          `db:"members"`
	Score     sql.NullFloat64 `db:"score"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// New connects, applies pool settings and ensures the schema exists.
// MySQL DSNs need parseTime=true so updated_at scans into time.Time.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := libsqlx.Connect(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := NewWithDB(db, cfg.Driver)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection (useful for testing)
func NewWithDB(db *libsqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) schema() string {
	if s.driver == DriverMySQL {
		return `CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
	category VARCHAR(191) NOT NULL PRIMARY KEY,
	members TEXT NOT NULL,
	score DOUBLE NULL,
	updated_at DATETIME(6) NOT NULL
)`
	}
	return `CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
	category TEXT NOT NULL PRIMARY KEY,
	members TEXT NOT NULL,
	score DOUBLE PRECISION NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`
}

// EnsureSchema creates the snapshot table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schema()); err != nil {
		return fmt.Errorf("failed to create leaderboard_snapshots: %w", err)
	}
	return nil
}

// Save upserts the snapshot row of its category inside a transaction.
func (s *Store) Save(ctx context.Context, snap core.Snapshot) (err error) {
	members := snap.Members
	if members == nil {
		members = []core.MemberID{}
	}
	encoded, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("failed to encode members: %w", err)
	}
	score := sql.NullFloat64{}
	if snap.Score != nil {
		score = sql.NullFloat64{Float64: *snap.Score, Valid: true}
	}
	updated := snap.Time.UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists bool
	if err = tx.GetContext(ctx, &exists,
		tx.Rebind(`SELECT EXISTS(SELECT 1 FROM leaderboard_snapshots WHERE category = ?)`),
		string(snap.Category)); err != nil {
		return fmt.Errorf("failed to check snapshot: %w", err)
	}

	if exists {
		_, err = tx.ExecContext(ctx,
			tx.Rebind(`UPDATE leaderboard_snapshots SET members = ?, score = ?, updated_at = ? WHERE category = ?`),
			string(encoded), score, updated, string(snap.Category))
	} else {
		_, err = tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO leaderboard_snapshots (category, members, score, updated_at) VALUES (?, ?, ?, ?)`),
			string(snap.Category), string(encoded), score, updated)
	}
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads the stored snapshot of category, or core.ErrNotFound.
func (s *Store) Load(ctx context.Context, c core.Category) (core.Snapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT category, members, score, updated_at FROM leaderboard_snapshots WHERE category = ?`),
		string(c))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, core.ErrNotFound
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	snap := core.Snapshot{Category: core.Category(row.Category), Time: row.UpdatedAt.UTC()}
	if err := json.Unmarshal([]byte(row.Members), &snap.Members); err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to decode members: %w", err)
	}
	if snap.Members == nil {
		snap.Members = []core.MemberID{}
	}
	if row.Score.Valid {
		v := row.Score.Float64
		snap.Score = &v
	}
	return snap, nil
}
