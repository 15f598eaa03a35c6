// Package projection republishes queue snapshots as category leaderboards.
//
// Two shapes share the engine.Synchronizer contract: Push formats the snapshot and hands it to the
// fan-out hub, Stored persists it for later reads. Build selects them from a configured Mode.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"coupong/core"
	"coupong/engine"
)

// Mode selects which projections receive snapshots.
type Mode string

const (
	ModePush  Mode = "push"
	ModeStore Mode = "store"
	ModeBoth  Mode = "both"
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePush, ModeStore, ModeBoth:
		return m, nil
	default:
		return "", fmt.Errorf("projection mode must be one of: %s, %s, %s", ModePush, ModeStore, ModeBoth)
	}
}

// Stores reports whether the mode persists snapshots.
func (m Mode) Stores() bool { return m == ModeStore || m == ModeBoth }

// Pushes reports whether the mode publishes snapshots to subscribers.
func (m Mode) Pushes() bool { return m == ModePush || m == ModeBoth }

// Publisher is the fan-out sink a Push projection writes to.
type Publisher interface {
	Publish(ctx context.Context, msg []byte) int
}

// SnapshotStore persists the latest snapshot per category.
type SnapshotStore interface {
	Save(ctx context.Context, snap core.Snapshot) error
	Load(ctx context.Context, c core.Category) (core.Snapshot, error)
}

// Push encodes snapshots and publishes them to live subscribers.
type Push struct {
	pub    Publisher
	logger *slog.Logger
}

func NewPush(pub Publisher, logger *slog.Logger) *Push {
	if logger == nil {
		logger = slog.Default()
	}
	return &Push{pub: pub, logger: logger}
}

func (p *Push) Synchronize(ctx context.Context, snap core.Snapshot) error {
	msg, err := snap.MarshalMessage()
	if err != nil {
		return fmt.Errorf("encode leaderboard update: %w", err)
	}
	p.logger.InfoContext(ctx, "leaderboard update", "category", snap.Category, "message", string(msg))
	p.pub.Publish(ctx, msg)
	return nil
}

// Stored writes snapshots into a SnapshotStore.
type Stored struct {
	store SnapshotStore
}

func NewStored(store SnapshotStore) *Stored { return &Stored{store: store} }

func (s *Stored) Synchronize(ctx context.Context, snap core.Snapshot) error {
	if err := s.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("store leaderboard %s: %w", snap.Category, err)
	}
	return nil
}

// Build returns the projections mode requires. store is needed for store modes, pub for push modes.
func Build(mode Mode, store SnapshotStore, pub Publisher, logger *slog.Logger) ([]engine.Synchronizer, error) {
	var out []engine.Synchronizer
	if mode.Stores() {
		if store == nil {
			return nil, fmt.Errorf("projection mode %q requires a snapshot store", mode)
		}
		out = append(out, NewStored(store))
	}
	if mode.Pushes() {
		if pub == nil {
			return nil, fmt.Errorf("projection mode %q requires a publisher", mode)
		}
		out = append(out, NewPush(pub, logger))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("unknown projection mode %q", mode)
	}
	return out, nil
}

var (
	_ engine.Synchronizer = (*Push)(nil)
	_ engine.Synchronizer = (*Stored)(nil)
)
