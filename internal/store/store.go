// Package store defines the persistence interface for simulation snapshots
// and market history. Implementations include PostgreSQL and SQLite
// (sources of truth), Redis (read-through cache), and in-memory (for
// testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. Snapshots are opaque encoded blobs;
// market closes are appended once per turn.
type Store interface {
	// --- Snapshots ---

	// SaveSnapshot persists an encoded snapshot under info.ID.
	SaveSnapshot(ctx context.Context, info *model.SnapshotInfo, data []byte) error

	// GetSnapshot retrieves a snapshot by its ID.
	GetSnapshot(ctx context.Context, id string) (*model.SnapshotInfo, []byte, error)

	// LatestSnapshot retrieves the most recently saved snapshot.
	LatestSnapshot(ctx context.Context) (*model.SnapshotInfo, []byte, error)

	// ListSnapshots returns snapshot metadata, newest first.
	ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, error)

	// --- Market history ---

	// InsertCloses appends one turn of market closes.
	InsertCloses(ctx context.Context, closes []model.MarketClose) error

	// GetHistory returns up to limit of the latest closes for a pair,
	// oldest first. A non-positive limit returns everything.
	GetHistory(ctx context.Context, pair string, limit int) ([]model.MarketClose, error)
}

// NewSnapshotInfo describes a snapshot about to be saved.
func NewSnapshotInfo(day int64, seed uint64, size int) *model.SnapshotInfo {
	return &model.SnapshotInfo{
		ID:        uuid.NewString(),
		Day:       day,
		Seed:      seed,
		Size:      size,
		CreatedAt: time.Now().UTC(),
	}
}
