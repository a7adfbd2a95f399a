package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]snapshot
	order     []string
	history   map[string][]model.MarketClose
}

type snapshot struct {
	info model.SnapshotInfo
	data []byte
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]snapshot),
		history:   make(map[string][]model.MarketClose),
	}
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, info *model.SnapshotInfo, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[info.ID]; ok {
		return fmt.Errorf("snapshot %s already exists", info.ID)
	}
	// Store a copy to avoid external mutation.
	s.snapshots[info.ID] = snapshot{info: *info, data: slices.Clone(data)}
	s.order = append(s.order, info.ID)
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id string) (*model.SnapshotInfo, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return nil, nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
	}
	info := snap.info
	return &info, slices.Clone(snap.data), nil
}

func (s *MemoryStore) LatestSnapshot(ctx context.Context) (*model.SnapshotInfo, []byte, error) {
	s.mu.RLock()
	if len(s.order) == 0 {
		s.mu.RUnlock()
		return nil, nil, fmt.Errorf("latest snapshot: %w", ErrNotFound)
	}
	id := s.order[len(s.order)-1]
	s.mu.RUnlock()
	return s.GetSnapshot(ctx, id)
}

func (s *MemoryStore) ListSnapshots(_ context.Context) ([]model.SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]model.SnapshotInfo, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		infos = append(infos, s.snapshots[s.order[i]].info)
	}
	return infos, nil
}

func (s *MemoryStore) InsertCloses(_ context.Context, closes []model.MarketClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range closes {
		s.history[c.Pair] = append(s.history[c.Pair], c)
	}
	return nil
}

func (s *MemoryStore) GetHistory(_ context.Context, pair string, limit int) ([]model.MarketClose, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[pair]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return slices.Clone(h), nil
}
