package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL or SQLite) with a Redis
// read-through cache. Writes go to the primary store and refresh or
// invalidate the cache; reads check Redis first then fall back to the
// primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, update cache) ---

func (s *CachedStore) SaveSnapshot(ctx context.Context, info *model.SnapshotInfo, data []byte) error {
	if err := s.primary.SaveSnapshot(ctx, info, data); err != nil {
		return err
	}
	s.cacheSnapshot(ctx, info, data)
	s.rdb.Set(ctx, latestKey, info.ID, s.ttl)
	return nil
}

func (s *CachedStore) InsertCloses(ctx context.Context, closes []model.MarketClose) error {
	if err := s.primary.InsertCloses(ctx, closes); err != nil {
		return err
	}
	// Invalidate history for every touched pair; next read will re-populate.
	keys := make([]string, 0, len(closes))
	for _, c := range closes {
		keys = append(keys, historyKey(c.Pair))
	}
	if len(keys) > 0 {
		s.rdb.Del(ctx, keys...)
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetSnapshot(ctx context.Context, id string) (*model.SnapshotInfo, []byte, error) {
	// Try cache.
	infoData, err := s.rdb.Get(ctx, snapshotInfoKey(id)).Bytes()
	if err == nil {
		data, err := s.rdb.Get(ctx, snapshotDataKey(id)).Bytes()
		var info model.SnapshotInfo
		if err == nil && json.Unmarshal(infoData, &info) == nil {
			return &info, data, nil
		}
	}

	// Cache miss: read from primary.
	info, data, err := s.primary.GetSnapshot(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	s.cacheSnapshot(ctx, info, data)
	return info, data, nil
}

func (s *CachedStore) LatestSnapshot(ctx context.Context) (*model.SnapshotInfo, []byte, error) {
	// Try cache via the latest→ID mapping.
	id, err := s.rdb.Get(ctx, latestKey).Result()
	if err == nil {
		return s.GetSnapshot(ctx, id)
	}

	// Cache miss.
	info, data, err := s.primary.LatestSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.cacheSnapshot(ctx, info, data)
	s.rdb.Set(ctx, latestKey, info.ID, s.ttl)
	return info, data, nil
}

func (s *CachedStore) GetHistory(ctx context.Context, pair string, limit int) ([]model.MarketClose, error) {
	field := fmt.Sprint(limit)
	// Try cache.
	data, err := s.rdb.HGet(ctx, historyKey(pair), field).Bytes()
	if err == nil {
		var closes []model.MarketClose
		if json.Unmarshal(data, &closes) == nil {
			return closes, nil
		}
	}

	// Cache miss.
	closes, err := s.primary.GetHistory(ctx, pair, limit)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(closes); err == nil {
		pipe := s.rdb.TxPipeline()
		pipe.HSet(ctx, historyKey(pair), field, data)
		pipe.Expire(ctx, historyKey(pair), s.ttl)
		pipe.Exec(ctx)
	}
	return closes, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, error) {
	return s.primary.ListSnapshots(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheSnapshot(ctx context.Context, info *model.SnapshotInfo, data []byte) {
	infoData, err := json.Marshal(info)
	if err != nil {
		return
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, snapshotInfoKey(info.ID), infoData, s.ttl)
	pipe.Set(ctx, snapshotDataKey(info.ID), data, s.ttl)
	pipe.Exec(ctx)
}

const latestKey = "snapshot:latest"

func snapshotInfoKey(id string) string { return fmt.Sprintf("snapshot:%s:info", id) }
func snapshotDataKey(id string) string { return fmt.Sprintf("snapshot:%s:data", id) }
func historyKey(pair string) string    { return fmt.Sprintf("history:%s", pair) }
