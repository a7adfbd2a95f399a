package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Prices are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS snapshots (
		id         UUID PRIMARY KEY,
		day        BIGINT NOT NULL,
		seed       NUMERIC(20, 0) NOT NULL,
		size       INTEGER NOT NULL,
		data       BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS market_closes (
		pair         TEXT NOT NULL,
		day          BIGINT NOT NULL,
		open         NUMERIC NOT NULL,
		high         NUMERIC NOT NULL,
		low          NUMERIC NOT NULL,
		close        NUMERIC NOT NULL,
		volume_base  BIGINT NOT NULL,
		volume_quote BIGINT NOT NULL,
		base         BIGINT NOT NULL,
		quote        BIGINT NOT NULL,
		PRIMARY KEY (pair, day)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
	`)
	return err
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, info *model.SnapshotInfo, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, day, seed, size, data, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6)`,
		info.ID, info.Day, fmt.Sprint(info.Seed), info.Size, data, info.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*model.SnapshotInfo, []byte, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id::TEXT, day, seed::TEXT, size, data, created_at
		 FROM snapshots WHERE id = $1`, id)
	info, data, err := scanSnapshot(row)
	if err != nil {
		return nil, nil, fmt.Errorf("get snapshot %s: %w", id, err)
	}
	return info, data, nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context) (*model.SnapshotInfo, []byte, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id::TEXT, day, seed::TEXT, size, data, created_at
		 FROM snapshots ORDER BY created_at DESC LIMIT 1`)
	info, data, err := scanSnapshot(row)
	if err != nil {
		return nil, nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return info, data, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, day, seed::TEXT, size, created_at
		 FROM snapshots ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []model.SnapshotInfo
	for rows.Next() {
		var info model.SnapshotInfo
		var seed string
		if err := rows.Scan(&info.ID, &info.Day, &seed, &info.Size, &info.CreatedAt); err != nil {
			return nil, err
		}
		if info.Seed, err = parseSeed(seed); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *PostgresStore) InsertCloses(ctx context.Context, closes []model.MarketClose) error {
	batch := &pgx.Batch{}
	for _, c := range closes {
		batch.Queue(
			`INSERT INTO market_closes (pair, day, open, high, low, close, volume_base, volume_quote, base, quote)
			 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8, $9, $10)`,
			c.Pair, c.Day,
			c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(),
			c.VolumeBase, c.VolumeQuote, c.Base, c.Quote,
		)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

func (s *PostgresStore) GetHistory(ctx context.Context, pair string, limit int) ([]model.MarketClose, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.pool.Query(ctx,
		`SELECT * FROM (
			SELECT pair, day, open::TEXT, high::TEXT, low::TEXT, close::TEXT,
			       volume_base, volume_quote, base, quote
			FROM market_closes WHERE pair = $1
			ORDER BY day DESC
			LIMIT NULLIF($2, -1)
		 ) latest ORDER BY day`, pair, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var closes []model.MarketClose
	for rows.Next() {
		var c model.MarketClose
		var open, high, low, closing string
		if err := rows.Scan(&c.Pair, &c.Day, &open, &high, &low, &closing,
			&c.VolumeBase, &c.VolumeQuote, &c.Base, &c.Quote); err != nil {
			return nil, err
		}
		c.Open, _ = decimal.NewFromString(open)
		c.High, _ = decimal.NewFromString(high)
		c.Low, _ = decimal.NewFromString(low)
		c.Close, _ = decimal.NewFromString(closing)
		closes = append(closes, c)
	}
	return closes, rows.Err()
}

func scanSnapshot(row pgx.Row) (*model.SnapshotInfo, []byte, error) {
	var info model.SnapshotInfo
	var seed string
	var data []byte
	err := row.Scan(&info.ID, &info.Day, &seed, &info.Size, &data, &info.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if info.Seed, err = parseSeed(seed); err != nil {
		return nil, nil, err
	}
	return &info, data, nil
}
