package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rarestbarbie/majesty-sub001/internal/model"
)

// SQLiteStore implements Store on a single SQLite file, for running the
// server without PostgreSQL.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		day INTEGER NOT NULL,
		seed TEXT NOT NULL,
		size INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS market_closes (
		pair TEXT NOT NULL,
		day INTEGER NOT NULL,
		open TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		close TEXT NOT NULL,
		volume_base INTEGER NOT NULL,
		volume_quote INTEGER NOT NULL,
		base INTEGER NOT NULL,
		quote INTEGER NOT NULL,
		PRIMARY KEY (pair, day)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// snapshotRow mirrors the snapshots table; seed and time are text.
type snapshotRow struct {
	ID        string `db:"id"`
	Day       int64  `db:"day"`
	Seed      string `db:"seed"`
	Size      int    `db:"size"`
	Data      []byte `db:"data"`
	CreatedAt string `db:"created_at"`
}

func (r snapshotRow) info() (*model.SnapshotInfo, error) {
	seed, err := parseSeed(r.Seed)
	if err != nil {
		return nil, err
	}
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &model.SnapshotInfo{ID: r.ID, Day: r.Day, Seed: seed, Size: r.Size, CreatedAt: created}, nil
}

type closeRow struct {
	Pair        string `db:"pair"`
	Day         int64  `db:"day"`
	Open        string `db:"open"`
	High        string `db:"high"`
	Low         string `db:"low"`
	Close       string `db:"close"`
	VolumeBase  int64  `db:"volume_base"`
	VolumeQuote int64  `db:"volume_quote"`
	Base        int64  `db:"base"`
	Quote       int64  `db:"quote"`
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, info *model.SnapshotInfo, data []byte) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO snapshots (id, day, seed, size, data, created_at)
		 VALUES (:id, :day, :seed, :size, :data, :created_at)`,
		snapshotRow{
			ID:        info.ID,
			Day:       info.Day,
			Seed:      strconv.FormatUint(info.Seed, 10),
			Size:      info.Size,
			Data:      data,
			CreatedAt: info.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	return err
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*model.SnapshotInfo, []byte, error) {
	var r snapshotRow
	err := s.db.GetContext(ctx, &r,
		`SELECT id, day, seed, size, data, created_at FROM snapshots WHERE id = ?`, id)
	return s.snapshot(r, err, "get snapshot "+id)
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*model.SnapshotInfo, []byte, error) {
	var r snapshotRow
	err := s.db.GetContext(ctx, &r,
		`SELECT id, day, seed, size, data, created_at FROM snapshots ORDER BY seq DESC LIMIT 1`)
	return s.snapshot(r, err, "latest snapshot")
}

func (s *SQLiteStore) snapshot(r snapshotRow, err error, op string) (*model.SnapshotInfo, []byte, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	info, err := r.info()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return info, r.Data, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]model.SnapshotInfo, error) {
	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, day, seed, size, created_at FROM snapshots ORDER BY seq DESC`); err != nil {
		return nil, err
	}
	infos := make([]model.SnapshotInfo, 0, len(rows))
	for _, r := range rows {
		info, err := r.info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

func (s *SQLiteStore) InsertCloses(ctx context.Context, closes []model.MarketClose) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx,
		`INSERT INTO market_closes (pair, day, open, high, low, close, volume_base, volume_quote, base, quote)
		 VALUES (:pair, :day, :open, :high, :low, :close, :volume_base, :volume_quote, :base, :quote)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range closes {
		if _, err := stmt.ExecContext(ctx, closeRow{
			Pair:        c.Pair,
			Day:         c.Day,
			Open:        c.Open.String(),
			High:        c.High.String(),
			Low:         c.Low.String(),
			Close:       c.Close.String(),
			VolumeBase:  c.VolumeBase,
			VolumeQuote: c.VolumeQuote,
			Base:        c.Base,
			Quote:       c.Quote,
		}); err != nil {
			return fmt.Errorf("insert close %s day %d: %w", c.Pair, c.Day, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetHistory(ctx context.Context, pair string, limit int) ([]model.MarketClose, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []closeRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM (
			SELECT pair, day, open, high, low, close, volume_base, volume_quote, base, quote
			FROM market_closes WHERE pair = ? ORDER BY day DESC LIMIT ?
		 ) ORDER BY day`, pair, limit); err != nil {
		return nil, err
	}

	closes := make([]model.MarketClose, 0, len(rows))
	for _, r := range rows {
		c := model.MarketClose{
			Pair:        r.Pair,
			Day:         r.Day,
			VolumeBase:  r.VolumeBase,
			VolumeQuote: r.VolumeQuote,
			Base:        r.Base,
			Quote:       r.Quote,
		}
		c.Open, _ = decimal.NewFromString(r.Open)
		c.High, _ = decimal.NewFromString(r.High)
		c.Low, _ = decimal.NewFromString(r.Low)
		c.Close, _ = decimal.NewFromString(r.Close)
		closes = append(closes, c)
	}
	return closes, nil
}
