package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"shopwatch/internal/model"
	"shopwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetSnapshot returns every stored item for key.
func (s *SQLite) GetSnapshot(ctx context.Context, key model.SnapshotKey) (model.Snapshot, bool, error) {
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM snapshot_keys WHERE keyword = ? AND source = ?`,
		key.Keyword, string(key.Source),
	).Scan(&updated)
	if err == sql.ErrNoRows {
		return model.Snapshot{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query snapshot key: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, source, title, price, buy_now_price, status, bids, url, image_url, seller_id, ends_at, observed_at
		 FROM snapshot_items WHERE keyword = ? AND source = ?`,
		key.Keyword, string(key.Source),
	)
	if err != nil {
		return nil, false, fmt.Errorf("query snapshot items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snap := model.Snapshot{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, false, err
		}
		snap[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate snapshot items: %w", err)
	}
	return snap, true, nil
}

// PutSnapshot replaces the items stored for key in one transaction.
func (s *SQLite) PutSnapshot(ctx context.Context, key model.SnapshotKey, snap model.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshot_items WHERE keyword = ? AND source = ?`,
		key.Keyword, string(key.Source),
	); err != nil {
		return fmt.Errorf("delete snapshot items: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshot_items
		 (keyword, source, item_id, title, price, buy_now_price, status, bids, url, image_url, seller_id, ends_at, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for id, it := range snap {
		if _, err := stmt.ExecContext(ctx,
			key.Keyword, string(key.Source), id, it.Title, it.Price, it.BuyNowPrice,
			string(it.Status), it.Bids, it.URL, it.ImageURL, it.SellerID, formatTime(it.EndsAt), it.ObservedAt.UTC().Format(timeLayout),
		); err != nil {
			return fmt.Errorf("insert snapshot item %q: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_keys (keyword, source, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (keyword, source) DO UPDATE SET updated_at = excluded.updated_at`,
		key.Keyword, string(key.Source), s.now().UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("upsert snapshot key: %w", err)
	}
	return tx.Commit()
}

// RecordRun inserts run and populates its ID.
func (s *SQLite) RecordRun(ctx context.Context, run *model.RunLog) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO run_logs (source, started_at, errors, pages, items, new_items, discounted, status_changed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(run.Source), run.StartedAt.UTC().Format(timeLayout), run.Errors, run.Pages, run.Items,
		run.New, run.Discounted, run.StatusChanged,
	)
	if err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// ListRuns returns the most recent run logs first.
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]model.RunLog, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, started_at, errors, pages, items, new_items, discounted, status_changed
		 FROM run_logs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query run logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.RunLog
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (model.Item, error) {
	var it model.Item
	var src, status, observed string
	var endsAt sql.NullString
	err := row.Scan(&it.ID, &src, &it.Title, &it.Price, &it.BuyNowPrice, &status, &it.Bids,
		&it.URL, &it.ImageURL, &it.SellerID, &endsAt, &observed)
	if err != nil {
		return it, fmt.Errorf("scan snapshot item: %w", err)
	}
	it.Source = model.Source(src)
	it.Status = model.Status(status)
	if endsAt.Valid {
		it.EndsAt, _ = time.Parse(timeLayout, endsAt.String)
	}
	it.ObservedAt, _ = time.Parse(timeLayout, observed)
	return it, nil
}

func scanRun(row scannable) (model.RunLog, error) {
	var r model.RunLog
	var src, started string
	err := row.Scan(&r.ID, &src, &started, &r.Errors, &r.Pages, &r.Items, &r.New, &r.Discounted, &r.StatusChanged)
	if err != nil {
		return r, fmt.Errorf("scan run log: %w", err)
	}
	r.Source = model.Source(src)
	r.StartedAt, _ = time.Parse(timeLayout, started)
	return r, nil
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}
