package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eatsdeals/eats-deals-bot/internal/models"
)

// Store persists deals in SQLite. The (fingerprint, item_name) primary key
// makes duplicate rows impossible regardless of caller behavior, and a
// store-level mutex serializes writers so concurrent upserts never interleave
// below the statement level.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// New opens a SQLite database at the given path and configures WAL mode.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite exec %s: %w", pragma, err)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS deals (
	fingerprint        TEXT NOT NULL,
	restaurant         TEXT NOT NULL,
	item_name          TEXT NOT NULL,
	price              REAL NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	promotion_type     TEXT NOT NULL DEFAULT '',
	delivery_fee       TEXT NOT NULL DEFAULT '',
	rating_and_reviews TEXT NOT NULL DEFAULT '',
	delivery_time      TEXT NOT NULL DEFAULT '',
	url                TEXT NOT NULL,
	timestamp          DATETIME NOT NULL,
	PRIMARY KEY (fingerprint, item_name)
);

CREATE INDEX IF NOT EXISTS idx_deals_timestamp ON deals(timestamp);

CREATE TABLE IF NOT EXISTS chat_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	timestamp  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_chat_history_session ON chat_history(session_id);
`

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migration); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const dealColumns = `fingerprint, restaurant, item_name, price, description,
	promotion_type, delivery_fee, rating_and_reviews, delivery_time, url, timestamp`

// Upsert writes or overwrites the unique (fingerprint, item_name) row.
// The timestamp is always the write time, never carried over from a prior row.
func (s *Store) Upsert(ctx context.Context, deal models.Deal) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deals (`+dealColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint, item_name) DO UPDATE SET
			restaurant         = excluded.restaurant,
			price              = excluded.price,
			description        = excluded.description,
			promotion_type     = excluded.promotion_type,
			delivery_fee       = excluded.delivery_fee,
			rating_and_reviews = excluded.rating_and_reviews,
			delivery_time      = excluded.delivery_time,
			url                = excluded.url,
			timestamp          = excluded.timestamp`,
		deal.Fingerprint, deal.Restaurant, deal.ItemName, deal.Price,
		deal.Description, deal.PromotionType, deal.DeliveryFee,
		deal.RatingAndReviews, deal.DeliveryTime, deal.URL, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite upsert deal %q/%q: %w", deal.Fingerprint, deal.ItemName, err)
	}
	return nil
}

// Lookup returns every row under a fingerprint, most recent first. An empty
// slice is the cache-miss signal that triggers a live re-scrape.
func (s *Store) Lookup(ctx context.Context, fingerprint string) ([]models.Deal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE fingerprint = ?
		ORDER BY timestamp DESC`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("sqlite lookup %q: %w", fingerprint, err)
	}
	defer rows.Close()
	return scanDeals(rows)
}

// All returns every stored deal, most recent first.
func (s *Store) All(ctx context.Context) ([]models.Deal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dealColumns+` FROM deals
		ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list deals: %w", err)
	}
	defer rows.Close()
	return scanDeals(rows)
}

// DeleteStale removes deal rows older than the given age and reports how
// many were deleted. Only the janitor calls this.
func (s *Store) DeleteStale(ctx context.Context, olderThan time.Duration) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sqlite delete stale deals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite rows affected: %w", err)
	}
	return int(n), nil
}

func scanDeals(rows *sql.Rows) ([]models.Deal, error) {
	deals := []models.Deal{}
	for rows.Next() {
		var d models.Deal
		if err := rows.Scan(
			&d.Fingerprint, &d.Restaurant, &d.ItemName, &d.Price,
			&d.Description, &d.PromotionType, &d.DeliveryFee,
			&d.RatingAndReviews, &d.DeliveryTime, &d.URL, &d.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("sqlite scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite iterate deals: %w", err)
	}
	return deals, nil
}
