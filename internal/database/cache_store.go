package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/franckalain/grocerylens/internal/models"
)

// GetCacheEntry returns the stored entry for barcode, or nil when there is none.
func (s *SQLiteDB) GetCacheEntry(ctx context.Context, barcode string) (*models.CacheEntry, error) {
	query := `SELECT record, fetched_at FROM product_cache WHERE barcode = ?`

	var (
		raw       string
		fetchedAt int64
	)
	err := s.db.QueryRowContext(ctx, query, barcode).Scan(&raw, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record models.ProductRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("decoding cached record for %s: %w", barcode, err)
	}
	return &models.CacheEntry{
		Barcode:   barcode,
		Record:    &record,
		FetchedAt: time.UnixMilli(fetchedAt),
	}, nil
}

// PutCacheEntry inserts or replaces the entry for entry.Barcode.
func (s *SQLiteDB) PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	raw, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("encoding record for %s: %w", entry.Barcode, err)
	}

	query := `
		INSERT INTO product_cache (barcode, record, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(barcode) DO UPDATE SET
			record = excluded.record,
			fetched_at = excluded.fetched_at
	`
	_, err = s.db.ExecContext(ctx, query, entry.Barcode, string(raw), entry.FetchedAt.UnixMilli())
	return err
}

// PruneCacheEntries deletes entries fetched before cutoff.
func (s *SQLiteDB) PruneCacheEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM product_cache WHERE fetched_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TrimCacheEntries keeps the keep most recently fetched entries, deletes the
// rest and returns their barcodes.
func (s *SQLiteDB) TrimCacheEntries(ctx context.Context, keep int) ([]string, error) {
	query := `
		DELETE FROM product_cache WHERE barcode NOT IN (
			SELECT barcode FROM product_cache
			ORDER BY fetched_at DESC, barcode DESC
			LIMIT ?
		)
		RETURNING barcode
	`
	rows, err := s.db.QueryContext(ctx, query, keep)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evicted []string
	for rows.Next() {
		var barcode string
		if err := rows.Scan(&barcode); err != nil {
			return nil, err
		}
		evicted = append(evicted, barcode)
	}
	return evicted, rows.Err()
}

// CacheEntryStats aggregates the entries fetched at or after since.
func (s *SQLiteDB) CacheEntryStats(ctx context.Context, since time.Time) (int, time.Time, time.Time, error) {
	query := `
		SELECT COUNT(*), COALESCE(MIN(fetched_at), 0), COALESCE(MAX(fetched_at), 0)
		FROM product_cache WHERE fetched_at >= ?
	`
	var (
		count          int
		oldest, newest int64
	)
	floor := int64(0)
	if !since.IsZero() {
		floor = since.UnixMilli()
	}
	if err := s.db.QueryRowContext(ctx, query, floor).Scan(&count, &oldest, &newest); err != nil {
		return 0, time.Time{}, time.Time{}, err
	}
	if count == 0 {
		return 0, time.Time{}, time.Time{}, nil
	}
	return count, time.UnixMilli(oldest), time.UnixMilli(newest), nil
}

// ClearCache deletes every cached product.
func (s *SQLiteDB) ClearCache(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM product_cache`)
	return err
}
