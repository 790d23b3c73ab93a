package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franckalain/grocerylens/internal/models"
)

// SaveScanEvent appends a scan to the history log.
func (s *SQLiteDB) SaveScanEvent(ctx context.Context, event *models.ScanEvent) error {
	product, err := json.Marshal(event.Product)
	if err != nil {
		return fmt.Errorf("encoding product: %w", err)
	}
	analysis, err := json.Marshal(event.Analysis)
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}

	var itemID, itemName string
	if event.MatchedItem != nil {
		itemID, itemName = event.MatchedItem.ID, event.MatchedItem.Name
	}

	query := `
		INSERT OR REPLACE INTO scan_events (
			id, session_id, barcode, source, product, analysis,
			list_id, matched_item_id, matched_item_name, list_complete, scanned_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Barcode, string(event.Source),
		string(product), string(analysis),
		event.ListID, itemID, itemName, event.ListComplete, event.Timestamp.UnixMilli(),
	)
	return err
}

// GetRecentScanEvents returns the most recent scans, newest first.
func (s *SQLiteDB) GetRecentScanEvents(ctx context.Context, limit int) ([]*models.ScanEvent, error) {
	query := `
		SELECT id, session_id, barcode, source, product, analysis,
			list_id, matched_item_id, matched_item_name, list_complete, scanned_at
		FROM scan_events
		ORDER BY scanned_at DESC, id
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*models.ScanEvent{}
	for rows.Next() {
		var (
			ev                models.ScanEvent
			source            string
			product, analysis string
			itemID, itemName  string
			scannedAt         int64
		)
		err := rows.Scan(
			&ev.ID, &ev.SessionID, &ev.Barcode, &source, &product, &analysis,
			&ev.ListID, &itemID, &itemName, &ev.ListComplete, &scannedAt,
		)
		if err != nil {
			return nil, err
		}

		ev.Source = models.Source(source)
		ev.Timestamp = time.UnixMilli(scannedAt)
		if err := json.Unmarshal([]byte(product), &ev.Product); err != nil {
			return nil, fmt.Errorf("decoding product of scan %s: %w", ev.ID, err)
		}
		if err := json.Unmarshal([]byte(analysis), &ev.Analysis); err != nil {
			return nil, fmt.Errorf("decoding analysis of scan %s: %w", ev.ID, err)
		}
		if itemID != "" {
			ev.MatchedItem = &models.ShoppingListItem{ID: itemID, Name: itemName, Checked: true}
		}

		results = append(results, &ev)
	}
	return results, rows.Err()
}
