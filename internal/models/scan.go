package models

import "time"

// ScanEvent describes the outcome of one physical scan. It is handed to the
// caller for display and to the history log.
type ScanEvent struct {
	ID           string            `json:"id"`
	SessionID    string            `json:"session_id"`
	Barcode      string            `json:"barcode"`
	Source       Source            `json:"source"`
	Product      *ProductRecord    `json:"product"`
	Analysis     *HealthAnalysis   `json:"analysis"`
	ListID       string            `json:"list_id,omitempty"`
	MatchedItem  *ShoppingListItem `json:"matched_item,omitempty"`
	ListComplete bool              `json:"list_complete"`
	Timestamp    time.Time         `json:"timestamp"`
}
