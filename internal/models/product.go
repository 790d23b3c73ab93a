package models

import (
	"slices"
	"strings"
	"time"
)

// Alternative is a healthier product suggested in place of the scanned one.
type Alternative struct {
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	HealthScore int     `json:"health_score"`
	PriceDiff   float64 `json:"price_diff"`
}

// ProductRecord is a resolved product. Records are treated as immutable once
// resolved; use Clone before handing one to code that may modify it.
type ProductRecord struct {
	Barcode     string    `json:"barcode"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	ServingSize string    `json:"serving_size"`
	Nutrition   Nutrition `json:"nutrition"`

	// Ingredients are kept in printed order.
	Ingredients []string `json:"ingredients"`
	// HarmfulIngredients is a subset of Ingredients.
	HarmfulIngredients []string      `json:"harmful_ingredients"`
	Allergens          []string      `json:"allergens"`
	Alternatives       []Alternative `json:"alternatives,omitempty"`
}

// Clone returns a deep copy of the record.
func (p *ProductRecord) Clone() *ProductRecord {
	if p == nil {
		return nil
	}
	c := *p
	c.Ingredients = slices.Clone(p.Ingredients)
	c.HarmfulIngredients = slices.Clone(p.HarmfulIngredients)
	c.Allergens = slices.Clone(p.Allergens)
	c.Alternatives = slices.Clone(p.Alternatives)
	return &c
}

// IsHarmful reports whether ingredient is listed in HarmfulIngredients,
// ignoring case and surrounding whitespace.
func (p *ProductRecord) IsHarmful(ingredient string) bool {
	key := NormalizeName(ingredient)
	for _, h := range p.HarmfulIngredients {
		if NormalizeName(h) == key {
			return true
		}
	}
	return false
}

// NormalizeName lower-cases and trims a product or ingredient name for comparison.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Source identifies which resolution tier produced a record.
type Source string

const (
	SourceCache    Source = "cache"
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// CacheEntry is a record stored in the product cache. Entries are replaced, never
// modified in place.
type CacheEntry struct {
	Barcode   string         `json:"barcode"`
	Record    *ProductRecord `json:"record"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// CacheStats summarises the live cache entries at the time it was computed.
type CacheStats struct {
	TotalItems     int           `json:"total_items"`
	OldestEntryAge time.Duration `json:"oldest_entry_age"`
	NewestEntryAge time.Duration `json:"newest_entry_age"`
}
