package models

import "time"

// ShoppingListItem is one entry of a shopping list.
type ShoppingListItem struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
}

// ShoppingList is an in-progress shopping list. Items keep the order the user entered them in.
type ShoppingList struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Items          []ShoppingListItem `json:"items"`
	CompletedCount int                `json:"completed_count"`
	TotalCount     int                `json:"total_count"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Recount recomputes CompletedCount and TotalCount from Items.
func (l *ShoppingList) Recount() {
	l.TotalCount = len(l.Items)
	l.CompletedCount = 0
	for _, it := range l.Items {
		if it.Checked {
			l.CompletedCount++
		}
	}
}

// Complete reports whether every item on a non-empty list is checked.
func (l *ShoppingList) Complete() bool {
	return l.TotalCount > 0 && l.CompletedCount == l.TotalCount
}
