package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/franckalain/grocerylens/internal/models"
)

// CreateShoppingList stores a new list with one unchecked item per name.
// Blank names are skipped.
func (s *SQLiteDB) CreateShoppingList(ctx context.Context, name string, items []string) (*models.ShoppingList, error) {
	now := time.Now()
	list := &models.ShoppingList{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Items:     []models.ShoppingListItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, n := range items {
		if n = strings.TrimSpace(n); n == "" {
			continue
		}
		list.Items = append(list.Items, models.ShoppingListItem{ID: uuid.New().String(), Name: n})
	}
	list.Recount()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO shopping_lists (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		list.ID, list.Name, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting shopping list: %w", err)
	}
	if err := upsertItems(ctx, tx, list); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return list, nil
}

// GetShoppingList loads a list with its items in order.
func (s *SQLiteDB) GetShoppingList(ctx context.Context, id string) (*models.ShoppingList, error) {
	list := &models.ShoppingList{ID: id, Items: []models.ShoppingListItem{}}
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT name, created_at, updated_at FROM shopping_lists WHERE id = ?`, id,
	).Scan(&list.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListNotFound
	}
	if err != nil {
		return nil, err
	}
	list.CreatedAt = time.UnixMilli(createdAt)
	list.UpdatedAt = time.UnixMilli(updatedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, checked FROM shopping_list_items WHERE list_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it models.ShoppingListItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Checked); err != nil {
			return nil, err
		}
		list.Items = append(list.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	list.Recount()
	return list, nil
}

// SaveShoppingList writes back item check states of an existing list.
func (s *SQLiteDB) SaveShoppingList(ctx context.Context, list *models.ShoppingList) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	list.UpdatedAt = time.Now()
	res, err := tx.ExecContext(ctx,
		`UPDATE shopping_lists SET name = ?, updated_at = ? WHERE id = ?`,
		list.Name, list.UpdatedAt.UnixMilli(), list.ID,
	)
	if err != nil {
		return fmt.Errorf("updating shopping list: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrListNotFound
	}
	if err := upsertItems(ctx, tx, list); err != nil {
		return err
	}
	list.Recount()
	return tx.Commit()
}

func upsertItems(ctx context.Context, tx *sql.Tx, list *models.ShoppingList) error {
	query := `
		INSERT INTO shopping_list_items (id, list_id, position, name, checked)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position = excluded.position,
			name = excluded.name,
			checked = excluded.checked
	`
	for i, it := range list.Items {
		if _, err := tx.ExecContext(ctx, query, it.ID, list.ID, i, it.Name, it.Checked); err != nil {
			return fmt.Errorf("saving item %q: %w", it.Name, err)
		}
	}
	return nil
}
