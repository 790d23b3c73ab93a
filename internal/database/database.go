package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/franckalain/grocerylens/internal/cache"
	"github.com/franckalain/grocerylens/internal/models"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrListNotFound is returned when a shopping list id is unknown.
var ErrListNotFound = errors.New("shopping list not found")

// DB interface defines the methods our database should implement
type DB interface {
	cache.Store

	SaveScanEvent(ctx context.Context, event *models.ScanEvent) error
	GetRecentScanEvents(ctx context.Context, limit int) ([]*models.ScanEvent, error)

	CreateShoppingList(ctx context.Context, name string, items []string) (*models.ShoppingList, error)
	GetShoppingList(ctx context.Context, id string) (*models.ShoppingList, error)
	SaveShoppingList(ctx context.Context, list *models.ShoppingList) error

	Close() error
}

// SQLiteDB implements the DB interface
type SQLiteDB struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string, logger *zap.SugaredLogger) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// One connection keeps the pragmas below in force for every statement.
	db.SetMaxOpenConns(1)

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}
	logger.Infow("Database schema initialized", "path", dbPath)

	return &SQLiteDB{db: db, logger: logger}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
