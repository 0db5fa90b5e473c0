package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("item not found")

// Database is a small key/value store on SQLite, shaped like browser local
// storage: string keys mapping to string values. It is safe for concurrent
// use because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for better performance
	getItemStmt    *sql.Stmt
	setItemStmt    *sql.Stmt
	removeItemStmt *sql.Stmt
}

// Item is one stored key with its metadata.
type Item struct {
	Key       string
	Size      int
	UpdatedAt time.Time
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures the item table exists. It also applies lightweight
// performance-oriented pragmas (WAL, cache sizing). Caller should Close() it
// when finished.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works better with fewer connections
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA auto_vacuum=INCREMENTAL;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables creates the item table if it does not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	itemsTable := `
	CREATE TABLE IF NOT EXISTS items (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`

	if _, err := db.conn.Exec(itemsTable); err != nil {
		return err
	}

	return db.runMigrations()
}

// runMigrations performs incremental schema updates in-place. Each migration
// should be idempotent and safe to re-run; keep them lightweight.
func (db *Database) runMigrations() error {
	// Migration 1: track when each item was last written
	var columnExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('items')
		WHERE name = 'updated_at'`).Scan(&columnExists)
	if err != nil {
		return err
	}

	if !columnExists {
		if _, err := db.conn.Exec("ALTER TABLE items ADD COLUMN updated_at DATETIME"); err != nil {
			return err
		}
		db.logger.Info("Added updated_at column to items table")
	}

	return nil
}

// prepareStatements prepares the item statements.
func (db *Database) prepareStatements() error {
	var err error

	db.getItemStmt, err = db.conn.Prepare(`SELECT value FROM items WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get item statement: %w", err)
	}

	db.setItemStmt, err = db.conn.Prepare(`
		INSERT INTO items (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare set item statement: %w", err)
	}

	db.removeItemStmt, err = db.conn.Prepare(`DELETE FROM items WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare remove item statement: %w", err)
	}

	return nil
}

// GetItem returns the value stored under key. A missing key is not an error:
// ok is false.
func (db *Database) GetItem(key string) (string, bool, error) {
	var value string
	err := db.getItemStmt.QueryRow(key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get item %q: %w", key, err)
	}
	return value, true, nil
}

// SetItem stores value under key, replacing any previous value.
func (db *Database) SetItem(key, value string) error {
	if _, err := db.setItemStmt.Exec(key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set item %q: %w", key, err)
	}
	return nil
}

// RemoveItem deletes key, returning ErrNotFound when it does not exist.
func (db *Database) RemoveItem(key string) error {
	result, err := db.removeItemStmt.Exec(key)
	if err != nil {
		return fmt.Errorf("failed to remove item %q: %w", key, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	db.logger.WithField("key", key).Info("Removed item")
	return nil
}

// Items lists the stored keys ordered by key.
func (db *Database) Items() ([]Item, error) {
	rows, err := db.conn.Query(`SELECT key, length(value), updated_at FROM items ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var updatedAt sql.NullTime
		if err := rows.Scan(&item.Key, &item.Size, &updatedAt); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			item.UpdatedAt = updatedAt.Time
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.getItemStmt,
		db.setItemStmt,
		db.removeItemStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
