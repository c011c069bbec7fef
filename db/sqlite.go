// Package db persists conversations to a local SQLite database. The schema
// normalizes conversations into blocks, messages, deduplicated attachments
// and system prompts; every public operation is transactional.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"basilisk-llm/utils"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	log  *utils.Logger
}

// New opens the database at dbPath, creating it and running any pending
// migrations. A migration failure closes the connection and is returned as
// an error; callers treat it as fatal.
func New(dbPath string, logger *utils.Logger) (*DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL allows concurrent readers during writes; the busy timeout makes
	// writers wait instead of failing when the database is locked
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, log: logger}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// withTx runs fn inside a transaction, rolling back on error
func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
