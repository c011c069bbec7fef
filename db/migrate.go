package db

import (
	"database/sql"
	"fmt"
	"time"
)

// migration is one forward-only schema revision. Revisions are applied in
// order, each in its own transaction, and recorded in schema_migrations.
type migration struct {
	revision   int
	name       string
	statements []string
}

var migrations = []migration{
	{
		revision: 1,
		name:     "initial schema",
		statements: []string{
			`CREATE TABLE conversations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				title TEXT,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX ix_conversations_updated ON conversations(updated_at DESC)`,

			`CREATE TABLE system_prompts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				content TEXT NOT NULL,
				content_hash VARCHAR(64) NOT NULL UNIQUE
			)`,

			`CREATE TABLE conversation_system_prompts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				system_prompt_id INTEGER NOT NULL REFERENCES system_prompts(id),
				position INTEGER NOT NULL,
				UNIQUE(conversation_id, position)
			)`,
			`CREATE INDEX ix_conv_sys_prompts_conv ON conversation_system_prompts(conversation_id)`,

			`CREATE TABLE message_blocks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				conversation_system_prompt_id INTEGER REFERENCES conversation_system_prompts(id) ON DELETE SET NULL,
				position INTEGER NOT NULL,
				model_provider TEXT NOT NULL,
				model_id TEXT NOT NULL,
				temperature REAL NOT NULL DEFAULT 1.0,
				max_tokens INTEGER NOT NULL DEFAULT 4096,
				top_p REAL NOT NULL DEFAULT 1.0,
				stream BOOLEAN NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE(conversation_id, position)
			)`,
			`CREATE INDEX ix_message_blocks_conversation ON message_blocks(conversation_id, position)`,

			`CREATE TABLE messages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				message_block_id INTEGER NOT NULL REFERENCES message_blocks(id) ON DELETE CASCADE,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				UNIQUE(message_block_id, role)
			)`,
			`CREATE INDEX ix_messages_block ON messages(message_block_id)`,
			`CREATE INDEX ix_messages_content ON messages(content)`,

			`CREATE TABLE attachments (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				content_hash VARCHAR(64) NOT NULL UNIQUE,
				name TEXT,
				mime_type TEXT,
				size INTEGER,
				location_type TEXT NOT NULL,
				url TEXT,
				blob_data BLOB,
				is_image BOOLEAN NOT NULL DEFAULT 0,
				image_width INTEGER,
				image_height INTEGER
			)`,
			`CREATE INDEX ix_attachments_hash ON attachments(content_hash)`,

			`CREATE TABLE message_attachments (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				attachment_id INTEGER NOT NULL REFERENCES attachments(id),
				position INTEGER NOT NULL,
				description TEXT,
				UNIQUE(message_id, position)
			)`,

			`CREATE TABLE citations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				cited_text TEXT,
				source_title TEXT,
				source_url TEXT,
				start_index INTEGER,
				end_index INTEGER
			)`,
		},
	},
}

// migrate brings the schema up to the latest revision
func (db *DB) migrate() error {
	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		revision INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current sql.NullInt64
	if err := db.conn.QueryRow(`SELECT MAX(revision) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema revision: %w", err)
	}

	for _, m := range migrations {
		if current.Valid && m.revision <= int(current.Int64) {
			continue
		}
		if err := db.applyMigration(m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.revision, m.name, err)
		}
		db.log.Info("applied migration %d: %s", m.revision, m.name)
	}
	return nil
}

func (db *DB) applyMigration(m migration) error {
	return db.withTx(func(tx *sql.Tx) error {
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("statement failed: %w", err)
			}
		}
		_, err := tx.Exec(
			`INSERT INTO schema_migrations (revision, name, applied_at) VALUES (?, ?, ?)`,
			m.revision, m.name, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}
