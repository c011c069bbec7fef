package db

import "fmt"

// Stats represents database statistics
type Stats struct {
	Conversations int64
	MessageBlocks int64
	Messages      int64
	SystemPrompts int64
	Attachments   int64
	SizeBytes     int64
}

// GetStats returns row counts for the main tables and the database file size
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		table string
		dest  *int64
	}{
		{"conversations", &stats.Conversations},
		{"message_blocks", &stats.MessageBlocks},
		{"messages", &stats.Messages},
		{"system_prompts", &stats.SystemPrompts},
		{"attachments", &stats.Attachments},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	var pageCount, pageSize int64
	if err := db.conn.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := db.conn.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("failed to get page size: %w", err)
	}
	stats.SizeBytes = pageCount * pageSize

	return stats, nil
}

// Vacuum optimizes the database file
func (db *DB) Vacuum() error {
	if _, err := db.conn.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// CleanupOrphanAttachments deletes attachment rows no message references.
// Deleting a conversation never triggers this; it is a maintenance call.
func (db *DB) CleanupOrphanAttachments() (int64, error) {
	res, err := db.conn.Exec(`
		DELETE FROM attachments
		WHERE id NOT IN (SELECT DISTINCT attachment_id FROM message_attachments)`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up orphan attachments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		db.log.Info("removed %d orphan attachments", n)
	}
	return n, nil
}

// CleanupOrphanSystemPrompts deletes system prompts no conversation links to
func (db *DB) CleanupOrphanSystemPrompts() (int64, error) {
	res, err := db.conn.Exec(`
		DELETE FROM system_prompts
		WHERE id NOT IN (SELECT DISTINCT system_prompt_id FROM conversation_system_prompts)`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up orphan system prompts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		db.log.Info("removed %d orphan system prompts", n)
	}
	return n, nil
}
