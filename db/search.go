package db

import (
	"database/sql"
	"fmt"
)

// searchFilter builds the WHERE clause for a conversation search term. The
// match is a case-sensitive substring over the title or any message content;
// instr is used because LIKE is case-insensitive for ASCII in SQLite.
func searchFilter(search string) (string, []interface{}) {
	if search == "" {
		return "", nil
	}
	clause := ` WHERE instr(COALESCE(c.title, ''), ?) > 0
		OR c.id IN (
			SELECT DISTINCT mb.conversation_id
			FROM message_blocks mb
			JOIN messages m ON m.message_block_id = mb.id
			WHERE instr(m.content, ?) > 0
		)`
	return clause, []interface{}{search, search}
}

// ListConversations returns conversation summaries ordered by most recent
// activity, optionally filtered by a search term
func (db *DB) ListConversations(search string, limit, offset int) ([]*ConversationSummary, error) {
	query := `
		SELECT c.id, c.title, COALESCE(bc.message_count, 0), c.updated_at
		FROM conversations c
		LEFT JOIN (
			SELECT conversation_id, COUNT(id) AS message_count
			FROM message_blocks
			GROUP BY conversation_id
		) bc ON bc.conversation_id = c.id`

	clause, args := searchFilter(search)
	query += clause + ` ORDER BY c.updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []*ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		var title sql.NullString
		if err := rows.Scan(&s.ID, &title, &s.MessageCount, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation summary: %w", err)
		}
		if title.Valid {
			s.Title = &title.String
		}
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}

// CountConversations returns the number of conversations matching the
// optional search term
func (db *DB) CountConversations(search string) (int64, error) {
	query := `SELECT COUNT(*) FROM conversations c`
	clause, args := searchFilter(search)
	query += clause

	var count int64
	if err := db.conn.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}
