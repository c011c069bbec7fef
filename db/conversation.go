package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"basilisk-llm/conversation"
	"basilisk-llm/provider"
)

// ErrConversationNotFound is returned when a conversation id does not exist
var ErrConversationNotFound = errors.New("conversation not found")

// SaveConversation persists a full conversation and returns its database id.
// The conversation's blocks, messages, attachments and system prompts are
// written in a single transaction.
func (db *DB) SaveConversation(conv *conversation.Conversation) (int64, error) {
	var convID int64
	err := db.withTx(func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.Exec(
			`INSERT INTO conversations (title, created_at, updated_at) VALUES (?, ?, ?)`,
			conv.Title, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
		convID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get conversation id: %w", err)
		}

		cspIDs, err := db.saveSystemPrompts(tx, convID, conv.Systems)
		if err != nil {
			return err
		}

		for i, block := range conv.Messages {
			var cspID *int64
			if block.SystemIndex != nil {
				if id, ok := cspIDs[*block.SystemIndex]; ok {
					linkID := id
					cspID = &linkID
				}
			}
			if err := db.saveBlockTx(tx, convID, i, block, cspID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	conv.DBID = convID
	db.log.Debug("saved conversation %d with %d blocks", convID, len(conv.Messages))
	return convID, nil
}

// saveSystemPrompts writes the conversation's system prompt links and
// returns a map from position to link id
func (db *DB) saveSystemPrompts(tx *sql.Tx, convID int64, systems []*conversation.SystemMessage) (map[int]int64, error) {
	links := make(map[int]int64, len(systems))
	for i, sys := range systems {
		spID, err := db.getOrCreateSystemPrompt(tx, sys)
		if err != nil {
			return nil, err
		}
		res, err := tx.Exec(
			`INSERT INTO conversation_system_prompts (conversation_id, system_prompt_id, position) VALUES (?, ?, ?)`,
			convID, spID, i,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to link system prompt: %w", err)
		}
		linkID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get system prompt link id: %w", err)
		}
		links[i] = linkID
	}
	return links, nil
}

// UpdateConversationTitle sets or clears a conversation's title
func (db *DB) UpdateConversationTitle(convID int64, title *string) error {
	_, err := db.conn.Exec(
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), convID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation title: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and everything that cascades
// from it. Deduplicated attachments and system prompts stay behind; see
// CleanupOrphanAttachments and CleanupOrphanSystemPrompts.
func (db *DB) DeleteConversation(convID int64) error {
	_, err := db.conn.Exec(`DELETE FROM conversations WHERE id = ?`, convID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	db.log.Debug("deleted conversation %d", convID)
	return nil
}

// LoadConversation reads a full conversation back from the database. The
// whole read runs in one transaction so the aggregate is a consistent
// snapshot even with concurrent writers.
func (db *DB) LoadConversation(convID int64) (*conversation.Conversation, error) {
	conv := &conversation.Conversation{
		Version: conversation.FormatVersion,
		DBID:    convID,
	}

	err := db.withTx(func(tx *sql.Tx) error {
		var title sql.NullString
		err := tx.QueryRow(`SELECT title FROM conversations WHERE id = ?`, convID).Scan(&title)
		if err == sql.ErrNoRows {
			return fmt.Errorf("conversation %d: %w", convID, ErrConversationNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load conversation: %w", err)
		}
		if title.Valid {
			conv.Title = &title.String
		}

		cspPositions, err := db.loadSystemPrompts(tx, conv)
		if err != nil {
			return err
		}
		return db.loadBlocks(tx, conv, cspPositions)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// loadSystemPrompts fills in the conversation's system set and returns a
// map from link id to the prompt's position
func (db *DB) loadSystemPrompts(tx *sql.Tx, conv *conversation.Conversation) (map[int64]int, error) {
	rows, err := tx.Query(`
		SELECT csp.id, csp.position, sp.id, sp.content
		FROM conversation_system_prompts csp
		JOIN system_prompts sp ON sp.id = csp.system_prompt_id
		WHERE csp.conversation_id = ?
		ORDER BY csp.position`, conv.DBID)
	if err != nil {
		return nil, fmt.Errorf("failed to load system prompts: %w", err)
	}
	defer rows.Close()

	positions := make(map[int64]int)
	for rows.Next() {
		var linkID, spID int64
		var position int
		var content string
		if err := rows.Scan(&linkID, &position, &spID, &content); err != nil {
			return nil, fmt.Errorf("failed to scan system prompt: %w", err)
		}
		conv.Systems = append(conv.Systems, &conversation.SystemMessage{
			Content: content,
			DBID:    spID,
		})
		positions[linkID] = position
	}
	return positions, rows.Err()
}

// loadBlocks fills in the conversation's message blocks in position order.
// Blocks without a user message are logged and skipped.
func (db *DB) loadBlocks(tx *sql.Tx, conv *conversation.Conversation, cspPositions map[int64]int) error {
	rows, err := tx.Query(`
		SELECT id, conversation_system_prompt_id, model_provider, model_id,
		       temperature, max_tokens, top_p, stream, created_at, updated_at
		FROM message_blocks
		WHERE conversation_id = ?
		ORDER BY position`, conv.DBID)
	if err != nil {
		return fmt.Errorf("failed to load message blocks: %w", err)
	}
	defer rows.Close()

	var blockRows []MessageBlockRow
	for rows.Next() {
		var row MessageBlockRow
		var cspID sql.NullInt64
		if err := rows.Scan(
			&row.ID, &cspID, &row.ModelProvider, &row.ModelID,
			&row.Temperature, &row.MaxTokens, &row.TopP, &row.Stream,
			&row.CreatedAt, &row.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to scan message block: %w", err)
		}
		if cspID.Valid {
			row.ConversationSystemPromptID = &cspID.Int64
		}
		blockRows = append(blockRows, row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read message blocks: %w", err)
	}

	for _, row := range blockRows {
		request, response, err := db.loadBlockMessages(tx, row.ID)
		if err != nil {
			return err
		}
		if request == nil {
			db.log.Warn("block %d has no request message, skipping", row.ID)
			continue
		}

		block := &conversation.MessageBlock{
			Request:  request,
			Response: response,
			Model: provider.AIModelInfo{
				ProviderID: row.ModelProvider,
				ModelID:    row.ModelID,
			},
			Temperature: row.Temperature,
			MaxTokens:   row.MaxTokens,
			TopP:        row.TopP,
			Stream:      row.Stream,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
			DBID:        row.ID,
		}
		if row.ConversationSystemPromptID != nil {
			if pos, ok := cspPositions[*row.ConversationSystemPromptID]; ok {
				idx := pos
				block.SystemIndex = &idx
			}
		}
		conv.Messages = append(conv.Messages, block)
	}
	return nil
}

// loadBlockMessages returns the user and assistant messages of a block
func (db *DB) loadBlockMessages(tx *sql.Tx, blockID int64) (request, response *conversation.Message, err error) {
	rows, err := tx.Query(
		`SELECT id, role, content FROM messages WHERE message_block_id = ?`, blockID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var msgRows []MessageRow
	for rows.Next() {
		var row MessageRow
		if err := rows.Scan(&row.ID, &row.Role, &row.Content); err != nil {
			return nil, nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgRows = append(msgRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read messages: %w", err)
	}

	for _, row := range msgRows {
		msg, err := db.loadMessage(tx, row)
		if err != nil {
			return nil, nil, err
		}
		switch row.Role {
		case string(conversation.RoleUser):
			request = msg
		case string(conversation.RoleAssistant):
			response = msg
		}
	}
	return request, response, nil
}

// loadMessage rebuilds a message with its attachments and citations
func (db *DB) loadMessage(tx *sql.Tx, row MessageRow) (*conversation.Message, error) {
	msg := &conversation.Message{
		Role:    conversation.MessageRole(row.Role),
		Content: row.Content,
	}

	attachments, err := db.loadAttachments(tx, row.ID)
	if err != nil {
		return nil, err
	}
	msg.Attachments = attachments

	citations, err := db.loadCitations(tx, row.ID)
	if err != nil {
		return nil, err
	}
	msg.Citations = citations
	return msg, nil
}

// loadCitations returns a message's citations in position order
func (db *DB) loadCitations(tx *sql.Tx, messageID int64) ([]*conversation.Citation, error) {
	rows, err := tx.Query(`
		SELECT cited_text, source_title, source_url, start_index, end_index
		FROM citations WHERE message_id = ? ORDER BY position`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load citations: %w", err)
	}
	defer rows.Close()

	var citations []*conversation.Citation
	for rows.Next() {
		var c conversation.Citation
		if err := rows.Scan(&c.CitedText, &c.SourceTitle, &c.SourceURL, &c.StartIndex, &c.EndIndex); err != nil {
			return nil, fmt.Errorf("failed to scan citation: %w", err)
		}
		citations = append(citations, &c)
	}
	return citations, rows.Err()
}
