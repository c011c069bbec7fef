package db

import (
	"database/sql"
	"fmt"

	"basilisk-llm/conversation"
)

// SaveMessageBlock writes one completed block to an existing conversation.
// Any block already at the position (e.g. a draft) is replaced, and the
// conversation's updated_at is set to the block's updated_at.
func (db *DB) SaveMessageBlock(convID int64, blockIndex int, block *conversation.MessageBlock, system *conversation.SystemMessage) error {
	err := db.withTx(func(tx *sql.Tx) error {
		if err := deleteBlockAt(tx, convID, blockIndex); err != nil {
			return err
		}
		cspID, err := db.resolveSystemPromptLink(tx, convID, block, system)
		if err != nil {
			return err
		}
		if err := db.saveBlockTx(tx, convID, blockIndex, block, cspID); err != nil {
			return err
		}
		_, err = tx.Exec(
			`UPDATE conversations SET updated_at = ? WHERE id = ?`,
			block.UpdatedAt, convID,
		)
		if err != nil {
			return fmt.Errorf("failed to update conversation timestamp: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.log.Debug("saved block %d for conversation %d", blockIndex, convID)
	return nil
}

// SaveDraftBlock writes or replaces a request-only block at the given
// position. The conversation timestamp is left untouched; drafts do not
// count as activity.
func (db *DB) SaveDraftBlock(convID int64, blockIndex int, block *conversation.MessageBlock, system *conversation.SystemMessage) error {
	err := db.withTx(func(tx *sql.Tx) error {
		if err := deleteBlockAt(tx, convID, blockIndex); err != nil {
			return err
		}
		cspID, err := db.resolveSystemPromptLink(tx, convID, block, system)
		if err != nil {
			return err
		}
		return db.saveDraftBlockTx(tx, convID, blockIndex, block, cspID)
	})
	if err != nil {
		return err
	}
	db.log.Debug("saved draft block %d for conversation %d", blockIndex, convID)
	return nil
}

// DeleteDraftBlock removes the block at the given position if it has no
// assistant message. Finalized blocks and missing positions are left alone.
func (db *DB) DeleteDraftBlock(convID int64, blockIndex int) error {
	return db.withTx(func(tx *sql.Tx) error {
		var blockID int64
		err := tx.QueryRow(
			`SELECT id FROM message_blocks WHERE conversation_id = ? AND position = ?`,
			convID, blockIndex,
		).Scan(&blockID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find draft block: %w", err)
		}

		var hasResponse bool
		err = tx.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM messages WHERE message_block_id = ? AND role = 'assistant')`,
			blockID,
		).Scan(&hasResponse)
		if err != nil {
			return fmt.Errorf("failed to check draft block: %w", err)
		}
		if hasResponse {
			return nil
		}

		if _, err := tx.Exec(`DELETE FROM message_blocks WHERE id = ?`, blockID); err != nil {
			return fmt.Errorf("failed to delete draft block: %w", err)
		}
		db.log.Debug("deleted draft block %d for conversation %d", blockIndex, convID)
		return nil
	})
}

// deleteBlockAt removes any existing block at the given position. Messages,
// attachment links and citations cascade away with it.
func deleteBlockAt(tx *sql.Tx, convID int64, blockIndex int) error {
	_, err := tx.Exec(
		`DELETE FROM message_blocks WHERE conversation_id = ? AND position = ?`,
		convID, blockIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to delete block at position %d: %w", blockIndex, err)
	}
	return nil
}

// getOrCreateSystemPrompt deduplicates a system prompt by content hash,
// memoizing the row id on the in-memory object
func (db *DB) getOrCreateSystemPrompt(tx *sql.Tx, sys *conversation.SystemMessage) (int64, error) {
	if sys.DBID != 0 {
		return sys.DBID, nil
	}

	hash := contentHash([]byte(sys.Content))
	var id int64
	err := tx.QueryRow(`SELECT id FROM system_prompts WHERE content_hash = ?`, hash).Scan(&id)
	if err == sql.ErrNoRows {
		res, err := tx.Exec(
			`INSERT INTO system_prompts (content_hash, content) VALUES (?, ?)`,
			hash, sys.Content,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert system prompt: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get system prompt id: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("failed to look up system prompt: %w", err)
	}

	sys.DBID = id
	return id, nil
}

// resolveSystemPromptLink returns the conversation_system_prompts link id
// for a block, creating the link at the block's system index if needed
func (db *DB) resolveSystemPromptLink(tx *sql.Tx, convID int64, block *conversation.MessageBlock, system *conversation.SystemMessage) (*int64, error) {
	if system == nil || block.SystemIndex == nil {
		return nil, nil
	}

	spID, err := db.getOrCreateSystemPrompt(tx, system)
	if err != nil {
		return nil, err
	}

	var linkID int64
	err = tx.QueryRow(
		`SELECT id FROM conversation_system_prompts WHERE conversation_id = ? AND position = ?`,
		convID, *block.SystemIndex,
	).Scan(&linkID)
	if err == sql.ErrNoRows {
		res, err := tx.Exec(
			`INSERT INTO conversation_system_prompts (conversation_id, system_prompt_id, position) VALUES (?, ?, ?)`,
			convID, spID, *block.SystemIndex,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to link system prompt: %w", err)
		}
		linkID, err = res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get system prompt link id: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up system prompt link: %w", err)
	}
	return &linkID, nil
}

// saveBlockTx writes a block row plus its user message and, when present,
// its assistant message
func (db *DB) saveBlockTx(tx *sql.Tx, convID int64, blockIndex int, block *conversation.MessageBlock, cspID *int64) error {
	blockID, err := db.insertBlockRow(tx, convID, blockIndex, block, cspID)
	if err != nil {
		return err
	}
	if err := db.saveMessageTx(tx, blockID, conversation.RoleUser, block.Request); err != nil {
		return err
	}
	if block.Response != nil {
		if err := db.saveMessageTx(tx, blockID, conversation.RoleAssistant, block.Response); err != nil {
			return err
		}
	}
	return nil
}

// saveDraftBlockTx writes a block row with only its user message
func (db *DB) saveDraftBlockTx(tx *sql.Tx, convID int64, blockIndex int, block *conversation.MessageBlock, cspID *int64) error {
	blockID, err := db.insertBlockRow(tx, convID, blockIndex, block, cspID)
	if err != nil {
		return err
	}
	return db.saveMessageTx(tx, blockID, conversation.RoleUser, block.Request)
}

func (db *DB) insertBlockRow(tx *sql.Tx, convID int64, blockIndex int, block *conversation.MessageBlock, cspID *int64) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO message_blocks (
			conversation_id, conversation_system_prompt_id, position,
			model_provider, model_id, temperature, max_tokens, top_p, stream,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		convID, cspID, blockIndex,
		block.Model.ProviderID, block.Model.ModelID,
		block.Temperature, block.MaxTokens, block.TopP, block.Stream,
		block.CreatedAt, block.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message block: %w", err)
	}
	blockID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get block id: %w", err)
	}
	block.DBID = blockID
	return blockID, nil
}

// saveMessageTx writes a message with its attachments and citations
func (db *DB) saveMessageTx(tx *sql.Tx, blockID int64, role conversation.MessageRole, msg *conversation.Message) error {
	res, err := tx.Exec(
		`INSERT INTO messages (message_block_id, role, content) VALUES (?, ?, ?)`,
		blockID, string(role), msg.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	msgID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get message id: %w", err)
	}

	for pos, att := range msg.Attachments {
		if err := db.saveAttachmentTx(tx, msgID, pos, att); err != nil {
			return err
		}
	}

	for pos, citation := range msg.Citations {
		_, err := tx.Exec(`
			INSERT INTO citations (message_id, position, cited_text, source_title, source_url, start_index, end_index)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			msgID, pos,
			citation.CitedText, citation.SourceTitle, citation.SourceURL,
			citation.StartIndex, citation.EndIndex,
		)
		if err != nil {
			return fmt.Errorf("failed to insert citation: %w", err)
		}
	}
	return nil
}
