package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"basilisk-llm/conversation"
	"basilisk-llm/provider"
	"basilisk-llm/utils"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()

	logger, err := utils.NewLogger(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	database, err := New(filepath.Join(dir, "conversations.db"), logger)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

var memCounter int

// memoryAttachment creates a memory-located attachment with the given payload
func memoryAttachment(t *testing.T, name string, data []byte) *conversation.AttachmentFile {
	t.Helper()
	memCounter++
	location := fmt.Sprintf("/test/%d/%s", memCounter, name)
	att, err := conversation.NewMemoryAttachment(location, name, data)
	if err != nil {
		t.Fatalf("failed to create memory attachment: %v", err)
	}
	return att
}

func testModel() provider.AIModelInfo {
	return provider.AIModelInfo{ProviderID: "openai", ModelID: "gpt-4o"}
}

// newBlock builds a completed request/response block
func newBlock(request, response string) *conversation.MessageBlock {
	block := conversation.NewMessageBlock(&conversation.Message{
		Role:    conversation.RoleUser,
		Content: request,
	}, testModel())
	if response != "" {
		block.Response = &conversation.Message{
			Role:    conversation.RoleAssistant,
			Content: response,
		}
	}
	return block
}

// sampleConversation builds a two-block conversation with a shared system
// prompt
func sampleConversation() *conversation.Conversation {
	conv := conversation.New()
	title := "Test chat"
	conv.Title = &title

	system := &conversation.SystemMessage{Content: "You are a helpful assistant."}
	conv.AddBlock(newBlock("Hello", "Hi there!"), system)
	conv.AddBlock(newBlock("How are you?", "Doing fine."), system)
	return conv
}

func conversationUpdatedAt(t *testing.T, database *DB, convID int64) time.Time {
	t.Helper()
	var updatedAt time.Time
	err := database.conn.QueryRow(
		`SELECT updated_at FROM conversations WHERE id = ?`, convID,
	).Scan(&updatedAt)
	if err != nil {
		t.Fatalf("failed to read updated_at: %v", err)
	}
	return updatedAt
}

func countRows(t *testing.T, database *DB, table string) int {
	t.Helper()
	var count int
	if err := database.conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return count
}
