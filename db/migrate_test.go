package db

import (
	"path/filepath"
	"testing"

	"basilisk-llm/utils"
)

func TestMigrateCreatesSchema(t *testing.T) {
	database := newTestDB(t)

	tables := []string{
		"conversations", "system_prompts", "conversation_system_prompts",
		"message_blocks", "messages", "attachments", "message_attachments",
		"citations", "schema_migrations",
	}
	for _, table := range tables {
		var name string
		err := database.conn.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}

	var revision int
	err := database.conn.QueryRow(`SELECT MAX(revision) FROM schema_migrations`).Scan(&revision)
	if err != nil {
		t.Fatalf("failed to read schema revision: %v", err)
	}
	if revision != 1 {
		t.Errorf("expected revision 1, got %d", revision)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	logger, err := utils.NewLogger(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	dbPath := filepath.Join(dir, "conversations.db")
	database, err := New(dbPath, logger)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if _, err := database.SaveConversation(sampleConversation()); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}
	database.Close()

	// Reopening must not reapply migrations or lose data
	database, err = New(dbPath, logger)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer database.Close()

	var applied int
	if err := database.conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if applied != 1 {
		t.Errorf("expected 1 applied migration, got %d", applied)
	}

	count, err := database.CountConversations("")
	if err != nil {
		t.Fatalf("failed to count conversations: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 conversation after reopen, got %d", count)
	}
}
