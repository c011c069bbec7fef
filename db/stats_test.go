package db

import (
	"testing"

	"basilisk-llm/conversation"
)

func TestGetStats(t *testing.T) {
	database := newTestDB(t)

	conv := sampleConversation()
	conv.Messages[0].Request.Attachments = []conversation.Attachment{
		memoryAttachment(t, "stats.txt", []byte("payload")),
	}
	if _, err := database.SaveConversation(conv); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}

	stats, err := database.GetStats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Conversations != 1 {
		t.Errorf("expected 1 conversation, got %d", stats.Conversations)
	}
	if stats.MessageBlocks != 2 {
		t.Errorf("expected 2 blocks, got %d", stats.MessageBlocks)
	}
	if stats.Messages != 4 {
		t.Errorf("expected 4 messages, got %d", stats.Messages)
	}
	if stats.SystemPrompts != 1 {
		t.Errorf("expected 1 system prompt, got %d", stats.SystemPrompts)
	}
	if stats.Attachments != 1 {
		t.Errorf("expected 1 attachment, got %d", stats.Attachments)
	}
	if stats.SizeBytes <= 0 {
		t.Errorf("expected positive database size, got %d", stats.SizeBytes)
	}
}

func TestCleanupOrphans(t *testing.T) {
	database := newTestDB(t)

	conv := sampleConversation()
	conv.Messages[0].Request.Attachments = []conversation.Attachment{
		memoryAttachment(t, "orphan.txt", []byte("soon orphaned")),
	}
	convID, err := database.SaveConversation(conv)
	if err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}

	// Nothing is orphaned while the conversation exists
	removed, err := database.CleanupOrphanAttachments()
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected no orphan attachments yet, removed %d", removed)
	}

	if err := database.DeleteConversation(convID); err != nil {
		t.Fatalf("failed to delete conversation: %v", err)
	}
	if n := countRows(t, database, "attachments"); n != 1 {
		t.Fatalf("attachment should be orphaned, not deleted, got %d rows", n)
	}

	removed, err = database.CleanupOrphanAttachments()
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 orphan attachment removed, got %d", removed)
	}

	removedPrompts, err := database.CleanupOrphanSystemPrompts()
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removedPrompts != 1 {
		t.Errorf("expected 1 orphan system prompt removed, got %d", removedPrompts)
	}

	if n := countRows(t, database, "attachments"); n != 0 {
		t.Errorf("expected attachments to be empty, got %d", n)
	}
	if n := countRows(t, database, "system_prompts"); n != 0 {
		t.Errorf("expected system_prompts to be empty, got %d", n)
	}
}

func TestVacuum(t *testing.T) {
	database := newTestDB(t)

	if _, err := database.SaveConversation(sampleConversation()); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}
	if err := database.Vacuum(); err != nil {
		t.Errorf("vacuum failed: %v", err)
	}
}
