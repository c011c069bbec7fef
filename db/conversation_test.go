package db

import (
	"errors"
	"fmt"
	"testing"

	"basilisk-llm/conversation"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	database := newTestDB(t)

	conv := sampleConversation()
	cited := "some cited text"
	sourceURL := "https://example.com/doc"
	start := 3
	conv.Messages[1].Response.Citations = []*conversation.Citation{
		{CitedText: &cited, SourceURL: &sourceURL, StartIndex: &start},
	}

	convID, err := database.SaveConversation(conv)
	if err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}
	if convID == 0 {
		t.Fatal("expected non-zero conversation id")
	}
	if conv.DBID != convID {
		t.Errorf("expected conversation DBID %d, got %d", convID, conv.DBID)
	}

	loaded, err := database.LoadConversation(convID)
	if err != nil {
		t.Fatalf("failed to load conversation: %v", err)
	}

	if loaded.Title == nil || *loaded.Title != "Test chat" {
		t.Errorf("title not preserved: %v", loaded.Title)
	}
	if loaded.Version != conversation.FormatVersion {
		t.Errorf("expected version %d, got %d", conversation.FormatVersion, loaded.Version)
	}
	if len(loaded.Systems) != 1 {
		t.Fatalf("expected 1 system prompt, got %d", len(loaded.Systems))
	}
	if loaded.Systems[0].Content != "You are a helpful assistant." {
		t.Errorf("system content not preserved: %q", loaded.Systems[0].Content)
	}
	if loaded.Systems[0].DBID == 0 {
		t.Error("loaded system prompt should carry its database id")
	}

	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(loaded.Messages))
	}

	first := loaded.Messages[0]
	if first.Request.Content != "Hello" || first.Response.Content != "Hi there!" {
		t.Errorf("block 0 content not preserved: %q / %q", first.Request.Content, first.Response.Content)
	}
	if first.SystemIndex == nil || *first.SystemIndex != 0 {
		t.Errorf("block 0 system index not preserved: %v", first.SystemIndex)
	}
	if first.Model.ProviderID != "openai" || first.Model.ModelID != "gpt-4o" {
		t.Errorf("block 0 model not preserved: %+v", first.Model)
	}
	if first.Temperature != 1.0 || first.MaxTokens != 4096 || first.TopP != 1.0 {
		t.Errorf("block 0 parameters not preserved: %+v", first)
	}

	second := loaded.Messages[1]
	if len(second.Response.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(second.Response.Citations))
	}
	cit := second.Response.Citations[0]
	if cit.CitedText == nil || *cit.CitedText != cited {
		t.Errorf("citation text not preserved: %v", cit.CitedText)
	}
	if cit.SourceURL == nil || *cit.SourceURL != sourceURL {
		t.Errorf("citation url not preserved: %v", cit.SourceURL)
	}
	if cit.StartIndex == nil || *cit.StartIndex != start {
		t.Errorf("citation start index not preserved: %v", cit.StartIndex)
	}
	if cit.SourceTitle != nil || cit.EndIndex != nil {
		t.Errorf("absent citation fields should stay nil: %+v", cit)
	}
}

func TestLoadConversationConsistentUnderConcurrentWrites(t *testing.T) {
	database := newTestDB(t)

	conv := sampleConversation()
	convID, err := database.SaveConversation(conv)
	if err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}

	// Append blocks, each with a fresh system prompt, while loads run. Every
	// loaded aggregate must resolve each block's system prompt; a load that
	// observes a half-applied append would come back with a dangling index.
	const writes = 20
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < writes; i++ {
			system := &conversation.SystemMessage{Content: fmt.Sprintf("writer prompt %d", i)}
			block := newBlock(fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
			sysIndex := 1 + i
			block.SystemIndex = &sysIndex
			if err := database.SaveMessageBlock(convID, 2+i, block, system); err != nil {
				t.Errorf("failed to save block %d: %v", i, err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		loaded, err := database.LoadConversation(convID)
		if err != nil {
			t.Fatalf("failed to load conversation: %v", err)
		}
		for _, block := range loaded.Messages {
			if block.SystemIndex == nil {
				t.Fatalf("block %d loaded without its system prompt", block.DBID)
			}
			if loaded.SystemAt(block) == nil {
				t.Fatalf("block %d has system index %d outside the loaded system set",
					block.DBID, *block.SystemIndex)
			}
		}
	}
	<-done

	loaded, err := database.LoadConversation(convID)
	if err != nil {
		t.Fatalf("failed to load conversation: %v", err)
	}
	if len(loaded.Messages) != 2+writes {
		t.Errorf("expected %d blocks, got %d", 2+writes, len(loaded.Messages))
	}
	if len(loaded.Systems) != 1+writes {
		t.Errorf("expected %d system prompts, got %d", 1+writes, len(loaded.Systems))
	}
}

func TestLoadConversationNotFound(t *testing.T) {
	database := newTestDB(t)

	_, err := database.LoadConversation(12345)
	if err == nil {
		t.Fatal("expected error for missing conversation")
	}
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestUpdateConversationTitle(t *testing.T) {
	database := newTestDB(t)

	convID, err := database.SaveConversation(sampleConversation())
	if err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}

	newTitle := "Renamed"
	if err := database.UpdateConversationTitle(convID, &newTitle); err != nil {
		t.Fatalf("failed to update title: %v", err)
	}
	loaded, err := database.LoadConversation(convID)
	if err != nil {
		t.Fatalf("failed to load conversation: %v", err)
	}
	if loaded.Title == nil || *loaded.Title != "Renamed" {
		t.Errorf("title not updated: %v", loaded.Title)
	}

	// nil clears the title
	if err := database.UpdateConversationTitle(convID, nil); err != nil {
		t.Fatalf("failed to clear title: %v", err)
	}
	loaded, err = database.LoadConversation(convID)
	if err != nil {
		t.Fatalf("failed to load conversation: %v", err)
	}
	if loaded.Title != nil {
		t.Errorf("title should be cleared, got %q", *loaded.Title)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	database := newTestDB(t)

	conv := sampleConversation()
	conv.Messages[0].Request.Attachments = []conversation.Attachment{
		memoryAttachment(t, "notes.txt", []byte("attachment payload")),
	}

	convID, err := database.SaveConversation(conv)
	if err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}

	if err := database.DeleteConversation(convID); err != nil {
		t.Fatalf("failed to delete conversation: %v", err)
	}

	if _, err := database.LoadConversation(convID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("conversation should be gone, got %v", err)
	}
	for _, table := range []string{"message_blocks", "messages", "message_attachments", "conversation_system_prompts"} {
		if n := countRows(t, database, table); n != 0 {
			t.Errorf("expected %s to be empty after delete, got %d rows", table, n)
		}
	}

	// Deduplicated rows survive deletion; cleanup is explicit
	if n := countRows(t, database, "attachments"); n != 1 {
		t.Errorf("attachments row should survive conversation delete, got %d", n)
	}
	if n := countRows(t, database, "system_prompts"); n != 1 {
		t.Errorf("system_prompts row should survive conversation delete, got %d", n)
	}
}
