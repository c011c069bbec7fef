package db

import (
	"testing"

	"basilisk-llm/conversation"
)

// saveTitled saves a one-block conversation with the given title and
// request content
func saveTitled(t *testing.T, database *DB, title, request string) int64 {
	t.Helper()
	conv := conversation.New()
	if title != "" {
		conv.Title = &title
	}
	conv.AddBlock(newBlock(request, "a reply"), nil)
	id, err := database.SaveConversation(conv)
	if err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}
	return id
}

func TestListConversations(t *testing.T) {
	database := newTestDB(t)

	saveTitled(t, database, "First chat", "hello world")
	secondID := saveTitled(t, database, "Second chat", "another topic")

	summaries, err := database.ListConversations("", 100, 0)
	if err != nil {
		t.Fatalf("failed to list conversations: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	// Most recently updated first
	if summaries[0].ID != secondID {
		t.Errorf("expected most recent conversation first, got id %d", summaries[0].ID)
	}
	if summaries[0].Title == nil || *summaries[0].Title != "Second chat" {
		t.Errorf("unexpected title: %v", summaries[0].Title)
	}
	for _, s := range summaries {
		if s.MessageCount != 1 {
			t.Errorf("conversation %d: expected 1 block, got %d", s.ID, s.MessageCount)
		}
	}
}

func TestListConversationsCountsUntitledAndEmpty(t *testing.T) {
	database := newTestDB(t)

	saveTitled(t, database, "", "untitled content")

	empty := conversation.New()
	if _, err := database.SaveConversation(empty); err != nil {
		t.Fatalf("failed to save empty conversation: %v", err)
	}

	summaries, err := database.ListConversations("", 100, 0)
	if err != nil {
		t.Fatalf("failed to list conversations: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	for _, s := range summaries {
		if s.ID == 1 && s.Title != nil {
			t.Errorf("untitled conversation should have nil title, got %q", *s.Title)
		}
		if s.ID == 2 && s.MessageCount != 0 {
			t.Errorf("empty conversation should count 0 blocks, got %d", s.MessageCount)
		}
	}
}

func TestListConversationsPagination(t *testing.T) {
	database := newTestDB(t)

	for i := 0; i < 5; i++ {
		saveTitled(t, database, "Chat", "content")
	}

	page, err := database.ListConversations("", 2, 2)
	if err != nil {
		t.Fatalf("failed to list conversations: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("expected page of 2, got %d", len(page))
	}

	tail, err := database.ListConversations("", 10, 4)
	if err != nil {
		t.Fatalf("failed to list conversations: %v", err)
	}
	if len(tail) != 1 {
		t.Errorf("expected 1 remaining conversation, got %d", len(tail))
	}
}

func TestSearchMatchesTitleAndContent(t *testing.T) {
	database := newTestDB(t)

	titleMatch := saveTitled(t, database, "Gopher talk", "nothing relevant")
	contentMatch := saveTitled(t, database, "Other", "all about Gopher internals")
	saveTitled(t, database, "Unrelated", "something else")

	summaries, err := database.ListConversations("Gopher", 100, 0)
	if err != nil {
		t.Fatalf("failed to search conversations: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(summaries))
	}
	found := map[int64]bool{}
	for _, s := range summaries {
		found[s.ID] = true
	}
	if !found[titleMatch] || !found[contentMatch] {
		t.Errorf("expected ids %d and %d, got %v", titleMatch, contentMatch, found)
	}

	count, err := database.CountConversations("Gopher")
	if err != nil {
		t.Fatalf("failed to count conversations: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}

func TestSearchIsCaseSensitive(t *testing.T) {
	database := newTestDB(t)

	saveTitled(t, database, "hello there", "lowercase greeting")

	summaries, err := database.ListConversations("Hello", 100, 0)
	if err != nil {
		t.Fatalf("failed to search conversations: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("search must be case-sensitive, got %d matches", len(summaries))
	}

	summaries, err = database.ListConversations("hello", 100, 0)
	if err != nil {
		t.Fatalf("failed to search conversations: %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("expected exact-case match, got %d", len(summaries))
	}
}

func TestCountConversations(t *testing.T) {
	database := newTestDB(t)

	count, err := database.CountConversations("")
	if err != nil {
		t.Fatalf("failed to count conversations: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0, got %d", count)
	}

	saveTitled(t, database, "One", "content")
	saveTitled(t, database, "Two", "content")

	count, err = database.CountConversations("")
	if err != nil {
		t.Fatalf("failed to count conversations: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2, got %d", count)
	}
}
