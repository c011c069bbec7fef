package db

import "time"

// Row structs mirror the schema tables column for column. Nullable columns
// use sql.Null* or pointer scanning at the call sites.

// ConversationRow represents a conversations row
type ConversationRow struct {
	ID        int64
	Title     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SystemPromptRow represents a system_prompts row
type SystemPromptRow struct {
	ID          int64
	Content     string
	ContentHash string
}

// MessageBlockRow represents a message_blocks row
type MessageBlockRow struct {
	ID                         int64
	ConversationID             int64
	ConversationSystemPromptID *int64
	Position                   int
	ModelProvider              string
	ModelID                    string
	Temperature                float64
	MaxTokens                  int
	TopP                       float64
	Stream                     bool
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// MessageRow represents a messages row
type MessageRow struct {
	ID             int64
	MessageBlockID int64
	Role           string
	Content        string
}

// AttachmentRow represents an attachments row
type AttachmentRow struct {
	ID           int64
	ContentHash  string
	Name         *string
	MimeType     *string
	Size         *int64
	LocationType string
	URL          *string
	BlobData     []byte
	IsImage      bool
	ImageWidth   *int
	ImageHeight  *int
}

// ConversationSummary is one entry of the conversation list: identity,
// title, block count and recency
type ConversationSummary struct {
	ID           int64
	Title        *string
	MessageCount int
	UpdatedAt    time.Time
}
