// Package conversation holds the in-memory conversation aggregate: ordered
// message blocks, their request/response messages, attachments and the
// deduplicated set of system prompts a conversation has used.
package conversation

import (
	"time"

	"basilisk-llm/provider"
)

// FormatVersion is the current conversation format version, stamped on
// conversations when they are loaded from storage or from a file
const FormatVersion = 2

// MessageRole identifies the author of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Citation is a source reference attached to an assistant message. All
// fields are optional; absent fields stay nil and are stored as NULL.
type Citation struct {
	CitedText   *string `json:"cited_text,omitempty"`
	SourceTitle *string `json:"source_title,omitempty"`
	SourceURL   *string `json:"source_url,omitempty"`
	StartIndex  *int    `json:"start_index,omitempty"`
	EndIndex    *int    `json:"end_index,omitempty"`
}

// Message is a single user or assistant message
type Message struct {
	Role        MessageRole  `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"-"`
	Citations   []*Citation  `json:"citations,omitempty"`
}

// SystemMessage is a system prompt used by one or more blocks of a
// conversation
type SystemMessage struct {
	Content string `json:"content"`

	// DBID is the system_prompts row id once persisted, 0 before
	DBID int64 `json:"-"`
}

// MessageBlock is one request/response exchange together with the model
// and sampling parameters used for it
type MessageBlock struct {
	Request  *Message `json:"request"`
	Response *Message `json:"response,omitempty"`

	// SystemIndex points into the conversation's Systems slice, nil when
	// the block used no system prompt
	SystemIndex *int `json:"system_index,omitempty"`

	Model       provider.AIModelInfo `json:"model"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	TopP        float64              `json:"top_p"`
	Stream      bool                 `json:"stream"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// DBID is the message_blocks row id once persisted, 0 before
	DBID int64 `json:"-"`
}

// NewMessageBlock creates a block with the default sampling parameters
func NewMessageBlock(request *Message, model provider.AIModelInfo) *MessageBlock {
	now := time.Now().UTC()
	return &MessageBlock{
		Request:     request,
		Model:       model,
		Temperature: 1.0,
		MaxTokens:   4096,
		TopP:        1.0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Conversation is an ordered sequence of message blocks plus the system
// prompts they reference
type Conversation struct {
	Title    *string          `json:"title,omitempty"`
	Systems  []*SystemMessage `json:"systems,omitempty"`
	Messages []*MessageBlock  `json:"messages"`
	Version  int              `json:"version"`

	// DBID is the conversations row id once persisted, 0 before
	DBID int64 `json:"-"`
}

// New creates an empty conversation at the current format version
func New() *Conversation {
	return &Conversation{Version: FormatVersion}
}

// AddBlock appends a block to the conversation. When system is non-nil the
// conversation's system set is extended if needed and the block's
// SystemIndex is pointed at the matching entry. Identical prompt content is
// never stored twice.
func (c *Conversation) AddBlock(block *MessageBlock, system *SystemMessage) {
	if system != nil {
		idx := -1
		for i, s := range c.Systems {
			if s.Content == system.Content {
				idx = i
				break
			}
		}
		if idx < 0 {
			c.Systems = append(c.Systems, system)
			idx = len(c.Systems) - 1
		}
		block.SystemIndex = &idx
	}
	c.Messages = append(c.Messages, block)
}

// SystemAt returns the system prompt a block references, nil when the block
// has none or the index is out of range
func (c *Conversation) SystemAt(block *MessageBlock) *SystemMessage {
	if block.SystemIndex == nil {
		return nil
	}
	i := *block.SystemIndex
	if i < 0 || i >= len(c.Systems) {
		return nil
	}
	return c.Systems[i]
}
