// Package llm contains the chat engines used to talk to LLM providers and
// the conversion from stored conversations to provider wire messages.
package llm

import (
	"context"
	"fmt"
	"strings"

	"basilisk-llm/conversation"
	"basilisk-llm/provider"
)

// Message is a provider-bound chat message
type Message struct {
	Role        string       `json:"role"` // "user", "assistant" or "system"
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is the wire form of a message attachment. Either Data or URL
// is set.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
	IsImage  bool   `json:"is_image"`
}

// StreamResponse represents a chunk of streaming response
type StreamResponse struct {
	Content string
	Done    bool
	Error   error
}

// Engine is the common interface for all provider backends
type Engine interface {
	// StreamChat sends messages and returns a channel for streaming responses
	StreamChat(ctx context.Context, messages []Message) (<-chan StreamResponse, error)

	// Chat sends messages and returns the complete response (non-streaming)
	Chat(ctx context.Context, messages []Message) (string, error)

	// GenerateTitle generates a short title based on the conversation messages
	GenerateTitle(ctx context.Context, messages []Message) (string, error)

	// Name returns the engine's display name
	Name() string

	// Models returns the list of supported models
	Models() []string

	// ValidateConfig validates the engine configuration
	ValidateConfig() error
}

// Config represents engine configuration
type Config struct {
	ProviderName string
	APIKey       string
	BaseURL      string
	Model        string
	Models       []string
	Timeout      int // seconds
	MaxTokens    int
	Temperature  float64
}

// NewEngine creates the engine for a provider. OpenAI-compatible providers
// (openai, mistralai, gemini, openrouter, ollama) share one engine; only the
// base URL differs.
func NewEngine(p provider.Provider, config Config) (Engine, error) {
	if config.BaseURL == "" {
		config.BaseURL = p.BaseURL
	}
	if config.ProviderName == "" {
		config.ProviderName = p.Name
	}
	switch p.APIType {
	case provider.APITypeAnthropic:
		return NewAnthropicEngine(config)
	case provider.APITypeOpenAI, provider.APITypeOllama:
		return NewOpenAIEngine(config)
	default:
		return nil, fmt.Errorf("no engine for API type %q", p.APIType)
	}
}

// FromConversation converts a conversation into wire messages: the last
// block's system prompt first, then every block's request and response in
// order. Attachments that cannot be read are dropped from the wire form.
func FromConversation(conv *conversation.Conversation) []Message {
	var messages []Message

	if n := len(conv.Messages); n > 0 {
		if sys := conv.SystemAt(conv.Messages[n-1]); sys != nil {
			messages = append(messages, Message{Role: "system", Content: sys.Content})
		}
	}

	for _, block := range conv.Messages {
		if block.Request != nil {
			messages = append(messages, fromMessage(block.Request))
		}
		if block.Response != nil {
			messages = append(messages, fromMessage(block.Response))
		}
	}
	return messages
}

func fromMessage(msg *conversation.Message) Message {
	out := Message{
		Role:    string(msg.Role),
		Content: msg.Content,
	}
	for _, att := range msg.Attachments {
		if wire, ok := fromAttachment(att); ok {
			out.Attachments = append(out.Attachments, wire)
		}
	}
	return out
}

func fromAttachment(att conversation.Attachment) (Attachment, bool) {
	info := att.Info()
	_, isImage := att.(*conversation.ImageFile)
	wire := Attachment{
		Name:     info.Name,
		MimeType: info.MimeType,
		IsImage:  isImage,
	}
	if info.Type == conversation.AttachmentTypeURL {
		wire.URL = info.Location
		return wire, true
	}
	data, err := info.ReadBytes()
	if err != nil {
		return Attachment{}, false
	}
	wire.Data = data
	return wire, true
}

// titleMessages builds the prompt used to generate a conversation title
func titleMessages(messages []Message) []Message {
	prompt := []Message{
		{
			Role:    "system",
			Content: "You are a helpful assistant that generates short, concise titles for conversations. Generate a title in the same language as the conversation. The title should be 3-8 words, descriptive, and capture the main topic. Only output the title, nothing else.",
		},
	}

	maxMessages := 4
	for i, msg := range messages {
		if i >= maxMessages {
			break
		}
		prompt = append(prompt, msg)
	}

	return append(prompt, Message{
		Role:    "user",
		Content: "Based on the above conversation, generate a short title (3-8 words):",
	})
}

// cleanTitle cleans up a generated title by removing quotes and extra whitespace
func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Trim(title, "\"'")
	title = strings.TrimSpace(title)

	if len(title) > 100 {
		title = title[:100] + "..."
	}
	if title == "" {
		title = "New Chat"
	}
	return title
}
