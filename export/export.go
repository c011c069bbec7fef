// Package export renders conversations to JSON or Markdown files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"basilisk-llm/conversation"
)

// Format represents the export format
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

type conversationExport struct {
	Title    *string                       `json:"title,omitempty"`
	Version  int                           `json:"version"`
	Systems  []*conversation.SystemMessage `json:"systems,omitempty"`
	Messages []blockExport                 `json:"messages"`
	Metadata map[string]string             `json:"metadata,omitempty"`
}

type blockExport struct {
	Request     *messageExport `json:"request"`
	Response    *messageExport `json:"response,omitempty"`
	System      *string        `json:"system,omitempty"`
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
	TopP        float64        `json:"top_p"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type messageExport struct {
	Role        string                   `json:"role"`
	Content     string                   `json:"content"`
	Attachments []string                 `json:"attachments,omitempty"`
	Citations   []*conversation.Citation `json:"citations,omitempty"`
}

// ToJSON writes a conversation to a JSON file
func ToJSON(conv *conversation.Conversation, path string) error {
	out := conversationExport{
		Title:   conv.Title,
		Version: conv.Version,
		Systems: conv.Systems,
		Metadata: map[string]string{
			"export_version": "1.0",
			"export_date":    time.Now().Format(time.RFC3339),
			"app_name":       "basilisk-llm",
		},
	}

	for _, block := range conv.Messages {
		be := blockExport{
			Request:     exportMessage(block.Request),
			Response:    exportMessage(block.Response),
			Provider:    block.Model.ProviderID,
			Model:       block.Model.ModelID,
			Temperature: block.Temperature,
			MaxTokens:   block.MaxTokens,
			TopP:        block.TopP,
			CreatedAt:   block.CreatedAt,
			UpdatedAt:   block.UpdatedAt,
		}
		if sys := conv.SystemAt(block); sys != nil {
			be.System = &sys.Content
		}
		out.Messages = append(out.Messages, be)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func exportMessage(msg *conversation.Message) *messageExport {
	if msg == nil {
		return nil
	}
	out := &messageExport{
		Role:      string(msg.Role),
		Content:   msg.Content,
		Citations: msg.Citations,
	}
	for _, att := range msg.Attachments {
		out.Attachments = append(out.Attachments, att.Info().Name)
	}
	return out
}

// ToMarkdown writes a conversation to a Markdown file
func ToMarkdown(conv *conversation.Conversation, path string) error {
	var sb strings.Builder

	title := "Untitled conversation"
	if conv.Title != nil && *conv.Title != "" {
		title = *conv.Title
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString("---\n\n")

	for i, block := range conv.Messages {
		if sys := conv.SystemAt(block); sys != nil && i == 0 {
			sb.WriteString("## System\n\n")
			sb.WriteString(sys.Content)
			sb.WriteString("\n\n")
		}

		if block.Request != nil {
			sb.WriteString("## User\n\n")
			writeMessageMarkdown(&sb, block.Request)
		}
		if block.Response != nil {
			sb.WriteString("## Assistant\n\n")
			sb.WriteString(fmt.Sprintf("*%s - %s*\n\n", block.Model.ProviderID, block.Model.ModelID))
			writeMessageMarkdown(&sb, block.Response)
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported %s by basilisk-llm*\n", time.Now().Format("2006-01-02 15:04:05")))

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func writeMessageMarkdown(sb *strings.Builder, msg *conversation.Message) {
	sb.WriteString(msg.Content)
	sb.WriteString("\n\n")
	for _, att := range msg.Attachments {
		info := att.Info()
		sb.WriteString(fmt.Sprintf("> Attachment: %s (%s)\n", info.Name, info.MimeType))
	}
	if len(msg.Attachments) > 0 {
		sb.WriteString("\n")
	}
	for _, cit := range msg.Citations {
		if cit.SourceTitle != nil || cit.SourceURL != nil {
			titlePart := ""
			if cit.SourceTitle != nil {
				titlePart = *cit.SourceTitle
			}
			urlPart := ""
			if cit.SourceURL != nil {
				urlPart = " <" + *cit.SourceURL + ">"
			}
			sb.WriteString(fmt.Sprintf("> Source: %s%s\n", titlePart, urlPart))
		}
	}
	if len(msg.Citations) > 0 {
		sb.WriteString("\n")
	}
}

// Filename generates a safe export filename from a conversation title
func Filename(title string, format Format) string {
	sanitized := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|' {
			return '_'
		}
		return r
	}, title)

	if sanitized == "" {
		sanitized = "conversation"
	}
	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
	}

	timestamp := time.Now().Format("20060102_150405")
	ext := string(format)
	if format == FormatMarkdown {
		ext = "md"
	}
	return fmt.Sprintf("%s_%s.%s", sanitized, timestamp, ext)
}

// DefaultPath returns the default export directory, creating it if needed
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	exportDir := filepath.Join(homeDir, "Documents", "basilisk-exports")
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return "", err
	}
	return exportDir, nil
}
