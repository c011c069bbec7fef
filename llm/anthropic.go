package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// AnthropicEngine implements Engine for the Anthropic messages API
type AnthropicEngine struct {
	apiKey  string
	baseURL string
	config  Config
	client  *http.Client
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []anthropicContentBlock
}

type anthropicContentBlock struct {
	Type   string                `json:"type"` // "text" or "image"
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
	System      string             `json:"system,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index,omitempty"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
}

// NewAnthropicEngine creates a new Anthropic engine
func NewAnthropicEngine(config Config) (*AnthropicEngine, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}

	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}
	if config.ProviderName == "" {
		config.ProviderName = "Anthropic"
	}

	return &AnthropicEngine{
		apiKey:  config.APIKey,
		baseURL: baseURL,
		config:  config,
		client:  &http.Client{},
	}, nil
}

// StreamChat implements streaming chat
func (e *AnthropicEngine) StreamChat(ctx context.Context, messages []Message) (<-chan StreamResponse, error) {
	responseChan := make(chan StreamResponse)

	anthropicMessages, systemPrompt := e.convertMessages(messages)

	req := anthropicRequest{
		Model:       e.config.Model,
		Messages:    anthropicMessages,
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
		Stream:      true,
		System:      systemPrompt,
	}

	go func() {
		defer close(responseChan)

		if err := e.streamRequest(ctx, req, responseChan); err != nil {
			responseChan <- StreamResponse{Error: err}
		}
	}()

	return responseChan, nil
}

// Chat implements non-streaming chat
func (e *AnthropicEngine) Chat(ctx context.Context, messages []Message) (string, error) {
	anthropicMessages, systemPrompt := e.convertMessages(messages)

	req := anthropicRequest{
		Model:       e.config.Model,
		Messages:    anthropicMessages,
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
		Stream:      false,
		System:      systemPrompt,
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	e.setHeaders(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(anthropicResp.Content) == 0 {
		return "", errors.New("no content in response")
	}

	return anthropicResp.Content[0].Text, nil
}

// Name returns the engine's display name
func (e *AnthropicEngine) Name() string {
	return e.config.ProviderName
}

// Models returns supported models
func (e *AnthropicEngine) Models() []string {
	if len(e.config.Models) > 0 {
		return e.config.Models
	}
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
	}
}

// GenerateTitle generates a short title based on the conversation
func (e *AnthropicEngine) GenerateTitle(ctx context.Context, messages []Message) (string, error) {
	title, err := e.Chat(ctx, titleMessages(messages))
	if err != nil {
		return "", fmt.Errorf("failed to generate title: %w", err)
	}
	return cleanTitle(title), nil
}

// ValidateConfig validates the configuration
func (e *AnthropicEngine) ValidateConfig() error {
	if e.apiKey == "" {
		return errors.New("API key is required")
	}
	return nil
}

// convertMessages converts wire messages to Anthropic's format. System
// messages are pulled out into the top-level system field.
func (e *AnthropicEngine) convertMessages(messages []Message) ([]anthropicMessage, string) {
	var out []anthropicMessage
	var systemPrompt string

	for _, msg := range messages {
		if msg.Role == "system" {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		}
	}

	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		if len(msg.Attachments) == 0 {
			out = append(out, anthropicMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
			continue
		}

		contentBlocks := []anthropicContentBlock{
			{
				Type: "text",
				Text: msg.Content,
			},
		}
		for _, att := range msg.Attachments {
			if !att.IsImage {
				continue
			}
			source := &anthropicImageSource{}
			if att.URL != "" {
				source.Type = "url"
				source.URL = att.URL
			} else {
				source.Type = "base64"
				source.MediaType = att.MimeType
				source.Data = base64.StdEncoding.EncodeToString(att.Data)
			}
			contentBlocks = append(contentBlocks, anthropicContentBlock{
				Type:   "image",
				Source: source,
			})
		}

		out = append(out, anthropicMessage{
			Role:    msg.Role,
			Content: contentBlocks,
		})
	}

	return out, systemPrompt
}

// setHeaders sets the required headers for Anthropic API requests
func (e *AnthropicEngine) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
}

// streamRequest handles the streaming SSE request
func (e *AnthropicEngine) streamRequest(ctx context.Context, req anthropicRequest, responseChan chan<- StreamResponse) error {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	e.setHeaders(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			responseChan <- StreamResponse{Done: true}
			return nil
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Skip malformed events
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				responseChan <- StreamResponse{Content: event.Delta.Text}
			}
		case "message_stop":
			responseChan <- StreamResponse{Done: true}
			return nil
		case "error":
			return fmt.Errorf("stream error: %s", data)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read error: %w", err)
	}

	responseChan <- StreamResponse{Done: true}
	return nil
}
