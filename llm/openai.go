package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEngine implements Engine for OpenAI and OpenAI-compatible APIs
// (mistralai, gemini, openrouter, ollama)
type OpenAIEngine struct {
	client *openai.Client
	config Config
}

// NewOpenAIEngine creates a new OpenAI-compatible engine
func NewOpenAIEngine(config Config) (*OpenAIEngine, error) {
	// Allow empty API key - validation happens at runtime
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	client := openai.NewClientWithConfig(clientConfig)

	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.ProviderName == "" {
		config.ProviderName = "OpenAI Compatible"
	}

	return &OpenAIEngine{
		client: client,
		config: config,
	}, nil
}

// StreamChat implements streaming chat
func (e *OpenAIEngine) StreamChat(ctx context.Context, messages []Message) (<-chan StreamResponse, error) {
	responseChan := make(chan StreamResponse)

	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		openaiMessages = append(openaiMessages, e.convertMessage(msg))
	}

	req := openai.ChatCompletionRequest{
		Model:       e.config.Model,
		Messages:    openaiMessages,
		MaxTokens:   e.config.MaxTokens,
		Temperature: float32(e.config.Temperature),
		Stream:      true,
	}

	go func() {
		defer close(responseChan)

		stream, err := e.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			responseChan <- StreamResponse{Error: fmt.Errorf("failed to create stream: %w", err)}
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				responseChan <- StreamResponse{Done: true}
				return
			}
			if err != nil {
				responseChan <- StreamResponse{Error: fmt.Errorf("stream error: %w", err)}
				return
			}

			if len(response.Choices) > 0 {
				content := response.Choices[0].Delta.Content
				if content != "" {
					responseChan <- StreamResponse{Content: content}
				}
			}
		}
	}()

	return responseChan, nil
}

// convertMessage converts a wire message to OpenAI format, handling image
// attachments as data or remote URLs
func (e *OpenAIEngine) convertMessage(msg Message) openai.ChatCompletionMessage {
	if len(msg.Attachments) == 0 {
		return openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	multiContent := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: msg.Content,
		},
	}

	for _, att := range msg.Attachments {
		if !att.IsImage {
			continue
		}
		url := att.URL
		if url == "" {
			b64 := base64.StdEncoding.EncodeToString(att.Data)
			url = fmt.Sprintf("data:%s;base64,%s", att.MimeType, b64)
		}
		multiContent = append(multiContent, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    url,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	return openai.ChatCompletionMessage{
		Role:         msg.Role,
		MultiContent: multiContent,
	}
}

// Chat implements non-streaming chat
func (e *OpenAIEngine) Chat(ctx context.Context, messages []Message) (string, error) {
	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		openaiMessages = append(openaiMessages, e.convertMessage(msg))
	}

	req := openai.ChatCompletionRequest{
		Model:       e.config.Model,
		Messages:    openaiMessages,
		MaxTokens:   e.config.MaxTokens,
		Temperature: float32(e.config.Temperature),
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from provider")
	}

	return resp.Choices[0].Message.Content, nil
}

// Name returns the engine's display name
func (e *OpenAIEngine) Name() string {
	return e.config.ProviderName
}

// Models returns supported models
func (e *OpenAIEngine) Models() []string {
	if len(e.config.Models) > 0 {
		return e.config.Models
	}
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
	}
}

// GenerateTitle generates a short title based on the conversation
func (e *OpenAIEngine) GenerateTitle(ctx context.Context, messages []Message) (string, error) {
	title, err := e.Chat(ctx, titleMessages(messages))
	if err != nil {
		return "", fmt.Errorf("failed to generate title: %w", err)
	}
	return cleanTitle(title), nil
}

// ValidateConfig validates the configuration
func (e *OpenAIEngine) ValidateConfig() error {
	if e.config.APIKey == "" {
		return errors.New("API key is required")
	}
	return nil
}
