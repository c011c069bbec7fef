// Package provider describes the LLM providers the application can talk to
// and the (provider, model) pair attached to every message block.
package provider

import "fmt"

// APIType identifies the wire protocol a provider speaks
type APIType string

const (
	APITypeOpenAI    APIType = "openai"
	APITypeAnthropic APIType = "anthropic"
	APITypeOllama    APIType = "ollama"
)

// Provider describes a known LLM provider
type Provider struct {
	ID               string
	Name             string
	BaseURL          string
	APIType          APIType
	RequireAPIKey    bool
	EnvVarNameAPIKey string
}

// AIModelInfo identifies the model used for a message block
type AIModelInfo struct {
	ProviderID string `json:"provider_id"`
	ModelID    string `json:"model_id"`
}

func (m AIModelInfo) String() string {
	return m.ProviderID + "/" + m.ModelID
}

var providers = []Provider{
	{
		ID:               "openai",
		Name:             "OpenAI",
		BaseURL:          "https://api.openai.com/v1",
		APIType:          APITypeOpenAI,
		RequireAPIKey:    true,
		EnvVarNameAPIKey: "OPENAI_API_KEY",
	},
	{
		ID:               "anthropic",
		Name:             "Anthropic",
		BaseURL:          "https://api.anthropic.com/v1",
		APIType:          APITypeAnthropic,
		RequireAPIKey:    true,
		EnvVarNameAPIKey: "ANTHROPIC_API_KEY",
	},
	{
		ID:               "mistralai",
		Name:             "MistralAI",
		BaseURL:          "https://api.mistral.ai/v1",
		APIType:          APITypeOpenAI,
		RequireAPIKey:    true,
		EnvVarNameAPIKey: "MISTRAL_API_KEY",
	},
	{
		ID:               "gemini",
		Name:             "Gemini",
		BaseURL:          "https://generativelanguage.googleapis.com/v1beta/openai",
		APIType:          APITypeOpenAI,
		RequireAPIKey:    true,
		EnvVarNameAPIKey: "GEMINI_API_KEY",
	},
	{
		ID:            "ollama",
		Name:          "Ollama",
		BaseURL:       "http://localhost:11434/v1",
		APIType:       APITypeOllama,
		RequireAPIKey: false,
	},
	{
		ID:               "openrouter",
		Name:             "OpenRouter",
		BaseURL:          "https://openrouter.ai/api/v1",
		APIType:          APITypeOpenAI,
		RequireAPIKey:    true,
		EnvVarNameAPIKey: "OPENROUTER_API_KEY",
	},
}

// Providers returns all known providers
func Providers() []Provider {
	out := make([]Provider, len(providers))
	copy(out, providers)
	return out
}

// Get returns the provider with the given ID
func Get(id string) (Provider, error) {
	for _, p := range providers {
		if p.ID == id {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("unknown provider: %s", id)
}
