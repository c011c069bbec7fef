package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	LLMProviders map[string]ProviderConfig `yaml:"llm_providers"`
	Data         DataConfig                `yaml:"data"`
	Proxy        ProxyConfig               `yaml:"proxy"`
}

// ProviderConfig represents LLM provider configuration
type ProviderConfig struct {
	DisplayName  string   `yaml:"display_name,omitempty"`
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	DefaultModel string   `yaml:"default_model"`
	Models       []string `yaml:"models,omitempty"`
	Enabled      bool     `yaml:"enabled"`
	MaxTokens    int      `yaml:"max_tokens,omitempty"`
	Temperature  float64  `yaml:"temperature,omitempty"`
}

// DataConfig represents data storage configuration
type DataConfig struct {
	DBPath     string `yaml:"db_path"`
	MaxHistory int    `yaml:"max_history"`
}

// ProxyConfig represents proxy configuration
type ProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Expand paths
	if config.Data.DBPath != "" {
		config.Data.DBPath = expandPath(config.Data.DBPath)
	}

	return &config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(configPath string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ and relative paths
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	// Expand ~
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	// Make absolute
	absPath, err := filepath.Abs(path)
	if err == nil {
		return absPath
	}

	return path
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	// Try to get user config directory
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to current directory
		return "./config/config.yml"
	}

	return filepath.Join(configDir, "basilisk-llm", "config.yml")
}

// EnsureDefaultConfig creates a default config file if it doesn't exist
func EnsureDefaultConfig() (string, error) {
	configPath := GetConfigPath()

	// Check if config exists
	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	}

	// Create default config
	defaultConfig := &Config{
		LLMProviders: map[string]ProviderConfig{
			"openai": {
				DisplayName:  "OpenAI",
				APIKey:       "",
				BaseURL:      "https://api.openai.com/v1",
				DefaultModel: "gpt-4o",
				Models: []string{
					"gpt-4o",
					"gpt-4o-mini",
					"gpt-4-turbo",
				},
				Enabled: true,
			},
			"anthropic": {
				DisplayName:  "Anthropic",
				APIKey:       "",
				BaseURL:      "https://api.anthropic.com/v1",
				DefaultModel: "claude-3-5-sonnet-20241022",
				Models: []string{
					"claude-3-5-sonnet-20241022",
					"claude-3-5-haiku-20241022",
					"claude-3-opus-20240229",
				},
				MaxTokens:   4096,
				Temperature: 0.7,
				Enabled:     false,
			},
			"mistralai": {
				DisplayName:  "MistralAI",
				APIKey:       "",
				BaseURL:      "https://api.mistral.ai/v1",
				DefaultModel: "mistral-large-latest",
				Models: []string{
					"mistral-large-latest",
					"mistral-small-latest",
					"codestral-latest",
				},
				Enabled: false,
			},
			"gemini": {
				DisplayName:  "Gemini",
				APIKey:       "",
				BaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai",
				DefaultModel: "gemini-1.5-flash",
				Models: []string{
					"gemini-1.5-flash",
					"gemini-1.5-pro",
					"gemini-2.0-flash-exp",
				},
				MaxTokens:   8192,
				Temperature: 0.7,
				Enabled:     false,
			},
			"ollama": {
				DisplayName:  "Ollama",
				BaseURL:      "http://localhost:11434/v1",
				DefaultModel: "llama3",
				Models: []string{
					"llama3",
					"mistral",
					"codellama",
				},
				Enabled: false,
			},
			"openrouter": {
				DisplayName:  "OpenRouter",
				APIKey:       "",
				BaseURL:      "https://openrouter.ai/api/v1",
				DefaultModel: "openai/gpt-4o",
				Enabled:      false,
			},
		},
		Data: DataConfig{
			DBPath:     "./data/conversations.db",
			MaxHistory: 1000,
		},
		Proxy: ProxyConfig{
			Enabled: false,
			URL:     "",
		},
	}

	if err := SaveConfig(configPath, defaultConfig); err != nil {
		return "", err
	}

	return configPath, nil
}
