package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	config := &Config{
		LLMProviders: map[string]ProviderConfig{
			"openai": {
				DisplayName:  "OpenAI",
				APIKey:       "sk-test",
				BaseURL:      "https://api.openai.com/v1",
				DefaultModel: "gpt-4o",
				Enabled:      true,
			},
		},
		Data: DataConfig{
			DBPath:     filepath.Join(dir, "data", "conversations.db"),
			MaxHistory: 500,
		},
	}

	if err := SaveConfig(path, config); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	openai, ok := loaded.LLMProviders["openai"]
	if !ok {
		t.Fatal("openai provider missing after round trip")
	}
	if openai.APIKey != "sk-test" || !openai.Enabled {
		t.Errorf("provider config not preserved: %+v", openai)
	}
	if loaded.Data.MaxHistory != 500 {
		t.Errorf("expected max history 500, got %d", loaded.Data.MaxHistory)
	}
	if loaded.Data.DBPath != config.Data.DBPath {
		t.Errorf("db path not preserved: %q", loaded.Data.DBPath)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("loading a missing config should fail")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yml")
	if err := os.WriteFile(path, []byte("llm_providers: [not a map"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("invalid YAML should fail")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	expanded := expandPath("~/data/chat.db")
	if expanded != filepath.Join(home, "data", "chat.db") {
		t.Errorf("unexpected expansion: %q", expanded)
	}

	if expandPath("") != "" {
		t.Error("empty path should stay empty")
	}
}
