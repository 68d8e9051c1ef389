package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-pantry-assistant/internal/llm"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("PANTRY_MODEL_PROVIDER", "")
	t.Setenv("PANTRY_MODEL", "")
	t.Setenv("PANTRY_DB_PATH", "")
	t.Setenv("OPENAI_API_KEY", "")

	path := writeConfig(t, `
model:
  provider: openai
  name: gpt-4.1-mini
  api_key: sk-file
  timeout: 30s
server:
  port: 9000
defaults:
  group_id: kitchen
  location: pantry
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4.1-mini", cfg.Model.Name)
	assert.Equal(t, 30*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 1024, cfg.Model.MaxTokens)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "kitchen", cfg.OrchestratorDefaults().GroupID)
	assert.Equal(t, "pantry", cfg.OrchestratorDefaults().Location)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "model:\n  provider: anthropic\n")
	t.Setenv("PANTRY_MODEL_PROVIDER", "gateway")
	t.Setenv("PANTRY_MODEL", "openai/gpt-4o")
	t.Setenv("PANTRY_DB_PATH", "/tmp/test.db")
	t.Setenv("MCP_PROXY_URL", "http://proxy:9876")
	t.Setenv("MCP_PROXY_API_KEY", "proxy-key")
	t.Setenv("ANTHROPIC_API_KEY", "should-not-apply")

	cfg, err := Load(path)
	require.NoError(t, err)

	llmCfg := cfg.LLM()
	assert.Equal(t, "gateway", llmCfg.Provider)
	assert.Equal(t, "openai/gpt-4o", llmCfg.Model)
	assert.Equal(t, "http://proxy:9876", llmCfg.BaseURL)
	assert.Equal(t, "proxy-key", llmCfg.APIKey)
	assert.Equal(t, "/tmp/test.db", cfg.Storage.DBPath)
}

func TestLoadEnvProviderSwitchDropsFileKey(t *testing.T) {
	path := writeConfig(t, `
model:
  provider: anthropic
  api_key: sk-ant-file
  base_url: https://anthropic.internal/
`)
	t.Setenv("PANTRY_MODEL_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-openai-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM().Provider)
	assert.Equal(t, "sk-openai-env", cfg.LLM().APIKey)
	assert.Empty(t, cfg.LLM().BaseURL)

	// Without an env key the switched provider has none.
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Model.APIKey)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestLoadEnvKeyBeatsFileKey(t *testing.T) {
	path := writeConfig(t, "model:\n  provider: anthropic\n  api_key: sk-ant-file\n")
	t.Setenv("PANTRY_MODEL_PROVIDER", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-env", cfg.Model.APIKey)

	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-file", cfg.Model.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8011, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "model: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"anthropic without key", func(c *Config) { c.Model.Provider = "anthropic" }, ErrMissingAPIKey},
		{"gemini without key", func(c *Config) { c.Model.Provider = "gemini" }, ErrMissingAPIKey},
		{"unknown provider", func(c *Config) { c.Model.Provider = "mystery" }, llm.ErrUnknownProvider},
		{"ollama needs no key", func(c *Config) { c.Model.Provider = "ollama" }, nil},
		{"keyed openai", func(c *Config) { c.Model.Provider = "openai"; c.Model.APIKey = "sk" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	cfg := DefaultConfig()
	cfg.Model.Provider = "ollama"
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}
