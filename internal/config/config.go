// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mcp-pantry-assistant/internal/llm"
	"mcp-pantry-assistant/internal/models"
)

// ErrMissingAPIKey is returned by Validate when the selected provider needs a key.
var ErrMissingAPIKey = errors.New("missing API key for model provider")

type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

type ModelConfig struct {
	Provider  string        `yaml:"provider"`
	Name      string        `yaml:"name"`
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File enables a rotating log file next to stderr output.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultsConfig seeds the group and location of generated commands.
type DefaultsConfig struct {
	GroupID   string `yaml:"group_id"`
	GroupName string `yaml:"group_name"`
	Location  string `yaml:"location"`
}

func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:  "anthropic",
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8011,
		},
		Storage: StorageConfig{
			DBPath: "/data/pantry.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load applies defaults, then the YAML file at path (or the default location
// when path is empty), then environment variables. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	loadFromEnv(cfg, os.Getenv)
	return cfg, nil
}

// DefaultPath returns ~/.config/pantry-assistant/config.yaml, honoring
// XDG_CONFIG_HOME.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pantry-assistant", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pantry-assistant", "config.yaml")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config, getenv func(string) string) {
	fileProvider := cfg.provider()
	if v := getenv("PANTRY_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := getenv("PANTRY_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := getenv("PANTRY_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}

	// A key or endpoint from the file belongs to the file's provider.
	if cfg.provider() != fileProvider {
		cfg.Model.APIKey = ""
		cfg.Model.BaseURL = ""
	}

	// Provider keys only apply to their own provider and beat the file.
	switch cfg.provider() {
	case "anthropic":
		setIfSet(&cfg.Model.APIKey, getenv("ANTHROPIC_API_KEY"))
	case "openai":
		setIfSet(&cfg.Model.APIKey, getenv("OPENAI_API_KEY"))
	case "gemini", "google":
		setIfSet(&cfg.Model.APIKey, getenv("GEMINI_API_KEY"))
	case "ollama":
		setIfSet(&cfg.Model.BaseURL, getenv("OLLAMA_HOST"))
	case "gateway", "openrouter":
		setIfSet(&cfg.Model.BaseURL, getenv("MCP_PROXY_URL"))
		setIfSet(&cfg.Model.APIKey, getenv("MCP_PROXY_API_KEY"))
	}
}

func setIfSet(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func (c *Config) provider() string {
	return strings.ToLower(strings.TrimSpace(c.Model.Provider))
}

// Validate checks the provider and that hosted providers have a key.
func (c *Config) Validate() error {
	switch c.provider() {
	case "anthropic", "openai", "gemini", "google":
		if strings.TrimSpace(c.Model.APIKey) == "" {
			return fmt.Errorf("%w: %s", ErrMissingAPIKey, c.provider())
		}
	case "ollama", "gateway", "openrouter":
	default:
		return fmt.Errorf("%w: %q", llm.ErrUnknownProvider, c.Model.Provider)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Storage.DBPath) == "" {
		return errors.New("storage db_path is required")
	}
	return nil
}

// LLM converts the model section for llm.NewFromConfig.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		Provider:  c.Model.Provider,
		Model:     c.Model.Name,
		APIKey:    c.Model.APIKey,
		BaseURL:   c.Model.BaseURL,
		MaxTokens: c.Model.MaxTokens,
		Timeout:   c.Model.Timeout,
	}
}

func (c *Config) OrchestratorDefaults() models.Defaults {
	return models.Defaults{
		GroupID:   c.Defaults.GroupID,
		GroupName: c.Defaults.GroupName,
		Location:  c.Defaults.Location,
	}
}
