// Package config resolves azchat settings from, in rising precedence,
// built-in defaults, ~/.azchat/config.toml, and environment variables.
// Command-line flags are applied on top by the cmd layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	dirName  = ".azchat"
	fileName = "config.toml"

	defaultModel        = "gpt-35-turbo"
	defaultAPIVersion   = "2025-01-01-preview"
	defaultSystemPrompt = "You are a helpful assistant."

	envEndpoint   = "OPENAI_API_ENDPOINT"
	envAPIKey     = "OPENAI_API_KEY"
	envModel      = "OPENAI_API_MODEL"
	envAPIVersion = "OPENAI_API_VERSION"
)

// Config holds the resolved settings for one run.
type Config struct {
	Endpoint     string `toml:"endpoint"`
	APIKey       string `toml:"api_key"`
	Model        string `toml:"model"`
	APIVersion   string `toml:"api_version"`
	SystemPrompt string `toml:"system_prompt"`
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

func configPath() string {
	return filepath.Join(Dir(), fileName)
}

// Load resolves the configuration from defaults, the config file and the
// environment. It never fails on a missing or unreadable file; required
// fields are checked separately by Validate.
func Load() (*Config, error) {
	cfg := &Config{
		Model:        defaultModel,
		APIVersion:   defaultAPIVersion,
		SystemPrompt: defaultSystemPrompt,
	}

	if _, err := toml.DecodeFile(configPath(), cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", configPath(), err)
	}

	if v := os.Getenv(envEndpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(envAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(envModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(envAPIVersion); v != "" {
		cfg.APIVersion = v
	}

	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}

	return cfg, nil
}

// ValidationError reports required settings that are still unset after
// flags, environment and config file have all been applied. It is fatal
// at startup, before any network call.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// Validate checks that every field needed to reach the API is set.
func (c *Config) Validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint (--endpoint or "+envEndpoint+")")
	}
	if c.APIKey == "" {
		missing = append(missing, "API key (--api-key or "+envAPIKey+")")
	}
	if c.Model == "" {
		missing = append(missing, "model (--model or "+envModel+")")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// loadFile reads only the config file, without environment overrides.
// Used by the Set* helpers so they don't bake env values into the file.
func loadFile() *Config {
	cfg := &Config{}
	_, _ = toml.DecodeFile(configPath(), cfg)
	return cfg
}

// save persists the config file with owner-only permissions — it may
// hold the API key.
func save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(configPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// SetAPIKey saves the API key to the config file.
func SetAPIKey(key string) error {
	cfg := loadFile()
	cfg.APIKey = key
	return save(cfg)
}

// SetEndpoint saves the endpoint URL to the config file.
func SetEndpoint(endpoint string) error {
	cfg := loadFile()
	cfg.Endpoint = endpoint
	return save(cfg)
}

// SetModel saves the deployment/model name to the config file.
func SetModel(model string) error {
	cfg := loadFile()
	cfg.Model = model
	return save(cfg)
}
