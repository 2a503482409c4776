// Package config handles bioclassd configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Default server bind settings. Used when neither the config file nor
// the HOST/PORT environment variables say otherwise.
const (
	DefaultAddress = "0.0.0.0"
	DefaultPort    = 8000
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./bioclass.yaml, ~/.config/bioclass/bioclass.yaml, /etc/bioclass/bioclass.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"bioclass.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "bioclass", "bioclass.yaml"))
	}

	paths = append(paths, "/etc/bioclass/bioclass.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// An empty path with a nil error means no config file was found; the caller
// is expected to fall back to Default(). The service must come up without a
// config file — everything it needs can arrive via environment variables.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

// Config holds all bioclassd configuration.
type Config struct {
	Listen    ListenConfig `yaml:"listen"`
	OpenAI    OpenAIConfig `yaml:"openai"`
	DataDir   string       `yaml:"data_dir"`
	LogLevel  string       `yaml:"log_level"`
	LogFormat string       `yaml:"log_format"` // "text" (default) or "json"
}

// ListenConfig defines the HTTP server bind settings.
type ListenConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// OpenAIConfig defines the OpenAI chat-completions settings used by the
// AI fallback stage.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Configured reports whether the OpenAI fallback has an API key. An
// unconfigured key does not prevent startup; AI-stage calls simply fail
// and the classifier falls back to its conservative default.
func (c OpenAIConfig) Configured() bool {
	return c.APIKey != ""
}

// Load reads configuration from a YAML file and applies environment
// overrides on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables referenced in the file itself,
	// e.g. api_key: ${OPENAI_API_KEY}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a configuration with built-in defaults and environment
// overrides applied. Used when no config file exists.
func Default() *Config {
	cfg := &Config{
		Listen: ListenConfig{
			Address: DefaultAddress,
			Port:    DefaultPort,
		},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4.1-mini",
			TimeoutSeconds: 30,
		},
		DataDir: "data",
	}
	cfg.applyEnv()
	return cfg
}

// applyEnv layers well-known environment variables over the config.
// OPENAI_API_KEY, HOST, and PORT win over file values so that container
// deployments can configure the service without a config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Listen.Address = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Listen.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Listen.Address == "" {
		c.Listen.Address = DefaultAddress
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = DefaultPort
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4.1-mini"
	}
	if c.OpenAI.TimeoutSeconds == 0 {
		c.OpenAI.TimeoutSeconds = 30
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
}
