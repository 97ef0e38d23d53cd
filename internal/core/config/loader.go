package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash-image"
)

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file. An empty path yields the defaults.
func Load(path string) (*AppConfig, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = DefaultBaseURL
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = DefaultModel
	}
	if cfg.Gemini.Transport == "" {
		cfg.Gemini.Transport = TransportREST
	}
	if cfg.Gemini.AttemptTimeout == 0 {
		cfg.Gemini.AttemptTimeout = 60 * time.Second
	}

	if cfg.Retry.MaxRetries == nil {
		n := DefaultMaxRetries
		cfg.Retry.MaxRetries = &n
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = 2 * time.Second
	}

	if cfg.Bridge.FetchTimeout == 0 {
		cfg.Bridge.FetchTimeout = 30 * time.Second
	}
	if cfg.Bridge.MaxImageBytes == 0 {
		cfg.Bridge.MaxImageBytes = 10 << 20
	}
	if cfg.Bridge.UserAgent == "" {
		cfg.Bridge.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
}

// Validate rejects settings the generator cannot run with.
func (c *AppConfig) Validate() error {
	switch c.Gemini.Transport {
	case TransportREST, TransportSDK:
	default:
		return fmt.Errorf("gemini.transport must be %q or %q, got %q", TransportREST, TransportSDK, c.Gemini.Transport)
	}
	if c.Retry.Retries() < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.Retries())
	}
	if c.Retry.InitialDelay <= 0 {
		return fmt.Errorf("retry.initial_delay must be positive, got %s", c.Retry.InitialDelay)
	}
	if c.Retry.MaxDelay != 0 && c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("retry.max_delay (%s) is below retry.initial_delay (%s)", c.Retry.MaxDelay, c.Retry.InitialDelay)
	}
	if c.Gemini.AttemptTimeout < 0 {
		return fmt.Errorf("gemini.attempt_timeout must not be negative")
	}

	seen := make(map[string]bool)
	for _, p := range append(append([]PresetConfig{}, c.Catalog.Persons...), c.Catalog.Clothes...) {
		if p.ID == "" || p.URL == "" {
			return fmt.Errorf("catalog presets need both id and url")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate catalog preset id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// ResolveAPIKey returns the credential: the configured (or compiled-in) value
// first, then GEMINI_API_KEY, then API_KEY. Empty means none is available.
func (c *AppConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(c.Gemini.APIKey); key != "" {
		return key
	}
	if key := strings.TrimSpace(BuiltinAPIKey); key != "" {
		return key
	}
	for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			return key
		}
	}
	return ""
}
