package config

import (
	"time"
)

// BuiltinAPIKey is a credential compiled into the binary, e.g.
// -ldflags "-X github.com/vietddude/tryon/internal/core/config.BuiltinAPIKey=...".
var BuiltinAPIKey string

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Retry   RetryConfig   `yaml:"retry"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// GeminiConfig holds settings for the remote image model.
type GeminiConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	Transport      string        `yaml:"transport"` // rest, sdk
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// RetryConfig controls the backoff applied to transient upstream failures.
type RetryConfig struct {
	MaxRetries   *int          `yaml:"max_retries"` // nil = default, 0 = never retry
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"` // 0 = uncapped
}

// Retries returns the configured retry budget.
func (r RetryConfig) Retries() int {
	if r.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *r.MaxRetries
}

// BridgeConfig controls how local files and remote URLs are turned into
// embedded images.
type BridgeConfig struct {
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	MaxImageBytes int64         `yaml:"max_image_bytes"`
	UserAgent     string        `yaml:"user_agent"`
	// AllowPrivateNetworks lets the API fetch URLs that resolve to loopback
	// or private addresses.
	AllowPrivateNetworks bool `yaml:"allow_private_networks"`
}

// CatalogConfig lists the preset images offered before anything is uploaded.
type CatalogConfig struct {
	Persons []PresetConfig `yaml:"persons"`
	Clothes []PresetConfig `yaml:"clothes"`
}

// PresetConfig is one preset image.
type PresetConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

const DefaultMaxRetries = 3

const (
	TransportREST = "rest"
	TransportSDK  = "sdk"
)
