// Package config loads and validates the gateway's YAML configuration.
// Vendor API keys never live here; they arrive encrypted from the dashboard
// or through environment variables. The file covers the listener, the
// credential vault secret, rate limiting and streaming tuning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
)

const (
	// DefaultMaxContextTurns bounds per-session history sent upstream.
	DefaultMaxContextTurns = 10

	defaultRateLimit     = 30
	defaultWindowSeconds = 60

	defaultStreamChunkSize    = 10
	defaultStreamChunkDelayMs = 30

	minEncryptionKeyLen = 16
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Chat      ChatConfig      `yaml:"chat"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SecurityConfig carries the vault secret used to encrypt stored API keys.
// The YAML value may name an environment variable indirection of the form
// env:VAR_NAME so the secret itself stays out of the file.
type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

// RateLimitConfig tunes the per-client sliding window. When Redis.Addr is
// set the window is shared across gateway instances.
type RateLimitConfig struct {
	Limit         int         `yaml:"limit"`
	WindowSeconds int         `yaml:"window_seconds"`
	Redis         RedisConfig `yaml:"redis"`
}

// RedisConfig addresses the shared limiter backend. An empty Addr selects
// the in-process window.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ChatConfig tunes conversation context and simulated stream pacing.
// Fallbacks maps a provider type to the provider tried when a call fails
// and the request names no fallback of its own.
type ChatConfig struct {
	MaxContextTurns    int               `yaml:"max_context_turns"`
	StreamChunkSize    int               `yaml:"stream_chunk_size"`
	StreamChunkDelayMs int               `yaml:"stream_chunk_delay_ms"`
	Fallbacks          map[string]string `yaml:"fallbacks"`
}

// Load reads YAML configuration from disk, applies defaults and validates
// the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = defaultRateLimit
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = defaultWindowSeconds
	}
	if c.Chat.MaxContextTurns == 0 {
		c.Chat.MaxContextTurns = DefaultMaxContextTurns
	}
	if c.Chat.StreamChunkSize == 0 {
		c.Chat.StreamChunkSize = defaultStreamChunkSize
	}
	if c.Chat.StreamChunkDelayMs == 0 {
		c.Chat.StreamChunkDelayMs = defaultStreamChunkDelayMs
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if key, err := c.ResolveEncryptionKey(); err != nil {
		return err
	} else if len(key) < minEncryptionKeyLen {
		return fmt.Errorf("security.encryption_key must be at least %d characters", minEncryptionKeyLen)
	}
	if c.RateLimit.Limit < 1 {
		return fmt.Errorf("rate_limit.limit must be positive, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("rate_limit.window_seconds must be positive, got %d", c.RateLimit.WindowSeconds)
	}
	if c.Chat.MaxContextTurns < 1 {
		return fmt.Errorf("chat.max_context_turns must be positive, got %d", c.Chat.MaxContextTurns)
	}
	if c.Chat.StreamChunkSize < 1 {
		return fmt.Errorf("chat.stream_chunk_size must be positive, got %d", c.Chat.StreamChunkSize)
	}
	if c.Chat.StreamChunkDelayMs < 0 {
		return fmt.Errorf("chat.stream_chunk_delay_ms must not be negative, got %d", c.Chat.StreamChunkDelayMs)
	}
	for primary, fallback := range c.Chat.Fallbacks {
		if _, err := models.ParseProviderType(primary); err != nil {
			return fmt.Errorf("chat.fallbacks: %w", err)
		}
		if _, err := models.ParseProviderType(fallback); err != nil {
			return fmt.Errorf("chat.fallbacks[%s]: %w", primary, err)
		}
		if primary == fallback {
			return fmt.Errorf("chat.fallbacks[%s] must name a different provider", primary)
		}
	}
	return nil
}

// ResolveEncryptionKey returns the vault secret, following an env:VAR
// indirection when present. It fails rather than silently running with an
// empty secret.
func (c Config) ResolveEncryptionKey() (string, error) {
	raw := strings.TrimSpace(c.Security.EncryptionKey)
	if raw == "" {
		return "", fmt.Errorf("security.encryption_key must be provided")
	}

	if name, ok := strings.CutPrefix(raw, "env:"); ok {
		value := os.Getenv(strings.TrimSpace(name))
		if value == "" {
			return "", fmt.Errorf("security.encryption_key references unset environment variable %q", name)
		}
		return value, nil
	}
	return raw, nil
}
