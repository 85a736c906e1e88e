package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
server:
  port: 8090
security:
  encryption_key: "0123456789abcdef0123456789abcdef"
rate_limit:
  limit: 30
  window_seconds: 60
chat:
  max_context_turns: 10
  stream_chunk_size: 10
  stream_chunk_delay_ms: 30
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8090 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.RateLimit.Limit != 30 || cfg.RateLimit.WindowSeconds != 60 {
		t.Fatalf("rate limit = %+v", cfg.RateLimit)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 8090
security:
  encryption_key: "0123456789abcdef0123456789abcdef"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RateLimit.Limit != 30 || cfg.RateLimit.WindowSeconds != 60 {
		t.Fatalf("rate limit defaults not applied: %+v", cfg.RateLimit)
	}
	if cfg.Chat.MaxContextTurns != 10 || cfg.Chat.StreamChunkSize != 10 || cfg.Chat.StreamChunkDelayMs != 30 {
		t.Fatalf("chat defaults not applied: %+v", cfg.Chat)
	}
}

func TestLoadParsesFallbackDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, strings.Replace(validConfig,
		"stream_chunk_delay_ms: 30", "stream_chunk_delay_ms: 30\n  fallbacks:\n    openai: groq", 1)))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chat.Fallbacks["openai"] != "groq" {
		t.Fatalf("fallbacks = %+v", cfg.Chat.Fallbacks)
	}
}

func TestLoadRejectsUnknownFallbackProvider(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig,
		"stream_chunk_delay_ms: 30", "stream_chunk_delay_ms: 30\n  fallbacks:\n    openai: cohere", 1)))
	if err == nil || !strings.Contains(err.Error(), "chat.fallbacks") {
		t.Fatalf("expected fallback error, got %v", err)
	}
}

func TestLoadRejectsSelfFallback(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig,
		"stream_chunk_delay_ms: 30", "stream_chunk_delay_ms: 30\n  fallbacks:\n    openai: openai", 1)))
	if err == nil || !strings.Contains(err.Error(), "different provider") {
		t.Fatalf("expected self-fallback error, got %v", err)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig, "port: 8090", "port: 0", 1)))
	if err == nil || !strings.Contains(err.Error(), "server.port") {
		t.Fatalf("expected port error, got %v", err)
	}
}

func TestLoadRejectsShortEncryptionKey(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig,
		`encryption_key: "0123456789abcdef0123456789abcdef"`, `encryption_key: "short"`, 1)))
	if err == nil || !strings.Contains(err.Error(), "encryption_key") {
		t.Fatalf("expected encryption key error, got %v", err)
	}
}

func TestResolveEncryptionKeyEnvIndirection(t *testing.T) {
	t.Setenv("GATEWAY_TEST_VAULT_SECRET", "0123456789abcdef0123456789abcdef")
	cfg, err := Load(writeConfig(t, strings.Replace(validConfig,
		`encryption_key: "0123456789abcdef0123456789abcdef"`, `encryption_key: "env:GATEWAY_TEST_VAULT_SECRET"`, 1)))
	if err != nil {
		t.Fatal(err)
	}
	key, err := cfg.ResolveEncryptionKey()
	if err != nil {
		t.Fatal(err)
	}
	if key != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("resolved key %q", key)
	}
}

func TestResolveEncryptionKeyUnsetEnvFails(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(validConfig,
		`encryption_key: "0123456789abcdef0123456789abcdef"`, `encryption_key: "env:GATEWAY_TEST_VAULT_SECRET_MISSING"`, 1)))
	if err == nil || !strings.Contains(err.Error(), "unset environment variable") {
		t.Fatalf("expected unset env error, got %v", err)
	}
}
