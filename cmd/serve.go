package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/config"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/gateway"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/history"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider/registry"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/ratelimit"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/relay"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/server"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/vault"
)

const serveUsage = `Usage:
  ai-widget-gateway serve --config <path> [--port <port>] [--env <path>]

Flags:
  --config string   Path to YAML configuration file (required)
  --port   int      Override server port from configuration
  --env    string   Path to a dotenv file with provider API keys (default .env)`

const adapterTimeout = 45 * time.Second

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath, envPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")
	fs.StringVar(&envPath, "env", ".env", "path to dotenv file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	if cfgPath == "" {
		return errors.New("serve command requires --config <path>")
	}

	// The dotenv file is optional; real deployments inject the environment.
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load env file %q: %w", envPath, err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	secret, err := cfg.ResolveEncryptionKey()
	if err != nil {
		return err
	}
	v, err := vault.New(secret)
	if err != nil {
		return err
	}

	limiter, err := buildLimiter(ctx, cfg.RateLimit)
	if err != nil {
		return err
	}

	configStore := gateway.NewMemoryConfigStore()
	if err := seedProviderConfigs(v, configStore); err != nil {
		return err
	}

	turnStore := history.NewMemoryStore()
	builder := history.NewBuilder(turnStore, cfg.Chat.MaxContextTurns)

	reg := registry.New(provider.NewHTTPClient(adapterTimeout), provider.NewStreamClient())
	rl := relay.New(cfg.Chat.StreamChunkSize, time.Duration(cfg.Chat.StreamChunkDelayMs)*time.Millisecond)
	gw := gateway.New(reg, v, configStore, rl, slog.Default())

	srv, err := server.New(cfg, gw, limiter, builder, turnStore, configStore)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

// buildLimiter selects the Redis-backed window when an address is configured
// so multiple gateway instances share limits, and the in-process window
// otherwise.
func buildLimiter(ctx context.Context, cfg config.RateLimitConfig) (ratelimit.Limiter, error) {
	policy := ratelimit.Policy{
		Limit:  cfg.Limit,
		Window: time.Duration(cfg.WindowSeconds) * time.Second,
	}

	if cfg.Redis.Addr == "" {
		return ratelimit.NewSlidingWindow(policy), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis %q: %w", cfg.Redis.Addr, err)
	}

	return ratelimit.NewRedisWindow(client, policy), nil
}

// seedProviderConfigs creates one active configuration record per supported
// vendor. Keys found in the environment are encrypted into the record so
// they only exist in plaintext for the duration of an outbound call; the
// external CRUD layer replaces these records in full deployments.
func seedProviderConfigs(v *vault.Vault, store *gateway.MemoryConfigStore) error {
	for _, t := range models.AllProviderTypes() {
		cfg := models.ProviderConfig{
			ProviderType: t,
			Temperature:  0.7,
			MaxTokens:    1024,
			IsActive:     true,
		}

		if key := os.Getenv(strings.ToUpper(string(t)) + "_API_KEY"); key != "" {
			encrypted, err := v.Encrypt(key)
			if err != nil {
				return fmt.Errorf("encrypt %s API key: %w", t, err)
			}
			cfg.EncryptedKey = encrypted
		}

		if err := store.Upsert(cfg); err != nil {
			return fmt.Errorf("seed %s configuration: %w", t, err)
		}
	}
	return nil
}
