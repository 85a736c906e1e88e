// Package gateway orchestrates one chat exchange: resolve the adapter,
// execute it (blocking or streamed), log a redacted summary and apply the
// single-hop provider fallback.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/relay"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/vault"
)

const logMessagePrefixLen = 32

// Resolver produces a fresh adapter for a configured provider.
type Resolver interface {
	Resolve(cfg models.ProviderConfig, apiKey string) (provider.Adapter, error)
}

// ConfigSource is the port over the platform's provider-configuration
// records, maintained by the external CRUD layer.
type ConfigSource interface {
	ProviderConfig(ctx context.Context, t models.ProviderType) (models.ProviderConfig, error)
}

// Gateway is the single entry point used by the chat endpoint.
type Gateway struct {
	resolver Resolver
	vault    *vault.Vault
	configs  ConfigSource
	relay    *relay.Relay
	catalog  *ModelCatalog
	log      *slog.Logger
}

// New wires the gateway. The relay parameter may be nil for deployments that
// never stream.
func New(resolver Resolver, v *vault.Vault, configs ConfigSource, rl *relay.Relay, log *slog.Logger) *Gateway {
	if rl == nil {
		rl = relay.New(0, 0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		resolver: resolver,
		vault:    v,
		configs:  configs,
		relay:    rl,
		catalog:  NewModelCatalog(DefaultCatalogTTL),
		log:      log,
	}
}

// Process executes a blocking exchange. Resolution failures (unknown type,
// inactive provider, undecryptable key) propagate immediately; upstream and
// response-shape failures trigger the single fallback hop when one distinct
// fallback provider is configured.
func (g *Gateway) Process(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	requestID := uuid.NewString()

	adapter, err := g.resolve(req.Config)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := adapter.Generate(ctx, req)
	if err == nil {
		result.ResponseTimeMs = models.Elapsed(time.Since(start))
		g.logSuccess(requestID, req, result)
		return result, nil
	}

	g.logFailure(requestID, req.Config.ProviderType, err)

	fbReq, ok := g.fallbackRequest(ctx, req, err)
	if !ok {
		return nil, err
	}

	g.log.Info("switching to fallback provider",
		"request_id", requestID,
		"primary", req.Config.ProviderType,
		"fallback", fbReq.Config.ProviderType,
	)
	return g.Process(ctx, fbReq)
}

// Stream executes a streamed exchange over fw. A failure before the first
// frame may still switch to the fallback provider; once frames have been
// delivered the stream is committed and any later failure terminates it.
func (g *Gateway) Stream(ctx context.Context, req models.ChatRequest, fw relay.FrameWriter) error {
	requestID := uuid.NewString()

	adapter, err := g.resolve(req.Config)
	if err != nil {
		g.relay.WriteError(fw, provider.UserMessage(err))
		return err
	}

	wrote, err := g.relay.Run(ctx, fw, adapter, req)
	if err == nil {
		g.log.Info("stream completed",
			"request_id", requestID,
			"provider", req.Config.ProviderType,
			"message_prefix", prefix(req.Message),
			"context_turns", len(req.Context),
		)
		return nil
	}
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing left to write.
		return err
	}

	g.logFailure(requestID, req.Config.ProviderType, err)

	if !wrote {
		if fbReq, ok := g.fallbackRequest(ctx, req, err); ok {
			fbAdapter, rerr := g.resolve(fbReq.Config)
			if rerr == nil {
				if _, ferr := g.relay.Run(ctx, fw, fbAdapter, fbReq); ferr == nil {
					return nil
				} else {
					g.logFailure(requestID, fbReq.Config.ProviderType, ferr)
					err = ferr
				}
			}
		}
		g.relay.WriteError(fw, provider.UserMessage(err))
	}
	return err
}

// TestConnection probes a provider with an ad-hoc plaintext key.
func (g *Gateway) TestConnection(ctx context.Context, t models.ProviderType, apiKey, model string) (*models.ConnectionStatus, error) {
	cfg := probeConfig(t, model)
	adapter, err := g.resolver.Resolve(cfg, apiKey)
	if err != nil {
		return nil, err
	}
	return adapter.TestConnection(ctx, cfg)
}

// ListModels serves model discovery through the TTL cache, keyed by a hash
// of provider type and key so distinct credentials never share entries.
func (g *Gateway) ListModels(ctx context.Context, t models.ProviderType, apiKey string) ([]models.ModelInfo, error) {
	if cached, ok := g.catalog.Get(t, apiKey); ok {
		return cached, nil
	}

	cfg := probeConfig(t, "")
	adapter, err := g.resolver.Resolve(cfg, apiKey)
	if err != nil {
		return nil, err
	}

	list, err := adapter.ListModels(ctx, cfg)
	if err != nil {
		return nil, err
	}
	g.catalog.Put(t, apiKey, list)
	return list, nil
}

// resolve decrypts the stored key (when present) and constructs the adapter.
// The plaintext key lives only in the adapter instance for this one call.
func (g *Gateway) resolve(cfg models.ProviderConfig) (provider.Adapter, error) {
	apiKey := ""
	if cfg.EncryptedKey != "" {
		decrypted, err := g.vault.Decrypt(cfg.EncryptedKey)
		if err != nil {
			return nil, provider.WrapError(provider.KindDecryption, cfg.ProviderType, "stored API key cannot be decrypted", err)
		}
		apiKey = decrypted
	}
	return g.resolver.Resolve(cfg, apiKey)
}

// fallbackRequest prepares the one-hop fallback request, or reports that the
// failure is terminal. The hop is taken only for fallback-eligible failures,
// when a fallback is configured, differs from the primary and has a loadable
// config. Clearing the Fallback field bounds recursion to depth two even if
// two providers name each other.
func (g *Gateway) fallbackRequest(ctx context.Context, req models.ChatRequest, err error) (models.ChatRequest, bool) {
	if !provider.FallbackEligible(err) {
		return models.ChatRequest{}, false
	}
	if req.Fallback == "" || req.Fallback == req.Config.ProviderType {
		return models.ChatRequest{}, false
	}
	if g.configs == nil {
		return models.ChatRequest{}, false
	}

	fbCfg, cfgErr := g.configs.ProviderConfig(ctx, req.Fallback)
	if cfgErr != nil {
		g.log.Warn("fallback provider has no usable config", "fallback", req.Fallback, "error", cfgErr)
		return models.ChatRequest{}, false
	}

	fbReq := req
	fbReq.Config = fbCfg
	fbReq.Fallback = ""
	return fbReq, true
}

func probeConfig(t models.ProviderType, model string) models.ProviderConfig {
	return models.ProviderConfig{
		ProviderType: t,
		Model:        model,
		Temperature:  0.7,
		MaxTokens:    64,
		IsActive:     true,
	}
}

func (g *Gateway) logSuccess(requestID string, req models.ChatRequest, result *models.ChatResult) {
	attrs := []any{
		"request_id", requestID,
		"provider", req.Config.ProviderType,
		"model", result.ModelUsed,
		"message_prefix", prefix(req.Message),
		"context_turns", len(req.Context),
		"response_time_ms", result.ResponseTimeMs,
	}
	if result.Usage != nil && result.Usage.TotalTokens != nil {
		attrs = append(attrs, "total_tokens", *result.Usage.TotalTokens)
	}
	g.log.Info("chat completed", attrs...)
}

func (g *Gateway) logFailure(requestID string, t models.ProviderType, err error) {
	g.log.Error("chat failed",
		"request_id", requestID,
		"provider", t,
		"error_kind", string(provider.KindOf(err)),
		"error", err.Error(),
	)
}

// prefix truncates the user message for logs; the full body never appears.
func prefix(message string) string {
	runes := []rune(message)
	if len(runes) <= logMessagePrefixLen {
		return message
	}
	return string(runes[:logMessagePrefixLen]) + "..."
}
