// Package registry maps provider types to adapter constructors. The table is
// built once at startup and passed by reference; adapter instances themselves
// are constructed fresh per request so no state bleeds across requests.
package registry

import (
	"fmt"
	"net/http"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
	claudeadapter "github.com/haroon-aygtc/ai-widget-gateway/internal/provider/claude"
	deepseekadapter "github.com/haroon-aygtc/ai-widget-gateway/internal/provider/deepseek"
	geminiadapter "github.com/haroon-aygtc/ai-widget-gateway/internal/provider/gemini"
	grokadapter "github.com/haroon-aygtc/ai-widget-gateway/internal/provider/grok"
	groqadapter "github.com/haroon-aygtc/ai-widget-gateway/internal/provider/groq"
	huggingfaceadapter "github.com/haroon-aygtc/ai-widget-gateway/internal/provider/huggingface"
	mistraladapter "github.com/haroon-aygtc/ai-widget-gateway/internal/provider/mistral"
	openaiadapter "github.com/haroon-aygtc/ai-widget-gateway/internal/provider/openai"
	openrouteradapter "github.com/haroon-aygtc/ai-widget-gateway/internal/provider/openrouter"
)

// Factory builds one adapter instance for a request. apiKey is the decrypted
// stored key; adapters fall back to their environment variable when empty.
type Factory func(apiKey string) provider.Adapter

// Registry resolves provider types to freshly constructed adapters.
type Registry struct {
	factories map[models.ProviderType]Factory
}

// New builds the registry with every supported vendor wired to the shared
// HTTP clients.
func New(client, streamClient *http.Client) *Registry {
	factories := map[models.ProviderType]Factory{
		models.ProviderOpenAI: func(key string) provider.Adapter {
			return openaiadapter.New(key, client, streamClient)
		},
		models.ProviderClaude: func(key string) provider.Adapter {
			return claudeadapter.New(key, client, streamClient)
		},
		models.ProviderGemini: func(key string) provider.Adapter {
			return geminiadapter.New(key, client)
		},
		models.ProviderMistral: func(key string) provider.Adapter {
			return mistraladapter.New(key, client, streamClient)
		},
		models.ProviderGrok: func(key string) provider.Adapter {
			return grokadapter.New(key, client, streamClient)
		},
		models.ProviderGroq: func(key string) provider.Adapter {
			return groqadapter.New(key, client, streamClient)
		},
		models.ProviderOpenRouter: func(key string) provider.Adapter {
			return openrouteradapter.New(key, client, streamClient)
		},
		models.ProviderDeepSeek: func(key string) provider.Adapter {
			return deepseekadapter.New(key, client, streamClient)
		},
		models.ProviderHuggingFace: func(key string) provider.Adapter {
			return huggingfaceadapter.New(key, client)
		},
	}

	return &Registry{factories: factories}
}

// Resolve returns an adapter for the configured provider. It fails with
// KindNotSupported for unknown types and KindInactive when the configuration
// record is disabled.
func (r *Registry) Resolve(cfg models.ProviderConfig, apiKey string) (provider.Adapter, error) {
	factory, ok := r.factories[cfg.ProviderType]
	if !ok {
		return nil, provider.NewError(provider.KindNotSupported, cfg.ProviderType,
			fmt.Sprintf("unknown provider type %q", string(cfg.ProviderType)))
	}
	if !cfg.IsActive {
		return nil, provider.NewError(provider.KindInactive, cfg.ProviderType,
			fmt.Sprintf("provider %s is disabled", cfg.ProviderType))
	}
	return factory(apiKey), nil
}

// Types lists the registered provider types.
func (r *Registry) Types() []models.ProviderType {
	return models.AllProviderTypes()
}
