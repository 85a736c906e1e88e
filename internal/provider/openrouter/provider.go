// Package openrouter adapts the OpenRouter aggregation API. The wire format
// is OpenAI-compatible; OpenRouter additionally expects attribution headers
// identifying the calling application.
package openrouter

import (
	"net/http"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider/openaiwire"
)

var profile = openaiwire.Profile{
	Type:         models.ProviderOpenRouter,
	DisplayName:  "OpenRouter",
	BaseURL:      "https://openrouter.ai/api/v1",
	EnvVar:       "OPENROUTER_API_KEY",
	DefaultModel: "openai/gpt-4o-mini",
	ModelsPath:   "/models",
	ExtraHeaders: map[string]string{
		"HTTP-Referer": "https://ai-widget.app",
		"X-Title":      "AI Chat Widget",
	},
	StaticModels: []models.ModelInfo{
		{ID: "openai/gpt-4o-mini", Name: "GPT-4o mini", Description: "Routed via OpenRouter"},
		{ID: "anthropic/claude-3.5-sonnet", Name: "Claude 3.5 Sonnet", Description: "Routed via OpenRouter"},
		{ID: "meta-llama/llama-3.1-70b-instruct", Name: "Llama 3.1 70B", Description: "Routed via OpenRouter"},
	},
}

type Adapter struct {
	*openaiwire.Core
}

// New constructs a per-request OpenRouter adapter.
func New(apiKey string, client, streamClient *http.Client) *Adapter {
	return &Adapter{Core: openaiwire.New(profile, apiKey, client, streamClient)}
}
