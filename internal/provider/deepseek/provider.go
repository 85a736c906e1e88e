// Package deepseek adapts the DeepSeek platform, an OpenAI-compatible API.
package deepseek

import (
	"net/http"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider/openaiwire"
)

var profile = openaiwire.Profile{
	Type:         models.ProviderDeepSeek,
	DisplayName:  "DeepSeek",
	BaseURL:      "https://api.deepseek.com/v1",
	EnvVar:       "DEEPSEEK_API_KEY",
	DefaultModel: "deepseek-chat",
	ModelsPath:   "/models",
	StaticModels: []models.ModelInfo{
		{ID: "deepseek-chat", Name: "DeepSeek Chat", Description: "General conversation model"},
		{ID: "deepseek-reasoner", Name: "DeepSeek Reasoner", Description: "Chain-of-thought reasoning model"},
	},
}

type Adapter struct {
	*openaiwire.Core
}

// New constructs a per-request DeepSeek adapter.
func New(apiKey string, client, streamClient *http.Client) *Adapter {
	return &Adapter{Core: openaiwire.New(profile, apiKey, client, streamClient)}
}
