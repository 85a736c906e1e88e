// Package grok adapts the xAI Grok API, an OpenAI-compatible API.
package grok

import (
	"net/http"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider/openaiwire"
)

var profile = openaiwire.Profile{
	Type:         models.ProviderGrok,
	DisplayName:  "Grok",
	BaseURL:      "https://api.x.ai/v1",
	EnvVar:       "GROK_API_KEY",
	DefaultModel: "grok-2-latest",
	ModelsPath:   "/models",
	StaticModels: []models.ModelInfo{
		{ID: "grok-2-latest", Name: "Grok 2", Description: "Latest Grok 2 model"},
		{ID: "grok-beta", Name: "Grok Beta", Description: "Preview Grok model"},
	},
}

type Adapter struct {
	*openaiwire.Core
}

// New constructs a per-request Grok adapter.
func New(apiKey string, client, streamClient *http.Client) *Adapter {
	return &Adapter{Core: openaiwire.New(profile, apiKey, client, streamClient)}
}
