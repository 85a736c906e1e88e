// Package mistral adapts the Mistral AI platform, an OpenAI-compatible API.
package mistral

import (
	"net/http"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider/openaiwire"
)

var profile = openaiwire.Profile{
	Type:         models.ProviderMistral,
	DisplayName:  "Mistral",
	BaseURL:      "https://api.mistral.ai/v1",
	EnvVar:       "MISTRAL_API_KEY",
	DefaultModel: "mistral-small-latest",
	ModelsPath:   "/models",
	StaticModels: []models.ModelInfo{
		{ID: "mistral-large-latest", Name: "Mistral Large", Description: "Top-tier reasoning model"},
		{ID: "mistral-small-latest", Name: "Mistral Small", Description: "Cost-efficient general model"},
		{ID: "open-mistral-7b", Name: "Mistral 7B", Description: "Open-weights 7B model"},
	},
}

type Adapter struct {
	*openaiwire.Core
}

// New constructs a per-request Mistral adapter.
func New(apiKey string, client, streamClient *http.Client) *Adapter {
	return &Adapter{Core: openaiwire.New(profile, apiKey, client, streamClient)}
}
