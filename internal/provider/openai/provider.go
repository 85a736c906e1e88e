// Package openai adapts the OpenAI chat completions API.
package openai

import (
	"net/http"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider/openaiwire"
)

var profile = openaiwire.Profile{
	Type:         models.ProviderOpenAI,
	DisplayName:  "OpenAI",
	BaseURL:      "https://api.openai.com/v1",
	EnvVar:       "OPENAI_API_KEY",
	DefaultModel: "gpt-4o-mini",
	ModelsPath:   "/models",
	StaticModels: []models.ModelInfo{
		{ID: "gpt-4o", Name: "GPT-4o", Description: "Flagship multimodal model"},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", Description: "Fast, low-cost general model"},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Description: "Legacy fast chat model"},
	},
}

// Adapter speaks the OpenAI wire protocol with native SSE streaming.
type Adapter struct {
	*openaiwire.Core
}

// New constructs a per-request OpenAI adapter.
func New(apiKey string, client, streamClient *http.Client) *Adapter {
	return &Adapter{Core: openaiwire.New(profile, apiKey, client, streamClient)}
}
