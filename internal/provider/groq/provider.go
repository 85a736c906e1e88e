// Package groq adapts the Groq inference API, an OpenAI-compatible API.
package groq

import (
	"net/http"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider/openaiwire"
)

var profile = openaiwire.Profile{
	Type:         models.ProviderGroq,
	DisplayName:  "Groq",
	BaseURL:      "https://api.groq.com/openai/v1",
	EnvVar:       "GROQ_API_KEY",
	DefaultModel: "llama-3.1-8b-instant",
	ModelsPath:   "/models",
	StaticModels: []models.ModelInfo{
		{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B", Description: "High-quality general model"},
		{ID: "llama-3.1-8b-instant", Name: "Llama 3.1 8B", Description: "Very fast small model"},
		{ID: "mixtral-8x7b-32768", Name: "Mixtral 8x7B", Description: "Mixture-of-experts model"},
	},
}

type Adapter struct {
	*openaiwire.Core
}

// New constructs a per-request Groq adapter.
func New(apiKey string, client, streamClient *http.Client) *Adapter {
	return &Adapter{Core: openaiwire.New(profile, apiKey, client, streamClient)}
}
