// Package huggingface adapts the Hugging Face Inference API. The endpoint
// accepts a single formatted prompt string rather than a message array, and
// answers with a bare [{"generated_text": ...}] envelope. No token usage is
// reported and streaming is simulated by the relay.
package huggingface

import (
	"context"
	"net/http"
	"strings"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
)

const (
	defaultBaseURL = "https://api-inference.huggingface.co/models"
	envVar         = "HUGGINGFACE_API_KEY"
	defaultModel   = "mistralai/Mistral-7B-Instruct-v0.3"

	invalidFormatMessage = "Invalid response format from Hugging Face API"
)

var staticModels = []models.ModelInfo{
	{ID: "mistralai/Mistral-7B-Instruct-v0.3", Name: "Mistral 7B Instruct", Description: "Hosted instruct model"},
	{ID: "meta-llama/Meta-Llama-3-8B-Instruct", Name: "Llama 3 8B Instruct", Description: "Hosted instruct model"},
	{ID: "HuggingFaceH4/zephyr-7b-beta", Name: "Zephyr 7B", Description: "Hosted chat-tuned model"},
}

// Adapter implements the uniform contract over the Inference API.
type Adapter struct {
	apiKey string
	client *http.Client
}

// New constructs a per-request Hugging Face adapter.
func New(apiKey string, client *http.Client) *Adapter {
	return &Adapter{
		apiKey: provider.ResolveKey(apiKey, envVar),
		client: client,
	}
}

func (a *Adapter) Type() models.ProviderType {
	return models.ProviderHuggingFace
}

// SupportsNativeStreaming is false; the relay chunks the complete response.
func (a *Adapter) SupportsNativeStreaming() bool {
	return false
}

func (a *Adapter) Generate(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	if a.apiKey == "" {
		return nil, provider.NewError(provider.KindConfiguration, models.ProviderHuggingFace, "missing API key")
	}

	model := a.modelFor(req.Config)

	payload := inferencePayload{
		Inputs: provider.FlattenPrompt(req),
		Parameters: inferenceParameters{
			Temperature:    req.Config.Temperature,
			MaxNewTokens:   req.Config.MaxTokens,
			ReturnFullText: false,
		},
	}
	if v, ok := req.Config.AdvancedFloat("top_p"); ok {
		payload.Parameters.TopP = &v
	}

	resp, err := provider.PostJSON(ctx, a.client, a.baseURL(req.Config)+"/"+model, a.headers(), payload)
	if err != nil {
		return nil, provider.WrapError(provider.KindUpstream, models.ProviderHuggingFace, "inference request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.UpstreamError(models.ProviderHuggingFace, resp)
	}

	var envelope []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := provider.DecodeJSON(resp.Body, &envelope); err != nil {
		return nil, provider.WrapError(provider.KindResponseFormat, models.ProviderHuggingFace, invalidFormatMessage, err)
	}
	if len(envelope) == 0 || strings.TrimSpace(envelope[0].GeneratedText) == "" {
		return nil, provider.NewError(provider.KindResponseFormat, models.ProviderHuggingFace, invalidFormatMessage)
	}

	// The Inference API reports no token usage and no finish reason.
	return &models.ChatResult{
		Success:      true,
		Content:      strings.TrimSpace(envelope[0].GeneratedText),
		ModelUsed:    model,
		FinishReason: "stop",
	}, nil
}

func (a *Adapter) TestConnection(ctx context.Context, cfg models.ProviderConfig) (*models.ConnectionStatus, error) {
	probe := models.ChatRequest{Message: "Hi", Config: cfg}
	probe.Config.MaxTokens = 5

	_, err := a.Generate(ctx, probe)
	return provider.TestOutcome(models.ProviderHuggingFace, a.modelFor(cfg), err), nil
}

// ListModels serves the static catalog; the hub search API is not usable
// for widget-scoped discovery.
func (a *Adapter) ListModels(ctx context.Context, cfg models.ProviderConfig) ([]models.ModelInfo, error) {
	out := make([]models.ModelInfo, len(staticModels))
	copy(out, staticModels)
	return out, nil
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.apiKey}
}

func (a *Adapter) baseURL(cfg models.ProviderConfig) string {
	if override, ok := cfg.AdvancedString("base_url"); ok {
		return strings.TrimRight(override, "/")
	}
	return defaultBaseURL
}

func (a *Adapter) modelFor(cfg models.ProviderConfig) string {
	if strings.TrimSpace(cfg.Model) != "" {
		return cfg.Model
	}
	return defaultModel
}

type inferencePayload struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	Temperature    float64  `json:"temperature"`
	MaxNewTokens   int      `json:"max_new_tokens"`
	ReturnFullText bool     `json:"return_full_text"`
	TopP           *float64 `json:"top_p,omitempty"`
}
