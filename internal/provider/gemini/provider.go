// Package gemini adapts the Google Gemini generateContent API. Gemini keys
// travel in an x-goog-api-key header, conversation roles are user/model and
// responses arrive in a candidates envelope. Streamed delivery is simulated
// by the relay; the blocking endpoint is always used.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	envVar         = "GEMINI_API_KEY"
	defaultModel   = "gemini-1.5-flash"

	invalidFormatMessage = "Invalid response format from Gemini API"
)

var staticModels = []models.ModelInfo{
	{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Description: "Large-context reasoning model"},
	{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Description: "Fast general model"},
}

// Adapter implements the uniform contract over the Gemini API.
type Adapter struct {
	apiKey string
	client *http.Client
}

// New constructs a per-request Gemini adapter. Gemini has no native SSE
// relay here, so no stream client is required.
func New(apiKey string, client *http.Client) *Adapter {
	return &Adapter{
		apiKey: provider.ResolveKey(apiKey, envVar),
		client: client,
	}
}

func (a *Adapter) Type() models.ProviderType {
	return models.ProviderGemini
}

// SupportsNativeStreaming is false; the relay chunks the complete response.
func (a *Adapter) SupportsNativeStreaming() bool {
	return false
}

func (a *Adapter) Generate(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	if a.apiKey == "" {
		return nil, provider.NewError(provider.KindConfiguration, models.ProviderGemini, "missing API key")
	}

	model := a.modelFor(req.Config)
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.baseURL(req.Config), model)

	resp, err := provider.PostJSON(ctx, a.client, url, a.headers(), buildPayload(req))
	if err != nil {
		return nil, provider.WrapError(provider.KindUpstream, models.ProviderGemini, "chat request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.UpstreamError(models.ProviderGemini, resp)
	}

	var envelope generateResponse
	if err := provider.DecodeJSON(resp.Body, &envelope); err != nil {
		return nil, provider.WrapError(provider.KindResponseFormat, models.ProviderGemini, invalidFormatMessage, err)
	}
	return envelope.toResult(model)
}

func (a *Adapter) TestConnection(ctx context.Context, cfg models.ProviderConfig) (*models.ConnectionStatus, error) {
	probe := models.ChatRequest{Message: "Hi", Config: cfg}
	probe.Config.MaxTokens = 5

	_, err := a.Generate(ctx, probe)
	return provider.TestOutcome(models.ProviderGemini, a.modelFor(cfg), err), nil
}

// ListModels queries the live catalog, falling back to the static list.
func (a *Adapter) ListModels(ctx context.Context, cfg models.ProviderConfig) ([]models.ModelInfo, error) {
	static := make([]models.ModelInfo, len(staticModels))
	copy(static, staticModels)

	if a.apiKey == "" {
		return static, nil
	}

	resp, err := provider.GetJSON(ctx, a.client, a.baseURL(cfg)+"/v1beta/models", a.headers())
	if err != nil {
		return static, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return static, nil
	}

	var envelope struct {
		Models []struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
			Description string `json:"description"`
		} `json:"models"`
	}
	if err := provider.DecodeJSON(resp.Body, &envelope); err != nil || len(envelope.Models) == 0 {
		return static, nil
	}

	out := make([]models.ModelInfo, 0, len(envelope.Models))
	for _, m := range envelope.Models {
		out = append(out, models.ModelInfo{
			ID:          strings.TrimPrefix(m.Name, "models/"),
			Name:        m.DisplayName,
			Description: m.Description,
		})
	}
	return out, nil
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{"x-goog-api-key": a.apiKey}
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

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generatePayload struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
	TopP            *float64 `json:"topP,omitempty"`
}

func buildPayload(req models.ChatRequest) generatePayload {
	contents := make([]content, 0, len(req.Context)+1)
	for _, turn := range req.Context {
		// Gemini names the assistant role "model".
		role := "model"
		if turn.Role == "user" {
			role = "user"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: turn.Content}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: req.Message}}})

	payload := generatePayload{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     req.Config.Temperature,
			MaxOutputTokens: req.Config.MaxTokens,
		},
	}
	if strings.TrimSpace(req.Config.SystemPrompt) != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: req.Config.SystemPrompt}}}
	}
	if v, ok := req.Config.AdvancedFloat("top_p"); ok {
		payload.GenerationConfig.TopP = &v
	}
	return payload
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (r generateResponse) toResult(model string) (*models.ChatResult, error) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 || r.Candidates[0].Content.Parts[0].Text == "" {
		return nil, provider.NewError(provider.KindResponseFormat, models.ProviderGemini, invalidFormatMessage)
	}

	result := &models.ChatResult{
		Success:      true,
		Content:      r.Candidates[0].Content.Parts[0].Text,
		ModelUsed:    model,
		FinishReason: strings.ToLower(r.Candidates[0].FinishReason),
	}
	if r.UsageMetadata != nil {
		result.Usage = &models.TokenUsage{
			PromptTokens:     models.IntPtr(r.UsageMetadata.PromptTokenCount),
			CompletionTokens: models.IntPtr(r.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      models.IntPtr(r.UsageMetadata.TotalTokenCount),
		}
	}
	return result, nil
}
