// Package openaiwire implements the OpenAI-compatible chat-completions wire
// protocol. OpenAI itself and the vendors that cloned its API (Mistral, Groq,
// Grok, DeepSeek, OpenRouter) differ only in endpoint, auth header extras and
// model catalog, so each of those adapters wraps a Core configured with its
// vendor profile.
package openaiwire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
)

// Profile carries the per-vendor constants for an OpenAI-compatible API.
type Profile struct {
	Type         models.ProviderType
	DisplayName  string
	BaseURL      string
	EnvVar       string
	DefaultModel string
	// ModelsPath enables live model discovery; empty means static catalog only.
	ModelsPath   string
	ExtraHeaders map[string]string
	StaticModels []models.ModelInfo
}

// Core executes OpenAI-wire requests for one vendor profile.
type Core struct {
	profile      Profile
	apiKey       string
	client       *http.Client
	streamClient *http.Client
}

// New builds a per-request core. The apiKey is the decrypted stored key and
// may be empty, in which case the vendor's environment variable is consulted.
func New(profile Profile, apiKey string, client, streamClient *http.Client) *Core {
	return &Core{
		profile:      profile,
		apiKey:       provider.ResolveKey(apiKey, profile.EnvVar),
		client:       client,
		streamClient: streamClient,
	}
}

func (c *Core) Type() models.ProviderType {
	return c.profile.Type
}

// SupportsNativeStreaming is true for the whole OpenAI-wire family.
func (c *Core) SupportsNativeStreaming() bool {
	return true
}

func (c *Core) Generate(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	if c.apiKey == "" {
		return nil, provider.NewError(provider.KindConfiguration, c.profile.Type, "missing API key")
	}

	payload := c.buildPayload(req, false)
	resp, err := provider.PostJSON(ctx, c.client, c.chatURL(req.Config), c.headers(), payload)
	if err != nil {
		return nil, provider.WrapError(provider.KindUpstream, c.profile.Type, "chat request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.UpstreamError(c.profile.Type, resp)
	}

	var envelope chatResponse
	if err := provider.DecodeJSON(resp.Body, &envelope); err != nil {
		return nil, provider.WrapError(provider.KindResponseFormat, c.profile.Type, c.formatErrMessage(), err)
	}
	return c.toResult(envelope)
}

// GenerateStream opens the vendor's native SSE stream and relays content
// deltas. The producer goroutine owns the response body and closes it when
// the stream ends or ctx is cancelled.
func (c *Core) GenerateStream(ctx context.Context, req models.ChatRequest) (<-chan provider.Chunk, error) {
	if c.apiKey == "" {
		return nil, provider.NewError(provider.KindConfiguration, c.profile.Type, "missing API key")
	}

	payload := c.buildPayload(req, true)
	resp, err := provider.PostJSONStream(ctx, c.streamClient, c.chatURL(req.Config), c.headers(), payload)
	if err != nil {
		return nil, provider.WrapError(provider.KindUpstream, c.profile.Type, "stream request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, provider.UpstreamError(c.profile.Type, resp)
	}

	out := make(chan provider.Chunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := provider.NewSSEScanner(resp.Body)
		for {
			if ctx.Err() != nil {
				return
			}

			payload, err := scanner.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					sendChunk(ctx, out, provider.Chunk{Err: provider.WrapError(provider.KindUpstream, c.profile.Type, "stream read failed", err)})
				}
				return
			}
			if payload == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				sendChunk(ctx, out, provider.Chunk{Err: provider.WrapError(provider.KindResponseFormat, c.profile.Type, c.formatErrMessage(), err)})
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.Delta.Content != "" || choice.FinishReason != "" {
				if !sendChunk(ctx, out, provider.Chunk{Delta: choice.Delta.Content, FinishReason: choice.FinishReason}) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *Core) TestConnection(ctx context.Context, cfg models.ProviderConfig) (*models.ConnectionStatus, error) {
	probe := models.ChatRequest{
		Message: "Hi",
		Config:  cfg,
	}
	probe.Config.MaxTokens = 5

	_, err := c.Generate(ctx, probe)
	return provider.TestOutcome(c.profile.Type, c.modelFor(cfg), err), nil
}

func (c *Core) ListModels(ctx context.Context, cfg models.ProviderConfig) ([]models.ModelInfo, error) {
	if c.profile.ModelsPath == "" || c.apiKey == "" {
		return c.staticCatalog(), nil
	}

	resp, err := provider.GetJSON(ctx, c.client, c.baseURL(cfg)+c.profile.ModelsPath, c.headers())
	if err != nil {
		return c.staticCatalog(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.staticCatalog(), nil
	}

	var envelope struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := provider.DecodeJSON(resp.Body, &envelope); err != nil || len(envelope.Data) == 0 {
		return c.staticCatalog(), nil
	}

	out := make([]models.ModelInfo, 0, len(envelope.Data))
	for _, m := range envelope.Data {
		out = append(out, models.ModelInfo{ID: m.ID, Name: m.ID})
	}
	return out, nil
}

func (c *Core) headers() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}
	for k, v := range c.profile.ExtraHeaders {
		headers[k] = v
	}
	return headers
}

func (c *Core) baseURL(cfg models.ProviderConfig) string {
	if override, ok := cfg.AdvancedString("base_url"); ok {
		return strings.TrimRight(override, "/")
	}
	return c.profile.BaseURL
}

func (c *Core) chatURL(cfg models.ProviderConfig) string {
	return c.baseURL(cfg) + "/chat/completions"
}

func (c *Core) modelFor(cfg models.ProviderConfig) string {
	if strings.TrimSpace(cfg.Model) != "" {
		return cfg.Model
	}
	return c.profile.DefaultModel
}

func (c *Core) formatErrMessage() string {
	return fmt.Sprintf("Invalid response format from %s API", c.profile.DisplayName)
}

func (c *Core) staticCatalog() []models.ModelInfo {
	out := make([]models.ModelInfo, len(c.profile.StaticModels))
	copy(out, c.profile.StaticModels)
	return out
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model            string        `json:"model"`
	Messages         []wireMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	Stream           bool          `json:"stream,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
}

func (c *Core) buildPayload(req models.ChatRequest, stream bool) chatPayload {
	turns := provider.BuildMessages(req)
	messages := make([]wireMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, wireMessage{Role: turn.Role, Content: turn.Content})
	}

	payload := chatPayload{
		Model:       c.modelFor(req.Config),
		Messages:    messages,
		Temperature: req.Config.Temperature,
		MaxTokens:   req.Config.MaxTokens,
		Stream:      stream,
	}

	if v, ok := req.Config.AdvancedFloat("top_p"); ok {
		payload.TopP = &v
	}
	if v, ok := req.Config.AdvancedFloat("frequency_penalty"); ok {
		payload.FrequencyPenalty = &v
	}
	if v, ok := req.Config.AdvancedFloat("presence_penalty"); ok {
		payload.PresencePenalty = &v
	}

	return payload
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *Core) toResult(envelope chatResponse) (*models.ChatResult, error) {
	if len(envelope.Choices) == 0 || envelope.Choices[0].Message.Content == "" {
		return nil, provider.NewError(provider.KindResponseFormat, c.profile.Type, c.formatErrMessage())
	}

	model := envelope.Model
	if model == "" {
		model = c.profile.DefaultModel
	}

	result := &models.ChatResult{
		Success:      true,
		Content:      envelope.Choices[0].Message.Content,
		ModelUsed:    model,
		FinishReason: envelope.Choices[0].FinishReason,
	}
	if envelope.Usage != nil {
		result.Usage = &models.TokenUsage{
			PromptTokens:     models.IntPtr(envelope.Usage.PromptTokens),
			CompletionTokens: models.IntPtr(envelope.Usage.CompletionTokens),
			TotalTokens:      models.IntPtr(envelope.Usage.TotalTokens),
		}
	}
	return result, nil
}

func sendChunk(ctx context.Context, out chan<- provider.Chunk, chunk provider.Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
