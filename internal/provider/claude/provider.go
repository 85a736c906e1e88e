// Package claude adapts the Anthropic Claude messages API. Unlike the
// OpenAI-wire family it authenticates with an x-api-key header, carries the
// system prompt as a top-level field and wraps content in typed blocks.
package claude

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	envVar         = "CLAUDE_API_KEY"
	defaultModel   = "claude-3-5-sonnet-20241022"

	invalidFormatMessage = "Invalid response format from Claude API"
)

var staticModels = []models.ModelInfo{
	{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Description: "Balanced intelligence and speed"},
	{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Description: "Fastest Claude model"},
	{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Description: "Most capable Claude 3 model"},
}

// Adapter implements the uniform contract over the Claude messages API.
type Adapter struct {
	apiKey       string
	client       *http.Client
	streamClient *http.Client
}

// New constructs a per-request Claude adapter.
func New(apiKey string, client, streamClient *http.Client) *Adapter {
	return &Adapter{
		apiKey:       provider.ResolveKey(apiKey, envVar),
		client:       client,
		streamClient: streamClient,
	}
}

func (a *Adapter) Type() models.ProviderType {
	return models.ProviderClaude
}

// SupportsNativeStreaming is true: Claude streams content_block_delta events.
func (a *Adapter) SupportsNativeStreaming() bool {
	return true
}

func (a *Adapter) Generate(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	if a.apiKey == "" {
		return nil, provider.NewError(provider.KindConfiguration, models.ProviderClaude, "missing API key")
	}

	resp, err := provider.PostJSON(ctx, a.client, a.messagesURL(req.Config), a.headers(), buildPayload(req, false))
	if err != nil {
		return nil, provider.WrapError(provider.KindUpstream, models.ProviderClaude, "chat request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.UpstreamError(models.ProviderClaude, resp)
	}

	var envelope messageResponse
	if err := provider.DecodeJSON(resp.Body, &envelope); err != nil {
		return nil, provider.WrapError(provider.KindResponseFormat, models.ProviderClaude, invalidFormatMessage, err)
	}
	return envelope.toResult()
}

// GenerateStream opens Claude's native SSE stream and relays text deltas
// from content_block_delta events.
func (a *Adapter) GenerateStream(ctx context.Context, req models.ChatRequest) (<-chan provider.Chunk, error) {
	if a.apiKey == "" {
		return nil, provider.NewError(provider.KindConfiguration, models.ProviderClaude, "missing API key")
	}

	resp, err := provider.PostJSONStream(ctx, a.streamClient, a.messagesURL(req.Config), a.headers(), buildPayload(req, true))
	if err != nil {
		return nil, provider.WrapError(provider.KindUpstream, models.ProviderClaude, "stream request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, provider.UpstreamError(models.ProviderClaude, resp)
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
					a.push(ctx, out, provider.Chunk{Err: provider.WrapError(provider.KindUpstream, models.ProviderClaude, "stream read failed", err)})
				}
				return
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				a.push(ctx, out, provider.Chunk{Err: provider.WrapError(provider.KindResponseFormat, models.ProviderClaude, invalidFormatMessage, err)})
				return
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text != "" {
					if !a.push(ctx, out, provider.Chunk{Delta: event.Delta.Text}) {
						return
					}
				}
			case "message_delta":
				if event.Delta.StopReason != "" {
					if !a.push(ctx, out, provider.Chunk{FinishReason: event.Delta.StopReason}) {
						return
					}
				}
			case "message_stop":
				return
			}
		}
	}()

	return out, nil
}

func (a *Adapter) TestConnection(ctx context.Context, cfg models.ProviderConfig) (*models.ConnectionStatus, error) {
	probe := models.ChatRequest{Message: "Hi", Config: cfg}
	probe.Config.MaxTokens = 5

	_, err := a.Generate(ctx, probe)

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return provider.TestOutcome(models.ProviderClaude, model, err), nil
}

// ListModels serves the static catalog; Claude offers no models endpoint
// usable with widget-scoped keys.
func (a *Adapter) ListModels(ctx context.Context, cfg models.ProviderConfig) ([]models.ModelInfo, error) {
	out := make([]models.ModelInfo, len(staticModels))
	copy(out, staticModels)
	return out, nil
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": apiVersion,
	}
}

func (a *Adapter) messagesURL(cfg models.ProviderConfig) string {
	base := defaultBaseURL
	if override, ok := cfg.AdvancedString("base_url"); ok {
		base = strings.TrimRight(override, "/")
	}
	return base + "/v1/messages"
}

func (a *Adapter) push(ctx context.Context, out chan<- provider.Chunk, chunk provider.Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagePayload struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
}

func buildPayload(req models.ChatRequest, stream bool) messagePayload {
	messages := make([]claudeMessage, 0, len(req.Context)+1)
	for _, turn := range req.Context {
		messages = append(messages, claudeMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, claudeMessage{Role: "user", Content: req.Message})

	model := req.Config.Model
	if model == "" {
		model = defaultModel
	}

	payload := messagePayload{
		Model:       model,
		System:      req.Config.SystemPrompt,
		Messages:    messages,
		MaxTokens:   req.Config.MaxTokens,
		Temperature: req.Config.Temperature,
		Stream:      stream,
	}
	if v, ok := req.Config.AdvancedFloat("top_p"); ok {
		payload.TopP = &v
	}
	return payload
}

type messageResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (r messageResponse) toResult() (*models.ChatResult, error) {
	if len(r.Content) == 0 || r.Content[0].Text == "" {
		return nil, provider.NewError(provider.KindResponseFormat, models.ProviderClaude, invalidFormatMessage)
	}

	model := r.Model
	if model == "" {
		model = defaultModel
	}

	result := &models.ChatResult{
		Success:      true,
		Content:      r.Content[0].Text,
		ModelUsed:    model,
		FinishReason: r.StopReason,
	}
	if r.Usage != nil {
		// Claude reports input and output tokens; the total is derived.
		result.Usage = &models.TokenUsage{
			PromptTokens:     models.IntPtr(r.Usage.InputTokens),
			CompletionTokens: models.IntPtr(r.Usage.OutputTokens),
			TotalTokens:      models.IntPtr(r.Usage.InputTokens + r.Usage.OutputTokens),
		}
	}
	return result, nil
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
}
