package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
)

func newAdapter(apiKey string) *Adapter {
	return New(apiKey, provider.NewHTTPClient(5*time.Second), provider.NewStreamClient())
}

func requestFor(serverURL string) models.ChatRequest {
	return models.ChatRequest{
		Message: "Summarize your return policy.",
		Config: models.ProviderConfig{
			ProviderType: models.ProviderClaude,
			Model:        "claude-3-5-sonnet-20241022",
			Temperature:  0.5,
			MaxTokens:    512,
			SystemPrompt: "You are a store assistant.",
			IsActive:     true,
			Advanced:     map[string]any{"base_url": serverURL},
		},
	}
}

func TestGenerateUsesAnthropicHeadersAndSystemField(t *testing.T) {
	var captured messagePayload
	var gotKey, gotVersion string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{
			"model":       "claude-3-5-sonnet-20241022",
			"content":     []map[string]string{{"type": "text", "text": "Returns are accepted within 30 days."}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 25, "output_tokens": 9},
		})
	}))
	defer srv.Close()

	result, err := newAdapter("sk-ant-test").Generate(context.Background(), requestFor(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	if gotKey != "sk-ant-test" {
		t.Fatalf("x-api-key = %q", gotKey)
	}
	if gotVersion != "2023-06-01" {
		t.Fatalf("anthropic-version = %q", gotVersion)
	}
	if captured.System != "You are a store assistant." {
		t.Fatalf("system prompt not in top-level field: %+v", captured)
	}
	for _, msg := range captured.Messages {
		if msg.Role == "system" {
			t.Fatal("system prompt must not appear in the messages array")
		}
	}
	if result.Content != "Returns are accepted within 30 days." || result.FinishReason != "end_turn" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Usage == nil || *result.Usage.TotalTokens != 34 {
		t.Fatalf("total tokens should be derived from input+output: %+v", result.Usage)
	}
}

func TestGenerateEmptyContentIsFormatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "claude-3-5-sonnet-20241022", "content": []any{}})
	}))
	defer srv.Close()

	_, err := newAdapter("sk-ant-test").Generate(context.Background(), requestFor(srv.URL))
	if !provider.IsKind(err, provider.KindResponseFormat) {
		t.Fatalf("expected response format error, got %v", err)
	}
}

func TestGenerateStreamContentBlockDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		events := []string{
			`{"type":"message_start"}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Returns "}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"accepted."}}`,
			`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
			`{"type":"message_stop"}`,
		}
		for _, event := range events {
			w.Write([]byte("data: " + event + "\n\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	chunks, err := newAdapter("sk-ant-test").GenerateStream(context.Background(), requestFor(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	var content, finish string
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatal(chunk.Err)
		}
		content += chunk.Delta
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	if content != "Returns accepted." {
		t.Fatalf("streamed content %q", content)
	}
	if finish != "end_turn" {
		t.Fatalf("finish reason %q", finish)
	}
}

func TestConnectionAuthFailureNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"type": "authentication_error", "message": "invalid x-api-key"}})
	}))
	defer srv.Close()

	status, err := newAdapter("sk-ant-bad").TestConnection(context.Background(), requestFor(srv.URL).Config)
	if err != nil {
		t.Fatal(err)
	}
	if status.Success {
		t.Fatal("expected failure")
	}
	if status.Message != "Authentication failed — check your API key" {
		t.Fatalf("message %q not normalized", status.Message)
	}
}
