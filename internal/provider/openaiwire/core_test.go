package openaiwire

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
)

var testProfile = Profile{
	Type:         models.ProviderOpenAI,
	DisplayName:  "OpenAI",
	BaseURL:      "https://api.openai.example/v1",
	EnvVar:       "OPENAIWIRE_TEST_KEY_UNSET",
	DefaultModel: "gpt-4o-mini",
	ModelsPath:   "/models",
	StaticModels: []models.ModelInfo{{ID: "gpt-4o-mini", Name: "GPT-4o mini"}},
}

func testCore(apiKey string) *Core {
	client := provider.NewHTTPClient(5 * time.Second)
	return New(testProfile, apiKey, client, provider.NewStreamClient())
}

func requestFor(serverURL string) models.ChatRequest {
	return models.ChatRequest{
		Message: "What are your business hours?",
		Config: models.ProviderConfig{
			ProviderType: models.ProviderOpenAI,
			Model:        "gpt-4o",
			Temperature:  0.7,
			MaxTokens:    256,
			SystemPrompt: "You are a support assistant.",
			IsActive:     true,
			Advanced:     map[string]any{"base_url": serverURL},
		},
		Context: []models.ConversationTurn{
			{Role: "user", Content: "Hello"},
			{Role: "assistant", Content: "Hi! How can I help?"},
		},
	}
}

func TestGenerateSuccess(t *testing.T) {
	var captured chatPayload
	var authHeader string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-2024-08-06",
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": "We are open 9 to 5."},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 40, "completion_tokens": 8, "total_tokens": 48},
		})
	}))
	defer srv.Close()

	core := testCore("sk-test")
	result, err := core.Generate(context.Background(), requestFor(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	if authHeader != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", authHeader)
	}
	if !result.Success || result.Content != "We are open 9 to 5." {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.ModelUsed != "gpt-4o-2024-08-06" {
		t.Fatalf("ModelUsed = %q", result.ModelUsed)
	}
	if result.Usage == nil || *result.Usage.TotalTokens != 48 {
		t.Fatalf("usage not mapped: %+v", result.Usage)
	}

	// system prompt, two context turns, then the user message.
	if len(captured.Messages) != 4 {
		t.Fatalf("got %d wire messages, want 4", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "You are a support assistant." {
		t.Fatalf("first message = %+v", captured.Messages[0])
	}
	if captured.Messages[3].Role != "user" || captured.Messages[3].Content != "What are your business hours?" {
		t.Fatalf("last message = %+v", captured.Messages[3])
	}
	if captured.Model != "gpt-4o" || captured.Temperature != 0.7 || captured.MaxTokens != 256 {
		t.Fatalf("tuning not forwarded: %+v", captured)
	}
	if captured.Stream {
		t.Fatal("blocking request must not set stream")
	}
}

func TestGenerateMissingKeySkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	core := testCore("")
	_, err := core.Generate(context.Background(), requestFor(srv.URL))
	if !provider.IsKind(err, provider.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatal("missing key must fail before any network call")
	}
}

func TestGenerateUpstreamErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "Incorrect API key provided"}})
	}))
	defer srv.Close()

	core := testCore("sk-bad")
	_, err := core.Generate(context.Background(), requestFor(srv.URL))
	if !provider.IsKind(err, provider.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !provider.AuthFailure(err) {
		t.Fatalf("401 should classify as auth failure: %v", err)
	}
}

func TestGenerateEmptyChoicesIsFormatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "gpt-4o", "choices": []any{}})
	}))
	defer srv.Close()

	core := testCore("sk-test")
	_, err := core.Generate(context.Background(), requestFor(srv.URL))
	if !provider.IsKind(err, provider.KindResponseFormat) {
		t.Fatalf("expected response format error, got %v", err)
	}
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Message != "Invalid response format from OpenAI API" {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestGenerateStreamDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload chatPayload
		json.NewDecoder(r.Body).Decode(&payload)
		if !payload.Stream {
			t.Error("stream request must set stream=true")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		events := []string{
			`{"choices":[{"delta":{"content":"We are "}}]}`,
			`{"choices":[{"delta":{"content":"open 9 to 5."}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			"[DONE]",
		}
		for _, event := range events {
			w.Write([]byte("data: " + event + "\n\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	core := testCore("sk-test")
	chunks, err := core.GenerateStream(context.Background(), requestFor(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	var content string
	var finish string
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatal(chunk.Err)
		}
		content += chunk.Delta
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	if content != "We are open 9 to 5." {
		t.Fatalf("streamed content %q", content)
	}
	if finish != "stop" {
		t.Fatalf("finish reason %q", finish)
	}
}

func TestListModelsFallsBackToStaticCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	core := testCore("sk-test")
	cfg := requestFor(srv.URL).Config
	listed, err := core.ListModels(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != "gpt-4o-mini" {
		t.Fatalf("expected static catalog, got %+v", listed)
	}
}

func TestListModelsLiveCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "gpt-4o"}, {"id": "gpt-4o-mini"}},
		})
	}))
	defer srv.Close()

	core := testCore("sk-test")
	cfg := requestFor(srv.URL).Config
	listed, err := core.ListModels(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 || listed[0].ID != "gpt-4o" {
		t.Fatalf("unexpected catalog %+v", listed)
	}
}
