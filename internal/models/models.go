package models

import (
	"fmt"
	"strings"
	"time"
)

// ProviderType identifies one of the supported chat-completion vendors.
type ProviderType string

const (
	ProviderOpenAI      ProviderType = "openai"
	ProviderClaude      ProviderType = "claude"
	ProviderGemini      ProviderType = "gemini"
	ProviderMistral     ProviderType = "mistral"
	ProviderGrok        ProviderType = "grok"
	ProviderGroq        ProviderType = "groq"
	ProviderOpenRouter  ProviderType = "openrouter"
	ProviderDeepSeek    ProviderType = "deepseek"
	ProviderHuggingFace ProviderType = "huggingface"
)

// AllProviderTypes lists every supported provider in a stable order.
func AllProviderTypes() []ProviderType {
	return []ProviderType{
		ProviderOpenAI,
		ProviderClaude,
		ProviderGemini,
		ProviderMistral,
		ProviderGrok,
		ProviderGroq,
		ProviderOpenRouter,
		ProviderDeepSeek,
		ProviderHuggingFace,
	}
}

// ParseProviderType normalises and validates a provider type string.
func ParseProviderType(s string) (ProviderType, error) {
	t := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unsupported provider type %q", s)
	}
	return t, nil
}

// Valid reports whether the provider type is one of the supported vendors.
func (t ProviderType) Valid() bool {
	switch t {
	case ProviderOpenAI, ProviderClaude, ProviderGemini, ProviderMistral,
		ProviderGrok, ProviderGroq, ProviderOpenRouter, ProviderDeepSeek,
		ProviderHuggingFace:
		return true
	}
	return false
}

func (t ProviderType) String() string {
	return string(t)
}

// ProviderConfig is one configured vendor connection. It is created and
// maintained by the CRUD layer and read-only here. EncryptedKey holds the
// vault ciphertext and must never appear in logs or error messages.
type ProviderConfig struct {
	ProviderType ProviderType
	EncryptedKey string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	Advanced     map[string]any
	IsActive     bool
}

// Validate performs range checks on the tunable fields.
func (c ProviderConfig) Validate() error {
	if !c.ProviderType.Valid() {
		return fmt.Errorf("unsupported provider type %q", string(c.ProviderType))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0,2]", c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 32000 {
		return fmt.Errorf("max_tokens %d out of range [1,32000]", c.MaxTokens)
	}
	return nil
}

// ConversationTurn is one prior exchange unit supplied for continuity.
// Only role and content ever cross the provider boundary.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the uniform request handed to the gateway.
type ChatRequest struct {
	Message  string
	Config   ProviderConfig
	Context  []ConversationTurn
	Stream   bool
	Fallback ProviderType
}

// TokenUsage records token accounting as reported by the vendor. Not every
// vendor reports every counter, hence the pointer fields.
type TokenUsage struct {
	PromptTokens     *int `json:"prompt_tokens,omitempty"`
	CompletionTokens *int `json:"completion_tokens,omitempty"`
	TotalTokens      *int `json:"total_tokens,omitempty"`
}

// ChatResult is the normalized outcome of one provider call. Exactly one of
// Content (success) or ErrKind (failure) is populated.
type ChatResult struct {
	Success        bool        `json:"success"`
	Content        string      `json:"content,omitempty"`
	ModelUsed      string      `json:"model_used,omitempty"`
	ResponseTimeMs float64     `json:"response_time_ms"`
	Usage          *TokenUsage `json:"usage,omitempty"`
	FinishReason   string      `json:"finish_reason,omitempty"`
	ErrKind        string      `json:"error_kind,omitempty"`
	ErrMessage     string      `json:"error,omitempty"`
}

// FailedResult builds the failure shape of ChatResult: Success stays false,
// Content stays empty and the error fields carry the classification and the
// user-safe message.
func FailedResult(kind, message string) ChatResult {
	return ChatResult{ErrKind: kind, ErrMessage: message}
}

// ModelInfo describes one model offered by a provider.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ConnectionStatus is the outcome of a test-connection probe.
type ConnectionStatus struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	Provider ProviderType `json:"provider"`
	Model    string       `json:"model,omitempty"`
}

// IntPtr is a convenience for optional usage counters.
func IntPtr(v int) *int { return &v }

// Elapsed converts a duration into fractional milliseconds for ChatResult.
func Elapsed(since time.Duration) float64 {
	return float64(since.Nanoseconds()) / 1e6
}
