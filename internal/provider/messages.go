package provider

import (
	"os"
	"strings"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
)

// ResolveKey prefers the decrypted stored key and falls back to the named
// environment variable for ad-hoc and test invocations without a stored
// configuration.
func ResolveKey(apiKey, envVar string) string {
	if strings.TrimSpace(apiKey) != "" {
		return apiKey
	}
	return os.Getenv(envVar)
}

// BuildMessages assembles the role-tagged message array most vendors accept:
// optional system prompt, bounded prior turns oldest-first, then the new
// user message.
func BuildMessages(req models.ChatRequest) []models.ConversationTurn {
	msgs := make([]models.ConversationTurn, 0, len(req.Context)+2)

	if strings.TrimSpace(req.Config.SystemPrompt) != "" {
		msgs = append(msgs, models.ConversationTurn{Role: "system", Content: req.Config.SystemPrompt})
	}
	msgs = append(msgs, req.Context...)
	msgs = append(msgs, models.ConversationTurn{Role: "user", Content: req.Message})

	return msgs
}

// FlattenPrompt renders the conversation as a single role-tagged prompt
// string for vendors that accept plain text instead of a message array.
func FlattenPrompt(req models.ChatRequest) string {
	var b strings.Builder

	if strings.TrimSpace(req.Config.SystemPrompt) != "" {
		b.WriteString("System: ")
		b.WriteString(req.Config.SystemPrompt)
		b.WriteString("\n")
	}
	for _, turn := range req.Context {
		switch turn.Role {
		case "user":
			b.WriteString("User: ")
		default:
			b.WriteString("Assistant: ")
		}
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(req.Message)
	b.WriteString("\nAssistant:")

	return b.String()
}
