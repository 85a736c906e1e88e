package provider

import (
	"errors"
	"fmt"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
)

// Kind classifies a gateway failure. Callers branch on the kind rather than
// string-matching error text.
type Kind string

const (
	KindConfiguration  Kind = "configuration_error"
	KindNotSupported   Kind = "provider_not_supported"
	KindInactive       Kind = "provider_inactive"
	KindUpstream       Kind = "upstream_error"
	KindResponseFormat Kind = "response_format_error"
	KindRateLimited    Kind = "rate_limit_exceeded"
	KindDecryption     Kind = "decryption_error"
)

// Error is the typed failure returned by adapters and the gateway.
type Error struct {
	Kind     Kind
	Provider models.ProviderType
	Message  string
	Status   int // upstream HTTP status, when applicable
	Err      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError constructs a typed failure for the given provider.
func NewError(kind Kind, provider models.ProviderType, message string) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message}
}

// WrapError attaches a cause to a typed failure.
func WrapError(kind Kind, provider models.ProviderType, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, Err: cause}
}

// KindOf extracts the failure kind, or "" for untyped errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FallbackEligible reports whether a failure justifies switching to the
// configured fallback provider. Only upstream and response-shape failures
// qualify: a rejected request, a bad key or a local rate limit would fail
// the same way anywhere, or must be terminal.
func FallbackEligible(err error) bool {
	switch KindOf(err) {
	case KindUpstream, KindResponseFormat:
		return true
	}
	return false
}

// UserMessage maps a failure to the non-leaking message shown to end users.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindRateLimited:
		var pe *Error
		errors.As(err, &pe)
		return pe.Message
	case KindConfiguration:
		return "The AI provider is not configured correctly. Please contact support."
	default:
		return "Sorry, I encountered an error processing your request. Please try again."
	}
}
