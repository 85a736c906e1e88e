package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/history"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/ratelimit"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/relay"
)

type chatRequest struct {
	SessionID        string `json:"session_id"`
	Message          string `json:"message"`
	ProviderType     string `json:"provider_type"`
	FallbackProvider string `json:"fallback_provider_type,omitempty"`
	Stream           bool   `json:"stream,omitempty"`
}

type providerTestRequest struct {
	ProviderType string `json:"provider_type"`
	APIKey       string `json:"api_key"`
	Model        string `json:"model,omitempty"`
}

type providerModelsRequest struct {
	ProviderType string `json:"provider_type"`
	APIKey       string `json:"api_key,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Message) == "" {
		return requestError{Status: http.StatusBadRequest, Message: "message is required", Type: "invalid_request_error"}
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return requestError{Status: http.StatusBadRequest, Message: "session_id is required", Type: "invalid_request_error"}
	}

	providerType, err := models.ParseProviderType(req.ProviderType)
	if err != nil {
		return requestError{Status: http.StatusBadRequest, Message: err.Error(), Type: "invalid_request_error"}
	}

	ctx := c.Request().Context()

	if err := s.checkRateLimit(ctx, c, req.SessionID); err != nil {
		return err
	}

	cfg, err := s.configs.ProviderConfig(ctx, providerType)
	if err != nil {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("provider %s is not configured", providerType),
			Type:    "invalid_request_error",
		}
	}

	turns, err := s.builder.Build(ctx, req.SessionID)
	if err != nil {
		slog.Error("context build failed", "session_id", req.SessionID, "error", err)
		turns = nil
	}
	// A per-provider context_window narrows the configured default.
	if n, ok := cfg.AdvancedInt("context_window"); ok && n >= 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	stream := req.Stream
	if !stream {
		if b, ok := cfg.AdvancedBool("stream_response"); ok {
			stream = b
		}
	}

	uniform := models.ChatRequest{
		Message: req.Message,
		Config:  cfg,
		Context: turns,
		Stream:  stream,
	}
	// A request-level fallback wins; otherwise the configured per-provider
	// default applies.
	fallbackName := req.FallbackProvider
	if fallbackName == "" {
		fallbackName = s.cfg.Chat.Fallbacks[providerType.String()]
	}
	if fallbackName != "" {
		fallback, err := models.ParseProviderType(fallbackName)
		if err != nil {
			return requestError{Status: http.StatusBadRequest, Message: err.Error(), Type: "invalid_request_error"}
		}
		uniform.Fallback = fallback
	}

	if stream {
		return s.streamChat(c, uniform)
	}

	result, err := s.gateway.Process(ctx, uniform)
	if err != nil {
		return chatFailure(c, err)
	}

	s.persistExchange(ctx, req.SessionID, req.Message, result.Content)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) streamChat(c echo.Context, req models.ChatRequest) error {
	fw, err := relay.NewHTTPFrameWriter(c.Response().Writer)
	if err != nil {
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
			Type:    "server_error",
		}
	}

	// Errors surfacing mid-stream have already been written as error frames;
	// the response status is committed by then.
	if err := s.gateway.Stream(c.Request().Context(), req, fw); err != nil {
		return nil
	}
	return nil
}

func (s *Server) handleProviderTest(c echo.Context) error {
	var req providerTestRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	providerType, err := models.ParseProviderType(req.ProviderType)
	if err != nil {
		return requestError{Status: http.StatusBadRequest, Message: err.Error(), Type: "invalid_request_error"}
	}

	status, err := s.gateway.TestConnection(c.Request().Context(), providerType, req.APIKey, req.Model)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleProviderModels(c echo.Context) error {
	var req providerModelsRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	providerType, err := models.ParseProviderType(req.ProviderType)
	if err != nil {
		return requestError{Status: http.StatusBadRequest, Message: err.Error(), Type: "invalid_request_error"}
	}

	listed, err := s.gateway.ListModels(c.Request().Context(), providerType, req.APIKey)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"provider": providerType,
		"models":   listed,
	})
}

// checkRateLimit admits or rejects the request under the per-client sliding
// window. Rejections carry the seconds until the window clears.
func (s *Server) checkRateLimit(ctx context.Context, c echo.Context, sessionID string) error {
	decision, err := s.limiter.Allow(ctx, ratelimit.Key(c.RealIP(), sessionID))
	if err != nil {
		// A broken limiter backend must not take the chat path down.
		slog.Error("rate limiter unavailable", "error", err)
		return nil
	}
	if decision.Allowed {
		return nil
	}

	seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	return toHTTPError(provider.NewError(provider.KindRateLimited, "",
		fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds)))
}

// persistExchange records the user and assistant turns after a successful
// blocking exchange. Persistence failures are logged, not surfaced; the
// reply has already been produced.
func (s *Server) persistExchange(ctx context.Context, sessionID, userMessage, reply string) {
	if s.turns == nil {
		return
	}

	now := time.Now()
	pairs := []history.StoredTurn{
		{ID: uuid.NewString(), SessionID: sessionID, Sender: "user", Content: userMessage, CreatedAt: now},
		{ID: uuid.NewString(), SessionID: sessionID, Sender: "assistant", Content: reply, CreatedAt: now.Add(time.Millisecond)},
	}
	for _, turn := range pairs {
		if err := s.turns.Append(ctx, turn); err != nil {
			slog.Error("turn persistence failed", "session_id", sessionID, "error", err)
			return
		}
	}
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Type:    "invalid_request_error",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
			Type:    "invalid_request_error",
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Type:    "invalid_request_error",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
	Type    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	return c.JSON(status, payload)
}

func gatewayErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = writeError(c, he.Code, fmt.Sprintf("%v", he.Message), "invalid_request_error")
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error", "server_error")
}

// chatFailure renders a failed provider call as the uniform result body, so
// widget clients parse one shape for both outcomes. The HTTP status still
// reflects the failure class.
func chatFailure(c echo.Context, err error) error {
	reqErr, ok := toHTTPError(err).(requestError)
	if !ok {
		return toHTTPError(err)
	}
	kind := provider.KindOf(err)
	if kind == "" {
		kind = provider.KindUpstream
	}
	return c.JSON(reqErr.Status, models.FailedResult(string(kind), reqErr.Message))
}

// toHTTPError maps a typed provider failure to the caller-facing error.
// End users never see vendor error bodies; operators get the detail from
// the gateway's structured logs.
func toHTTPError(err error) error {
	switch provider.KindOf(err) {
	case provider.KindNotSupported:
		return requestError{Status: http.StatusBadRequest, Message: err.Error(), Type: "invalid_request_error"}
	case provider.KindInactive:
		return requestError{Status: http.StatusBadRequest, Message: err.Error(), Type: "invalid_request_error"}
	case provider.KindConfiguration:
		return requestError{Status: http.StatusBadRequest, Message: "provider is not configured: missing API key", Type: "configuration_error"}
	case provider.KindRateLimited:
		return requestError{Status: http.StatusTooManyRequests, Message: provider.UserMessage(err), Type: "rate_limit_error"}
	case provider.KindDecryption:
		return requestError{Status: http.StatusInternalServerError, Message: provider.UserMessage(err), Type: "server_error"}
	case provider.KindUpstream, provider.KindResponseFormat:
		return requestError{Status: http.StatusBadGateway, Message: provider.UserMessage(err), Type: "upstream_error"}
	default:
		return requestError{Status: http.StatusInternalServerError, Message: provider.UserMessage(err), Type: "server_error"}
	}
}
