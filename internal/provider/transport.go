package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "ai-widget-gateway/0.1"

	defaultHTTPTimeout     = 45 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second

	maxRetryAttempts = 3
	retryBackoff     = 500 * time.Millisecond

	maxErrorBodyBytes = 64 * 1024
)

// NewHTTPClient builds the client used for blocking vendor calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(),
	}
}

// NewStreamClient builds the client used for long-lived SSE responses.
// It carries no overall timeout; cancellation comes from the request context.
func NewStreamClient() *http.Client {
	return &http.Client{
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// PostJSON sends payload to url with the given headers, retrying transient
// failures. The retry policy is shared by every adapter: up to three attempts
// with a fixed backoff, only for network errors, 5xx and vendor 429s. Other
// 4xx responses are returned on the first attempt. The caller owns the
// response body.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		req, err := newJSONRequest(ctx, url, headers, body)
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err == nil {
			if !retryableStatus(resp.StatusCode) || attempt == maxRetryAttempts {
				return resp, nil
			}
			// Drain before retrying so the connection can be reused.
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
			resp.Body.Close()
			lastErr = fmt.Errorf("upstream status %d", resp.StatusCode)
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if attempt == maxRetryAttempts {
				break
			}
		}

		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetryAttempts, lastErr)
}

// PostJSONStream sends payload and returns the open response for SSE reading.
// Streaming requests are never retried; a half-delivered stream cannot be
// transparently replayed.
func PostJSONStream(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := newJSONRequest(ctx, url, headers, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	return client.Do(req)
}

// GetJSON issues a GET with the given headers, without retries.
func GetJSON(ctx context.Context, client *http.Client, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return client.Do(req)
}

func newJSONRequest(ctx context.Context, url string, headers map[string]string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DecodeJSON decodes a vendor response body into target.
func DecodeJSON(reader io.Reader, target any) error {
	if err := json.NewDecoder(reader).Decode(target); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// UpstreamError turns a non-2xx vendor response into a typed failure,
// capturing a bounded slice of the body for operator logs.
func UpstreamError(providerType models.ProviderType, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	message := fmt.Sprintf("upstream status %d", resp.StatusCode)
	if detail := vendorErrorMessage(body); detail != "" {
		message = fmt.Sprintf("upstream status %d: %s", resp.StatusCode, detail)
	}

	return &Error{
		Kind:     KindUpstream,
		Provider: providerType,
		Message:  message,
		Status:   resp.StatusCode,
	}
}

// vendorErrorMessage extracts the error text from the common vendor error
// envelopes: {"error":{"message":...}} and {"error":"..."}.
func vendorErrorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Error != "" {
		return flat.Error
	}

	return strings.TrimSpace(string(body))
}

// AuthFailure reports whether a typed failure indicates bad credentials.
func AuthFailure(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Kind == KindUpstream && (pe.Status == http.StatusUnauthorized || pe.Status == http.StatusForbidden)
}

// TestOutcome converts a probe error into the uniform connection status.
// Authentication failures are normalized so raw vendor error bodies never
// reach the dashboard.
func TestOutcome(providerType models.ProviderType, model string, err error) *models.ConnectionStatus {
	status := &models.ConnectionStatus{
		Provider: providerType,
		Model:    model,
	}

	switch {
	case err == nil:
		status.Success = true
		status.Message = "Connection successful"
	case AuthFailure(err):
		status.Message = "Authentication failed — check your API key"
	case IsKind(err, KindConfiguration):
		status.Message = "Provider is not configured: missing API key"
	default:
		status.Message = "Unable to reach the provider. Please try again later."
	}

	return status
}
