// Package provider defines the uniform adapter contract that all nine vendor
// integrations implement, along with the shared error taxonomy and the
// retrying HTTP transport they post through.
package provider

import (
	"context"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
)

// Adapter is the uniform contract over one vendor API. Instances are
// constructed fresh per request and hold no cross-request state.
type Adapter interface {
	// Type returns the provider type this adapter serves.
	Type() models.ProviderType

	// SupportsNativeStreaming reports whether the vendor produces a true
	// incremental token stream. The streaming relay synthesizes chunked
	// delivery for adapters that return false.
	SupportsNativeStreaming() bool

	// Generate performs a blocking completion call and returns the
	// normalized result. Fails with KindConfiguration before any network
	// activity when no API key is available, KindUpstream on non-2xx
	// vendor responses and KindResponseFormat when the 2xx envelope lacks
	// the expected content path.
	Generate(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error)

	// TestConnection sends a minimal request and reports reachability.
	// Vendor authentication failures are normalized and never echoed.
	TestConnection(ctx context.Context, cfg models.ProviderConfig) (*models.ConnectionStatus, error)

	// ListModels returns the models this provider offers. Vendors without
	// a listing endpoint serve a static catalog.
	ListModels(ctx context.Context, cfg models.ProviderConfig) ([]models.ModelInfo, error)
}

// Chunk is one incremental piece of a streamed completion. A closed channel
// with no Err chunk signals normal termination.
type Chunk struct {
	Delta        string
	FinishReason string
	Err          error
}

// Streamer is implemented by adapters whose vendor offers native streaming.
// The returned channel is closed when the vendor stream ends; the producer
// goroutine honours ctx cancellation and releases the vendor connection.
type Streamer interface {
	Adapter
	GenerateStream(ctx context.Context, req models.ChatRequest) (<-chan Chunk, error)
}
