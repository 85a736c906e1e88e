// Package relay normalizes heterogeneous vendor streaming into one
// client-facing SSE format: a sequence of `data: <json>` frames terminated by
// a single `data: [DONE]` sentinel, or a `data: {"error": ...}` frame on
// failure. Vendors with native token streams are forwarded frame by frame;
// the rest get their complete response sliced into fixed-size pieces with a
// small delay so the perceived experience is comparable.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
)

const (
	sentinel = "[DONE]"

	// DefaultChunkSize and DefaultChunkDelay shape simulated streams.
	// Chunk size is measured in characters, not bytes.
	DefaultChunkSize  = 10
	DefaultChunkDelay = 30 * time.Millisecond
)

// FrameWriter emits one SSE frame at a time. Implementations must flush on
// every frame; buffering a stream defeats its purpose.
type FrameWriter interface {
	WriteFrame(data []byte) error
}

// Relay drives one client-facing stream.
type Relay struct {
	chunkSize  int
	chunkDelay time.Duration
}

// New builds a relay. Non-positive parameters select the defaults.
func New(chunkSize int, chunkDelay time.Duration) *Relay {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkDelay <= 0 {
		chunkDelay = DefaultChunkDelay
	}
	return &Relay{chunkSize: chunkSize, chunkDelay: chunkDelay}
}

// Run streams the adapter's response to fw. It reports whether any frame
// reached the client: a failure before the first frame leaves the stream
// unopened, so the caller may still switch to a fallback provider. After the
// first frame, errors surface as an error frame and the stream is done.
// Client disconnects arrive through ctx and stop the loop, which releases
// the vendor connection.
func (r *Relay) Run(ctx context.Context, fw FrameWriter, adapter provider.Adapter, req models.ChatRequest) (bool, error) {
	if streamer, ok := adapter.(provider.Streamer); ok && adapter.SupportsNativeStreaming() {
		return r.runNative(ctx, fw, streamer, req)
	}
	return r.runSimulated(ctx, fw, adapter, req)
}

func (r *Relay) runNative(ctx context.Context, fw FrameWriter, streamer provider.Streamer, req models.ChatRequest) (bool, error) {
	chunks, err := streamer.GenerateStream(ctx, req)
	if err != nil {
		return false, err
	}

	wrote := false
	for {
		select {
		case <-ctx.Done():
			return wrote, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return wrote, r.writeSentinel(fw)
			}
			if chunk.Err != nil {
				if wrote {
					r.WriteError(fw, provider.UserMessage(chunk.Err))
					return true, chunk.Err
				}
				return false, chunk.Err
			}
			if chunk.Delta != "" {
				if err := r.writeContent(fw, chunk.Delta); err != nil {
					return wrote, err
				}
				wrote = true
			}
		}
	}
}

func (r *Relay) runSimulated(ctx context.Context, fw FrameWriter, adapter provider.Adapter, req models.ChatRequest) (bool, error) {
	result, err := adapter.Generate(ctx, req)
	if err != nil {
		return false, err
	}

	// Chunk boundaries fall on runes, never inside a multi-byte character.
	wrote := false
	content := []rune(result.Content)
	for start := 0; start < len(content); start += r.chunkSize {
		if ctx.Err() != nil {
			return wrote, ctx.Err()
		}

		end := min(start+r.chunkSize, len(content))
		if err := r.writeContent(fw, string(content[start:end])); err != nil {
			return wrote, err
		}
		wrote = true

		if end < len(content) {
			select {
			case <-time.After(r.chunkDelay):
			case <-ctx.Done():
				return wrote, ctx.Err()
			}
		}
	}

	return wrote, r.writeSentinel(fw)
}

func (r *Relay) writeContent(fw FrameWriter, delta string) error {
	payload, err := json.Marshal(map[string]string{"content": delta})
	if err != nil {
		return fmt.Errorf("marshal stream chunk: %w", err)
	}
	return fw.WriteFrame(payload)
}

func (r *Relay) writeSentinel(fw FrameWriter) error {
	return fw.WriteFrame([]byte(sentinel))
}

// WriteError emits the uniform error frame. Failures to write are ignored;
// the client is usually already gone.
func (r *Relay) WriteError(fw FrameWriter, message string) {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return
	}
	_ = fw.WriteFrame(payload)
}

// HTTPFrameWriter frames SSE over a standard response writer, flushing after
// every frame.
type HTTPFrameWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewHTTPFrameWriter prepares the response for SSE delivery. It fails when
// the writer cannot flush, since an unflushable stream would buffer whole.
func NewHTTPFrameWriter(w http.ResponseWriter) (*HTTPFrameWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &HTTPFrameWriter{w: w, flusher: flusher}, nil
}

func (h *HTTPFrameWriter) WriteFrame(data []byte) error {
	if _, err := fmt.Fprintf(h.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE frame: %w", err)
	}
	h.flusher.Flush()
	return nil
}
