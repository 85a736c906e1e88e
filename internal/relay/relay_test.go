package relay

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
)

// captureWriter records every frame the relay emits.
type captureWriter struct {
	frames []string
}

func (c *captureWriter) WriteFrame(data []byte) error {
	c.frames = append(c.frames, string(data))
	return nil
}

// nativeAdapter scripts a vendor with a true token stream.
type nativeAdapter struct {
	deltas []string
	err    error
}

func (n *nativeAdapter) Type() models.ProviderType     { return models.ProviderOpenAI }
func (n *nativeAdapter) SupportsNativeStreaming() bool { return true }

func (n *nativeAdapter) Generate(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	return nil, provider.NewError(provider.KindUpstream, models.ProviderOpenAI, "blocking path not scripted")
}

func (n *nativeAdapter) GenerateStream(ctx context.Context, req models.ChatRequest) (<-chan provider.Chunk, error) {
	out := make(chan provider.Chunk, len(n.deltas)+1)
	for _, delta := range n.deltas {
		out <- provider.Chunk{Delta: delta}
	}
	if n.err != nil {
		out <- provider.Chunk{Err: n.err}
	}
	close(out)
	return out, nil
}

func (n *nativeAdapter) TestConnection(ctx context.Context, cfg models.ProviderConfig) (*models.ConnectionStatus, error) {
	return provider.TestOutcome(models.ProviderOpenAI, cfg.Model, nil), nil
}

func (n *nativeAdapter) ListModels(ctx context.Context, cfg models.ProviderConfig) ([]models.ModelInfo, error) {
	return nil, nil
}

// blockingAdapter scripts a vendor without native streaming.
type blockingAdapter struct {
	content string
	err     error
}

func (b *blockingAdapter) Type() models.ProviderType     { return models.ProviderGemini }
func (b *blockingAdapter) SupportsNativeStreaming() bool { return false }

func (b *blockingAdapter) Generate(ctx context.Context, req models.ChatRequest) (*models.ChatResult, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &models.ChatResult{Success: true, Content: b.content, ModelUsed: "gemini-1.5-flash"}, nil
}

func (b *blockingAdapter) TestConnection(ctx context.Context, cfg models.ProviderConfig) (*models.ConnectionStatus, error) {
	return provider.TestOutcome(models.ProviderGemini, cfg.Model, nil), nil
}

func (b *blockingAdapter) ListModels(ctx context.Context, cfg models.ProviderConfig) ([]models.ModelInfo, error) {
	return nil, nil
}

func contentOf(t *testing.T, frame string) string {
	t.Helper()
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(frame), &payload); err != nil {
		t.Fatalf("frame %q is not JSON: %v", frame, err)
	}
	return payload.Content
}

func TestNativeStreamEndsWithSingleSentinel(t *testing.T) {
	fw := &captureWriter{}
	r := New(0, time.Millisecond)

	wrote, err := r.Run(context.Background(), fw, &nativeAdapter{deltas: []string{"Hel", "lo ", "world"}}, models.ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if !wrote {
		t.Fatal("expected frames to be written")
	}

	sentinels := 0
	for _, frame := range fw.frames {
		if frame == "[DONE]" {
			sentinels++
		}
	}
	if sentinels != 1 {
		t.Fatalf("got %d sentinel frames, want exactly 1", sentinels)
	}
	if fw.frames[len(fw.frames)-1] != "[DONE]" {
		t.Fatalf("final frame is %q, want the sentinel", fw.frames[len(fw.frames)-1])
	}

	var assembled strings.Builder
	for _, frame := range fw.frames[:len(fw.frames)-1] {
		assembled.WriteString(contentOf(t, frame))
	}
	if assembled.String() != "Hello world" {
		t.Fatalf("reassembled content %q, want %q", assembled.String(), "Hello world")
	}
}

func TestSimulatedStreamChunksFixedSize(t *testing.T) {
	fw := &captureWriter{}
	r := New(10, time.Millisecond)
	content := "This response is exactly forty-two chars!!"

	wrote, err := r.Run(context.Background(), fw, &blockingAdapter{content: content}, models.ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if !wrote {
		t.Fatal("expected frames to be written")
	}

	// 42 characters in 10-char slices -> 5 content frames plus the sentinel.
	if len(fw.frames) != 6 {
		t.Fatalf("got %d frames, want 6", len(fw.frames))
	}
	var assembled strings.Builder
	for _, frame := range fw.frames[:5] {
		piece := contentOf(t, frame)
		if len(piece) > 10 {
			t.Fatalf("chunk %q exceeds the configured size", piece)
		}
		assembled.WriteString(piece)
	}
	if assembled.String() != content {
		t.Fatalf("reassembled %q, want %q", assembled.String(), content)
	}
	if fw.frames[5] != "[DONE]" {
		t.Fatal("expected trailing sentinel")
	}
}

func TestSimulatedStreamKeepsMultiByteRunesIntact(t *testing.T) {
	fw := &captureWriter{}
	r := New(10, time.Millisecond)
	content := "こんにちは、本日は営業時間のご案内です。"

	wrote, err := r.Run(context.Background(), fw, &blockingAdapter{content: content}, models.ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if !wrote {
		t.Fatal("expected frames to be written")
	}

	// 20 characters in 10-char slices -> 2 content frames plus the sentinel.
	if len(fw.frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(fw.frames))
	}
	var assembled strings.Builder
	for _, frame := range fw.frames[:2] {
		piece := contentOf(t, frame)
		if !utf8.ValidString(piece) || strings.ContainsRune(piece, utf8.RuneError) {
			t.Fatalf("chunk %q carries a broken character", piece)
		}
		if n := utf8.RuneCountInString(piece); n > 10 {
			t.Fatalf("chunk %q carries %d characters, want at most 10", piece, n)
		}
		assembled.WriteString(piece)
	}
	if assembled.String() != content {
		t.Fatalf("reassembled %q, want %q", assembled.String(), content)
	}
}

func TestPreStreamFailureWritesNoFrames(t *testing.T) {
	fw := &captureWriter{}
	r := New(0, 0)
	upstreamErr := provider.NewError(provider.KindUpstream, models.ProviderGemini, "upstream status 503")

	wrote, err := r.Run(context.Background(), fw, &blockingAdapter{err: upstreamErr}, models.ChatRequest{Message: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if wrote {
		t.Fatal("no frames should be written before the stream opens")
	}
	if len(fw.frames) != 0 {
		t.Fatalf("got %d frames, want 0", len(fw.frames))
	}
}

func TestMidStreamFailureEmitsErrorFrameNotSentinel(t *testing.T) {
	fw := &captureWriter{}
	r := New(0, time.Millisecond)
	upstreamErr := provider.NewError(provider.KindUpstream, models.ProviderOpenAI, "stream read failed")

	wrote, err := r.Run(context.Background(), fw, &nativeAdapter{deltas: []string{"partial "}, err: upstreamErr}, models.ChatRequest{Message: "hi"})
	if err == nil {
		t.Fatal("expected mid-stream error to surface")
	}
	if !wrote {
		t.Fatal("expected the partial frame to have been written")
	}

	last := fw.frames[len(fw.frames)-1]
	var payload struct {
		Error string `json:"error"`
	}
	if jsonErr := json.Unmarshal([]byte(last), &payload); jsonErr != nil || payload.Error == "" {
		t.Fatalf("final frame %q is not an error frame", last)
	}
	for _, frame := range fw.frames {
		if frame == "[DONE]" {
			t.Fatal("failed stream must not emit the sentinel")
		}
	}
}

func TestClientDisconnectStopsSimulatedStream(t *testing.T) {
	fw := &captureWriter{}
	r := New(1, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, fw, &blockingAdapter{content: "irrelevant"}, models.ChatRequest{Message: "hi"})
	if err == nil {
		t.Fatal("expected cancellation to surface")
	}
	for _, frame := range fw.frames {
		if frame == "[DONE]" {
			t.Fatal("cancelled stream must not emit the sentinel")
		}
	}
}
