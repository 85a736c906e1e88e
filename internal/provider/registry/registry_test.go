package registry

import (
	"testing"
	"time"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/provider"
)

func testRegistry() *Registry {
	return New(provider.NewHTTPClient(5*time.Second), provider.NewStreamClient())
}

func activeConfig(pt models.ProviderType) models.ProviderConfig {
	return models.ProviderConfig{ProviderType: pt, IsActive: true}
}

func TestResolveEveryVendor(t *testing.T) {
	r := testRegistry()
	for _, pt := range models.AllProviderTypes() {
		adapter, err := r.Resolve(activeConfig(pt), "sk-test")
		if err != nil {
			t.Fatalf("%s: %v", pt, err)
		}
		if adapter.Type() != pt {
			t.Fatalf("%s: adapter reports type %s", pt, adapter.Type())
		}
	}
}

func TestResolveUnknownType(t *testing.T) {
	r := testRegistry()
	_, err := r.Resolve(activeConfig(models.ProviderType("cohere")), "sk-test")
	if !provider.IsKind(err, provider.KindNotSupported) {
		t.Fatalf("expected not_supported, got %v", err)
	}
}

func TestResolveInactiveConfig(t *testing.T) {
	r := testRegistry()
	cfg := activeConfig(models.ProviderOpenAI)
	cfg.IsActive = false
	_, err := r.Resolve(cfg, "sk-test")
	if !provider.IsKind(err, provider.KindInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}
}

func TestStreamingCapabilityPerVendor(t *testing.T) {
	r := testRegistry()
	native := map[models.ProviderType]bool{
		models.ProviderOpenAI:      true,
		models.ProviderClaude:      true,
		models.ProviderGemini:      false,
		models.ProviderMistral:     true,
		models.ProviderGrok:        true,
		models.ProviderGroq:        true,
		models.ProviderOpenRouter:  true,
		models.ProviderDeepSeek:    true,
		models.ProviderHuggingFace: false,
	}
	for pt, want := range native {
		adapter, err := r.Resolve(activeConfig(pt), "sk-test")
		if err != nil {
			t.Fatalf("%s: %v", pt, err)
		}
		if adapter.SupportsNativeStreaming() != want {
			t.Fatalf("%s: SupportsNativeStreaming() = %v, want %v", pt, adapter.SupportsNativeStreaming(), want)
		}
		if want {
			if _, ok := adapter.(provider.Streamer); !ok {
				t.Fatalf("%s: advertises native streaming but is not a Streamer", pt)
			}
		}
	}
}
