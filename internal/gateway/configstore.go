package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
)

// MemoryConfigStore is an in-process ConfigSource. Provider configuration
// records are owned by the external CRUD layer; this store stands in for it
// in single-instance deployments and tests, seeded at startup.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[models.ProviderType]models.ProviderConfig
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{configs: make(map[models.ProviderType]models.ProviderConfig)}
}

// Upsert validates and stores one provider configuration record.
func (s *MemoryConfigStore) Upsert(cfg models.ProviderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ProviderType] = cfg
	return nil
}

// ProviderConfig returns the stored record for the given provider type.
func (s *MemoryConfigStore) ProviderConfig(ctx context.Context, t models.ProviderType) (models.ProviderConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[t]
	if !ok {
		return models.ProviderConfig{}, fmt.Errorf("no configuration for provider %s", t)
	}
	return cfg, nil
}
