package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
)

// DefaultCatalogTTL matches the discovery contract: entries live one hour.
const DefaultCatalogTTL = time.Hour

// ModelCatalog caches per-credential model listings. Entries are created
// lazily on the first discovery request and evicted on expiry; check-then-set
// is serialized under one mutex so concurrent discovery for the same key
// cannot interleave.
type ModelCatalog struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]catalogEntry
}

type catalogEntry struct {
	models    []models.ModelInfo
	expiresAt time.Time
}

// NewModelCatalog builds an empty catalog with the given TTL.
func NewModelCatalog(ttl time.Duration) *ModelCatalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &ModelCatalog{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]catalogEntry),
	}
}

// WithClock overrides the time source, for tests.
func (c *ModelCatalog) WithClock(now func() time.Time) *ModelCatalog {
	c.now = now
	return c
}

// Get returns the cached listing for (provider, key) when still fresh.
// Expired entries are evicted on access.
func (c *ModelCatalog) Get(t models.ProviderType, apiKey string) ([]models.ModelInfo, bool) {
	key := catalogKey(t, apiKey)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	out := make([]models.ModelInfo, len(entry.models))
	copy(out, entry.models)
	return out, true
}

// Put stores a fresh listing for (provider, key).
func (c *ModelCatalog) Put(t models.ProviderType, apiKey string, list []models.ModelInfo) {
	stored := make([]models.ModelInfo, len(list))
	copy(stored, list)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[catalogKey(t, apiKey)] = catalogEntry{
		models:    stored,
		expiresAt: c.now().Add(c.ttl),
	}
}

// catalogKey hashes the credential so raw keys never sit in the cache map.
func catalogKey(t models.ProviderType, apiKey string) string {
	sum := sha256.Sum256([]byte(string(t) + "\x00" + apiKey))
	return hex.EncodeToString(sum[:])
}
