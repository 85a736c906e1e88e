package history

import (
	"context"
	"sync"
)

// MemoryStore is the in-process TurnStore used by single-instance deployments
// and tests. Turns are kept in append order per session.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]StoredTurn
}

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]StoredTurn)}
}

func (s *MemoryStore) Append(ctx context.Context, turn StoredTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

func (s *MemoryStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]StoredTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[sessionID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}

	out := make([]StoredTurn, len(all))
	copy(out, all)
	return out, nil
}
