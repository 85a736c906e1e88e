// Package history shapes persisted conversation turns into the bounded
// context window supplied to providers. The message log itself belongs to
// the platform's CRUD layer; this package consumes it through the TurnSource
// port.
package history

import (
	"context"
	"time"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/models"
)

// DefaultMaxTurns bounds the context window when no override is configured.
const DefaultMaxTurns = 10

// StoredTurn is one persisted message as the external log records it.
type StoredTurn struct {
	ID        string
	SessionID string
	Sender    string
	Content   string
	CreatedAt time.Time
}

// TurnSource is the read port over the external message log.
type TurnSource interface {
	// RecentTurns returns up to limit most recent turns for the session,
	// oldest-first.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]StoredTurn, error)
}

// TurnStore extends the source with the persistence sink used after a
// successful exchange.
type TurnStore interface {
	TurnSource
	Append(ctx context.Context, turn StoredTurn) error
}

// Builder assembles provider-facing context windows.
type Builder struct {
	source   TurnSource
	maxTurns int
}

// NewBuilder wires a builder over the given source. maxTurns <= 0 selects
// the default window.
func NewBuilder(source TurnSource, maxTurns int) *Builder {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Builder{source: source, maxTurns: maxTurns}
}

// Build fetches the bounded window for a session. Stored sender designations
// map to provider roles ("user" stays user, anything else becomes assistant)
// and only role and content survive; timestamps and IDs never reach the
// provider payload.
func (b *Builder) Build(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	stored, err := b.source.RecentTurns(ctx, sessionID, b.maxTurns)
	if err != nil {
		return nil, err
	}

	turns := make([]models.ConversationTurn, 0, len(stored))
	for _, s := range stored {
		role := "assistant"
		if s.Sender == "user" {
			role = "user"
		}
		turns = append(turns, models.ConversationTurn{Role: role, Content: s.Content})
	}
	return turns, nil
}
