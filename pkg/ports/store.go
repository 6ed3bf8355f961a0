package ports

import (
	"context"

	"github.com/appsail/convo/pkg/domain"
)

// PutOptions qualifies a state write.
type PutOptions struct {
	// Renewal marks a write to a conversation that already existed.
	// A renewal keeps the current expiry unless the store extends on write.
	Renewal bool

	// CheckVersion rejects the write with domain.ErrVersionConflict when the
	// stored version differs from state.Version.
	CheckVersion bool
}

// StateStore persists conversation state with a fixed time-to-live.
type StateStore interface {
	// Get retrieves the state for a channel key.
	// Returns domain.ErrConversationNotFound if absent or expired.
	Get(ctx context.Context, key string) (*domain.ConversationState, error)

	// Put persists the state and bumps state.Version on success.
	Put(ctx context.Context, key string, state *domain.ConversationState, opts PutOptions) error

	// Delete removes the state. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Lister is implemented by stores able to enumerate live conversations.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}
