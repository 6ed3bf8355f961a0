package ports

import (
	"context"

	"github.com/appsail/convo/pkg/domain"
)

// RecordStore manages counterpart records.
type RecordStore interface {
	// FindByKey returns the record for a channel key within an org scope.
	// An empty org matches records without an org.
	// Returns domain.ErrRecordNotFound if none matches.
	FindByKey(ctx context.Context, channelKey, org string) (*domain.Customer, error)

	// Create inserts a record, assigning ID and timestamps when empty.
	Create(ctx context.Context, c *domain.Customer) (*domain.Customer, error)

	// Update writes every mutable field of an existing record.
	Update(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
}
