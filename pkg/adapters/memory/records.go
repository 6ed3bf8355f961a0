package memory

import (
	"context"
	"sync"
	"time"

	"github.com/appsail/convo/pkg/domain"
	"github.com/google/uuid"
)

// Records implements ports.RecordStore in memory.
type Records struct {
	mu   sync.RWMutex
	byID map[string]*domain.Customer
}

// NewRecords creates an empty record store.
func NewRecords() *Records {
	return &Records{byID: make(map[string]*domain.Customer)}
}

// FindByKey returns the first record matching mobile and org.
func (r *Records) FindByKey(ctx context.Context, channelKey, org string) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var match *domain.Customer
	for _, c := range r.byID {
		if c.Mobile != channelKey || c.Org != org {
			continue
		}
		if match == nil || c.CreatedAt.Before(match.CreatedAt) {
			match = c
		}
	}
	if match == nil {
		return nil, domain.ErrRecordNotFound
	}
	return match.Clone(), nil
}

// Create inserts a record.
func (r *Records) Create(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := c.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.byID[rec.ID] = rec
	return rec.Clone(), nil
}

// Update overwrites an existing record.
func (r *Records) Update(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[c.ID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	rec := c.Clone()
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	r.byID[rec.ID] = rec
	return rec.Clone(), nil
}

// Seed inserts records as-is. Used by simulate and tests.
func (r *Records) Seed(customers ...*domain.Customer) {
	for _, c := range customers {
		_, _ = r.Create(context.Background(), c)
	}
}
