package domain

import "time"

// Customer is the durable counterpart record for a channel key.
type Customer struct {
	ID          string    `json:"id"`
	Mobile      string    `json:"mobile"`
	Org         string    `json:"org,omitempty"`
	Wallet      Money     `json:"wallet"`
	AmountDue   Money     `json:"amount,omitempty"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a copy of c.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
