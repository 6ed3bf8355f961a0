package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appsail/convo/pkg/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the customers table. Applied by EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS customers (
	id UUID PRIMARY KEY,
	mobile TEXT NOT NULL,
	org TEXT NOT NULL DEFAULT '',
	wallet BIGINT NOT NULL DEFAULT 0,
	amount BIGINT NOT NULL DEFAULT 0,
	reference_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_customers_mobile_org ON customers (mobile, org);
`

// querier is the subset of *pgxpool.Pool used by Records.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Records implements ports.RecordStore on Postgres. Amounts are stored in minor units.
type Records struct {
	db querier
}

// NewPool creates a pgx connection pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, config)
}

// NewRecords wraps a pool or any compatible querier.
func NewRecords(db querier) *Records {
	return &Records{db: db}
}

// EnsureSchema applies Schema.
func (r *Records) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

func (r *Records) FindByKey(ctx context.Context, channelKey, org string) (*domain.Customer, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id::text, mobile, org, wallet, amount, reference_id, created_at, updated_at
		FROM customers WHERE mobile=$1 AND org=$2
		ORDER BY created_at ASC LIMIT 1
	`, channelKey, org)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: find customer: %w", err)
	}
	return c, nil
}

func (r *Records) Create(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	rec := c.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO customers
		(id, mobile, org, wallet, amount, reference_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.ID, rec.Mobile, rec.Org, int64(rec.Wallet), int64(rec.AmountDue), rec.ReferenceID, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: create customer: %w", err)
	}
	return rec, nil
}

func (r *Records) Update(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	rec := c.Clone()
	rec.UpdatedAt = time.Now().UTC()

	tag, err := r.db.Exec(ctx, `
		UPDATE customers
		SET mobile=$1, org=$2, wallet=$3, amount=$4, reference_id=$5, updated_at=$6
		WHERE id=$7
	`, rec.Mobile, rec.Org, int64(rec.Wallet), int64(rec.AmountDue), rec.ReferenceID, rec.UpdatedAt, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrRecordNotFound
	}
	return rec, nil
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var (
		c              domain.Customer
		wallet, amount int64
	)
	if err := row.Scan(&c.ID, &c.Mobile, &c.Org, &wallet, &amount, &c.ReferenceID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	c.Wallet = domain.Money(wallet)
	c.AmountDue = domain.Money(amount)
	return &c, nil
}
