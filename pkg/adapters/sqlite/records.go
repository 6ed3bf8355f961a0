package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/appsail/convo/pkg/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Records implements ports.RecordStore on SQLite.
// Amounts are stored in minor units.
type Records struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the database at path. The schema is created if missing.
func Open(path string, logger *slog.Logger) (*Records, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "records")

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	r := &Records{db: db, logger: logger}
	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite record store initialized", "path", path)
	return r, nil
}

func (r *Records) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			mobile TEXT NOT NULL,
			org TEXT NOT NULL DEFAULT '',
			wallet INTEGER NOT NULL DEFAULT 0,
			amount INTEGER NOT NULL DEFAULT 0,
			reference_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_customers_mobile_org
			ON customers(mobile, org);
	`
	_, err := r.db.Exec(schema)
	return err
}

// FindByKey returns the oldest record for mobile within org.
func (r *Records) FindByKey(ctx context.Context, channelKey, org string) (*domain.Customer, error) {
	query := `
		SELECT id, mobile, org, wallet, amount, reference_id, created_at, updated_at
		FROM customers
		WHERE mobile = ? AND org = ?
		ORDER BY created_at ASC
		LIMIT 1
	`

	var (
		c                    domain.Customer
		wallet, amount       int64
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, query, channelKey, org).Scan(
		&c.ID,
		&c.Mobile,
		&c.Org,
		&wallet,
		&amount,
		&c.ReferenceID,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying customer: %w", err)
	}

	c.Wallet = domain.Money(wallet)
	c.AmountDue = domain.Money(amount)
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &c, nil
}

// Create inserts a record.
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

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, mobile, org, wallet, amount, reference_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Mobile,
		rec.Org,
		int64(rec.Wallet),
		int64(rec.AmountDue),
		rec.ReferenceID,
		rec.CreatedAt.Format(time.RFC3339Nano),
		rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting customer: %w", err)
	}
	return rec, nil
}

// Update writes wallet, amount and reference of an existing record.
func (r *Records) Update(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	rec := c.Clone()
	rec.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET mobile = ?, org = ?, wallet = ?, amount = ?, reference_id = ?, updated_at = ?
		WHERE id = ?
	`,
		rec.Mobile,
		rec.Org,
		int64(rec.Wallet),
		int64(rec.AmountDue),
		rec.ReferenceID,
		rec.UpdatedAt.Format(time.RFC3339Nano),
		rec.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating customer: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrRecordNotFound
	}
	return rec, nil
}

// Close closes the database.
func (r *Records) Close() error {
	return r.db.Close()
}
