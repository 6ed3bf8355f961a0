package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/appsail/convo/pkg/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int64:
			*p = r.values[i].(int64)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type fakeQuerier struct {
	row      fakeRow
	tag      string
	execErr  error
	lastSQL  string
	lastArgs []any
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL = sql
	f.lastArgs = args
	return pgconn.NewCommandTag(f.tag), f.execErr
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL = sql
	f.lastArgs = args
	return f.row
}

func TestFindByKey_NotFound(t *testing.T) {
	db := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := NewRecords(db).FindByKey(context.Background(), "9190", "acme")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.Equal(t, []any{"9190", "acme"}, db.lastArgs)
}

func TestFindByKey_Scans(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	db := &fakeQuerier{row: fakeRow{values: []any{
		"c-1", "9190", "acme", int64(300000), int64(9000), "ref-9", created, created,
	}}}

	c, err := NewRecords(db).FindByKey(context.Background(), "9190", "acme")
	require.NoError(t, err)
	assert.Equal(t, "c-1", c.ID)
	assert.Equal(t, domain.Units(3000), c.Wallet)
	assert.Equal(t, domain.Units(90), c.AmountDue)
	assert.Equal(t, "ref-9", c.ReferenceID)
	assert.Equal(t, created, c.CreatedAt)
}

func TestFindByKey_QueryError(t *testing.T) {
	db := &fakeQuerier{row: fakeRow{err: errors.New("connection refused")}}
	_, err := NewRecords(db).FindByKey(context.Background(), "9190", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: find customer")
}

func TestCreate_AssignsIDAndMinorUnits(t *testing.T) {
	db := &fakeQuerier{tag: "INSERT 0 1"}
	c, err := NewRecords(db).Create(context.Background(), &domain.Customer{Mobile: "9190", Wallet: domain.FromFloat(12.5)})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	require.Len(t, db.lastArgs, 8)
	assert.Equal(t, c.ID, db.lastArgs[0])
	assert.Equal(t, int64(1250), db.lastArgs[3])
}

func TestUpdate_MissingRow(t *testing.T) {
	db := &fakeQuerier{tag: "UPDATE 0"}
	_, err := NewRecords(db).Update(context.Background(), &domain.Customer{ID: "nope"})
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestUpdate_WritesWallet(t *testing.T) {
	db := &fakeQuerier{tag: "UPDATE 1"}
	_, err := NewRecords(db).Update(context.Background(), &domain.Customer{ID: "c-1", Wallet: domain.Units(10000)})
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), db.lastArgs[2])
	assert.Equal(t, "c-1", db.lastArgs[6])
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeQuerier{}
	require.NoError(t, NewRecords(db).EnsureSchema(context.Background()))
	assert.Equal(t, Schema, db.lastSQL)

	db.execErr = errors.New("permission denied")
	assert.Error(t, NewRecords(db).EnsureSchema(context.Background()))
}
