package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/appsail/convo/pkg/adapters/sqlite"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRecords(t *testing.T, path string) *sqlite.Records {
	t.Helper()
	r, err := sqlite.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRecords_Contract(t *testing.T) {
	r := openRecords(t, filepath.Join(t.TempDir(), "records.db"))
	ports.RunRecordStoreContract(t, r)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "records.db")
	openRecords(t, path)

	_, err := os.Stat(path)
	assert.NoError(t, err, "database file should exist")
}

func TestRecords_SurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	first, err := sqlite.Open(path, nil)
	require.NoError(t, err)
	created, err := first.Create(ctx, &domain.Customer{Mobile: "919000000001", Org: "acme", Wallet: domain.Units(3000)})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openRecords(t, path)
	found, err := second.FindByKey(ctx, "919000000001", "acme")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, domain.Units(3000), found.Wallet)
}
