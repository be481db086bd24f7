package testutil

import (
	"context"
	"path/filepath"
	"testing"

	dbsqlite "github.com/kasuganosora/bondageclub/server/db/sqlite"
	"github.com/kasuganosora/bondageclub/server/db/sqlstore"
	"github.com/stretchr/testify/require"
)

// SetupTestStore creates a SQLite-backed account store in a temp directory.
// It requires no external services and is safe to use in parallel tests.
func SetupTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := dbsqlite.Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err, "SetupTestStore: Open")
	store, err := sqlstore.New(db, "Accounts")
	require.NoError(t, err, "SetupTestStore: New")
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}
