package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"warung/pkg/database"
)

// OpenSQLite opens a file backed sqlite database in t.TempDir() and migrates models.
// Transactions take the write lock at BEGIN so concurrent writers serialize.
func OpenSQLite(t *testing.T, models ...any) *database.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_txlock=immediate", filepath.Join(t.TempDir(), "warung.db"))
	client, err := database.Open(context.Background(), database.Config{Driver: "sqlite", DSN: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.AutoMigrate(models...))
	return client
}
