package database

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates a migrated in-memory SQLite database private to the test
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := InitDB(Options{DataPath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name)})
	require.NoError(t, err, "Failed to create test database")

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close(), "Failed to close test database")
	})
	return db
}
