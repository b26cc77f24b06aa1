package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFiles(t *testing.T) {
	files, err := MigrationFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_documents.sql", "002_order_status_log.sql"}, files)

	for _, f := range files {
		content, err := migrationFS.ReadFile("migrations/" + f)
		require.NoError(t, err)
		assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS")
	}
}
