package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.sql", "0001_a.sql", "0003_c.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0004_dir.sql"), 0o755))

	names, err := pendingMigrations(dir, map[string]struct{}{"0002_b.sql": {}})
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.sql", "0003_c.sql"}, names)
}

func TestPendingMigrations_MissingDir(t *testing.T) {
	_, err := pendingMigrations(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}
