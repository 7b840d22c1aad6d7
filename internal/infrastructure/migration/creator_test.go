package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add sync retries", "add_sync_retries"},
		{"Add-Sync-Retries", "add_sync_retries"},
		{"ADD_SYNC_RETRIES", "add_sync_retries"},
		{"add__sync__retries", "add_sync_retries"},
		{"Add Index 2", "add_index_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	t.Run("numbers after the highest existing migration", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "000003_create_sync_degradations.up.sql"), []byte("--"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_create_local_entities.up.sql"), []byte("--"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644))

		mf, err := CreateMigration(dir, "add listing index", "Speeds up listing pushes")
		require.NoError(t, err)

		assert.Equal(t, "000004", mf.Version)
		assert.Equal(t, "000004_add_listing_index.up.sql", filepath.Base(mf.UpPath))
		assert.Equal(t, "000004_add_listing_index.down.sql", filepath.Base(mf.DownPath))

		content, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "-- Migration: add listing index")
		assert.Contains(t, string(content), "Speeds up listing pushes")
	})

	t.Run("creates the directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "sql")

		mf, err := CreateMigration(dir, "first", "")
		require.NoError(t, err)
		assert.Equal(t, "000001", mf.Version)
		assert.FileExists(t, mf.DownPath)
	})

	t.Run("rejects an unusable name", func(t *testing.T) {
		_, err := CreateMigration(t.TempDir(), "!!!", "")
		assert.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	names, err := ListMigrations()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"000001_create_local_entities",
		"000002_create_sync_retries",
		"000003_create_sync_degradations",
	}, names)

	for _, name := range names {
		down, err := migrationsFS.ReadFile(SourceDir + "/" + name + ".down.sql")
		require.NoError(t, err, name)
		assert.True(t, strings.HasPrefix(string(down), "DROP TABLE"), name)
	}
}
