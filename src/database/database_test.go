package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsSourceURLAbsolutePath(t *testing.T) {
	url, err := migrationsSourceURL("/srv/fundfolio/db/migrations")
	require.NoError(t, err)
	assert.Equal(t, "file:///srv/fundfolio/db/migrations", url)
}

func TestMigrationsSourceURLRelativePath(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	want := "file://" + filepath.ToSlash(filepath.Join(cwd, "custom", "migrations"))

	url, err := migrationsSourceURL("custom/migrations")
	require.NoError(t, err)
	assert.Equal(t, want, url)
}

func TestMigrationsSourceURLDefaultsToLocalDir(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	want := "file://" + filepath.ToSlash(filepath.Join(cwd, "db", "migrations"))

	url, err := migrationsSourceURL("")
	require.NoError(t, err)
	assert.Equal(t, want, url)
}
