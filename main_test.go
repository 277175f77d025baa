package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/ObiAU/newsfeed/internal/config"
)

func TestRunReturnsConfigErrors(t *testing.T) {
	t.Setenv("NEWS_API_KEY", "")
	t.Setenv("GUARDIAN_API_KEY", "")
	t.Setenv("NYT_API_KEY", "")

	err := run()

	assert.NotEqual(t, nil, err)
	assert.Equal(t, true, strings.Contains(err.Error(), "invalid configuration"))
}

func TestRunReturnsBackendErrors(t *testing.T) {
	t.Setenv("GUARDIAN_API_KEY", "key")
	t.Setenv("PREFS_BACKEND", "sqlite")
	t.Setenv("PREFS_DB_PATH", filepath.Join(t.TempDir(), "missing", "dir", "prefs.db"))

	err := run()

	assert.NotEqual(t, nil, err)
	assert.Equal(t, true, strings.Contains(err.Error(), "preference store"))
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	backend, closer, err := openBackend(ctx, &config.Config{PrefsBackend: config.BackendMemory})
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, backend.Set(ctx, "k", "v"))
	assert.Equal(t, nil, closer.Close())

	path := filepath.Join(t.TempDir(), "prefs.db")
	backend, closer, err = openBackend(ctx, &config.Config{PrefsBackend: config.BackendSQLite, PrefsDBPath: path})
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, backend.Set(ctx, "k", "v"))
	assert.Equal(t, nil, closer.Close())
}
