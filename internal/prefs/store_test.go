package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"

	"github.com/ObiAU/newsfeed/internal/filters"
	"github.com/ObiAU/newsfeed/internal/models"
)

func strPtr(s string) *string { return &s }

func TestLoadDefaults(t *testing.T) {
	store, err := Load(context.Background(), NewMemoryBackend(), nil)
	assert.Equal(t, nil, err)

	snap := store.Snapshot()
	assert.Equal(t, "", snap.Filters.Search)
	assert.Equal(t, models.DefaultSources(), snap.Sources)
	assert.Equal(t, 3, len(store.EnabledSources()))
}

func TestSetFiltersPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store, _ := Load(ctx, backend, nil)

	var changes []Change
	store.Subscribe(func(s Snapshot, c Change) {
		changes = append(changes, c)
	})

	_, err := store.SetFilters(ctx, Patch{Search: strPtr("climate")})
	assert.Equal(t, nil, err)

	cats := []string{"tech"}
	snap, err := store.SetFilters(ctx, Patch{Categories: &cats, FromDate: strPtr("2024-01-01")})
	assert.Equal(t, nil, err)

	assert.Equal(t, "climate", snap.Filters.Search)
	assert.Equal(t, []string{"tech"}, snap.Filters.Categories)
	assert.Equal(t, "2024-01-01", snap.Filters.FromDate)
	assert.Equal(t, []Change{ChangeSearch, ChangeFilters}, changes)

	reloaded, err := Load(ctx, backend, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, snap.Filters, reloaded.Filters())
}

func TestSetFiltersRejectsBadDates(t *testing.T) {
	ctx := context.Background()
	store, _ := Load(ctx, NewMemoryBackend(), nil)

	_, err := store.SetFilters(ctx, Patch{FromDate: strPtr("2024-02-01"), ToDate: strPtr("2024-01-01")})
	assert.Equal(t, true, errors.Is(err, filters.ErrInvertedRange))

	_, err = store.SetFilters(ctx, Patch{ToDate: strPtr("tomorrow")})
	assert.Equal(t, true, errors.Is(err, filters.ErrInvalidDate))

	assert.Equal(t, "", store.Filters().FromDate)
}

func TestResetFilters(t *testing.T) {
	ctx := context.Background()
	store, _ := Load(ctx, NewMemoryBackend(), nil)
	store.SetFilters(ctx, Patch{Search: strPtr("climate")})

	snap, err := store.ResetFilters(ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, filters.ShouldFetch(snap.Filters))
}

func TestToggleSourceKeepsOneEnabled(t *testing.T) {
	ctx := context.Background()
	store, _ := Load(ctx, NewMemoryBackend(), nil)

	desc, err := store.ToggleSource(ctx, models.SourceNewsAPI)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, desc.Enabled)

	_, err = store.ToggleSource(ctx, models.SourceGuardian)
	assert.Equal(t, nil, err)

	desc, err = store.ToggleSource(ctx, models.SourceNYT)
	assert.Equal(t, true, errors.Is(err, ErrLastSource))
	assert.Equal(t, true, desc.Enabled)

	enabled := store.EnabledSources()
	assert.Equal(t, 1, len(enabled))
	assert.Equal(t, models.SourceNYT, enabled[0].ID)

	desc, err = store.ToggleSource(ctx, models.SourceNewsAPI)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, desc.Enabled)
}

func TestToggleUnknownSource(t *testing.T) {
	store, _ := Load(context.Background(), NewMemoryBackend(), nil)

	_, err := store.ToggleSource(context.Background(), "bbc")
	assert.Equal(t, true, errors.Is(err, ErrUnknownSource))
}

func TestLoadMergesStoredSources(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	backend.Set(ctx, sourcesKey, `[{"id":"guardian","enabled":false},{"id":"bbc","enabled":true}]`)
	backend.Set(ctx, filtersKey, `not json`)

	store, err := Load(ctx, backend, nil)
	assert.Equal(t, nil, err)

	sources := store.Sources()
	assert.Equal(t, 3, len(sources))
	assert.Equal(t, false, sources[1].Enabled)
	assert.Equal(t, "The Guardian", sources[1].Name)
	assert.Equal(t, 2, len(store.EnabledSources()))
	assert.Equal(t, "", store.Filters().Search)
}

func TestLoadReenablesWhenAllDisabled(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	backend.Set(ctx, sourcesKey, `[{"id":"newsapi","enabled":false},{"id":"guardian","enabled":false},{"id":"nyt","enabled":false}]`)

	store, err := Load(ctx, backend, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(store.EnabledSources()))
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")

	backend, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}

	_, err = backend.Get(ctx, "missing")
	assert.Equal(t, true, errors.Is(err, ErrNotFound))

	assert.Equal(t, nil, backend.Set(ctx, "k", "v1"))
	assert.Equal(t, nil, backend.Set(ctx, "k", "v2"))

	v, err := backend.Get(ctx, "k")
	assert.Equal(t, nil, err)
	assert.Equal(t, "v2", v)

	store, err := Load(ctx, backend, nil)
	assert.Equal(t, nil, err)
	store.ToggleSource(ctx, models.SourceNYT)
	backend.Close()

	reopened, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	store, err = Load(ctx, reopened, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(store.EnabledSources()))
}

// TestRedisBackend runs against REDIS_URL, or a local server on the default
// port, and is skipped when neither answers.
func TestRedisBackend(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/15"
	}
	backend, err := NewRedisBackend(ctx, redisURL)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer backend.Close()

	backend.prefix = "newsfeed:test:" + uuid.NewString() + ":"
	defer backend.client.Del(context.Background(), backend.prefix+filtersKey, backend.prefix+sourcesKey, backend.prefix+"k")

	_, err = backend.Get(ctx, "k")
	assert.Equal(t, true, errors.Is(err, ErrNotFound))

	assert.Equal(t, nil, backend.Set(ctx, "k", "v1"))
	assert.Equal(t, nil, backend.Set(ctx, "k", "v2"))
	v, err := backend.Get(ctx, "k")
	assert.Equal(t, nil, err)
	assert.Equal(t, "v2", v)

	store, err := Load(ctx, backend, nil)
	assert.Equal(t, nil, err)
	store.SetFilters(ctx, Patch{Search: strPtr("climate")})
	store.ToggleSource(ctx, models.SourceGuardian)

	reloaded, err := Load(ctx, backend, nil)
	assert.Equal(t, nil, err)
	assert.Equal(t, "climate", reloaded.Filters().Search)
	assert.Equal(t, 2, len(reloaded.EnabledSources()))
}
