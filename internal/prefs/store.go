// Package prefs keeps the user's filters and source toggles, persisted through
// a pluggable key-value backend.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ObiAU/newsfeed/internal/filters"
	"github.com/ObiAU/newsfeed/internal/models"
)

const (
	filtersKey = "filters"
	sourcesKey = "sources"
)

var (
	ErrNotFound      = errors.New("preference not found")
	ErrLastSource    = errors.New("at least one source must stay enabled")
	ErrUnknownSource = errors.New("unknown source")
)

// Backend is the storage the store writes through to.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Change tells subscribers what kind of mutation happened.
type Change int

const (
	ChangeSearch Change = iota
	ChangeFilters
	ChangeSources
)

func (c Change) String() string {
	switch c {
	case ChangeSearch:
		return "search"
	case ChangeFilters:
		return "filters"
	case ChangeSources:
		return "sources"
	default:
		return "unknown"
	}
}

type Snapshot struct {
	Filters models.FilterState        `json:"filters"`
	Sources []models.SourceDescriptor `json:"sources"`
}

// Patch is a partial filter update; nil fields are left untouched.
type Patch struct {
	Search     *string   `json:"search,omitempty"`
	Categories *[]string `json:"categories,omitempty"`
	Authors    *[]string `json:"authors,omitempty"`
	FromDate   *string   `json:"fromDate,omitempty"`
	ToDate     *string   `json:"toDate,omitempty"`
}

func (p Patch) searchOnly() bool {
	return p.Search != nil && p.Categories == nil && p.Authors == nil && p.FromDate == nil && p.ToDate == nil
}

func (p Patch) apply(state models.FilterState) models.FilterState {
	if p.Search != nil {
		state.Search = *p.Search
	}
	if p.Categories != nil {
		state.Categories = append([]string(nil), (*p.Categories)...)
	}
	if p.Authors != nil {
		state.Authors = append([]string(nil), (*p.Authors)...)
	}
	if p.FromDate != nil {
		state.FromDate = *p.FromDate
	}
	if p.ToDate != nil {
		state.ToDate = *p.ToDate
	}
	return state
}

type Store struct {
	mu        sync.RWMutex
	backend   Backend
	filters   models.FilterState
	sources   []models.SourceDescriptor
	listeners []func(Snapshot, Change)
	logger    *slog.Logger
}

// Load reads persisted state once. Missing keys fall back to an empty filter
// set and all sources enabled.
func Load(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend: backend,
		sources: models.DefaultSources(),
		logger:  logger,
	}

	raw, err := backend.Get(ctx, filtersKey)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load filters: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &s.filters); err != nil {
			logger.Warn("discarding unreadable stored filters", "error", err)
			s.filters = models.FilterState{}
		}
	}

	raw, err = backend.Get(ctx, sourcesKey)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load sources: %w", err)
	default:
		var stored []models.SourceDescriptor
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			logger.Warn("discarding unreadable stored sources", "error", err)
		} else {
			s.sources = mergeSources(stored)
		}
	}

	if len(models.EnabledSources(s.sources)) == 0 {
		logger.Warn("stored preferences had every source disabled, re-enabling all")
		s.sources = models.DefaultSources()
	}

	return s, nil
}

// mergeSources applies stored toggles onto the defaults so new providers show
// up and retired ones drop out.
func mergeSources(stored []models.SourceDescriptor) []models.SourceDescriptor {
	enabled := make(map[models.SourceID]bool, len(stored))
	for _, s := range stored {
		enabled[s.ID] = s.Enabled
	}
	merged := models.DefaultSources()
	for i := range merged {
		if on, ok := enabled[merged[i].ID]; ok {
			merged[i].Enabled = on
		}
	}
	return merged
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Filters() models.FilterState {
	return s.Snapshot().Filters
}

func (s *Store) Sources() []models.SourceDescriptor {
	return s.Snapshot().Sources
}

func (s *Store) EnabledSources() []models.SourceDescriptor {
	return models.EnabledSources(s.Sources())
}

// Subscribe registers fn to be called after every successful mutation.
func (s *Store) Subscribe(fn func(Snapshot, Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SetFilters merges patch into the current filters and persists the result.
func (s *Store) SetFilters(ctx context.Context, patch Patch) (Snapshot, error) {
	change := ChangeFilters
	if patch.searchOnly() {
		change = ChangeSearch
	}

	s.mu.Lock()
	next := patch.apply(s.filters)
	if err := filters.ValidateDates(next); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	if err := s.persist(ctx, filtersKey, next); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	s.filters = next
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap, change)
	return snap, nil
}

func (s *Store) ResetFilters(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	next := models.FilterState{}
	if err := s.persist(ctx, filtersKey, next); err != nil {
		s.mu.Unlock()
		return Snapshot{}, err
	}
	s.filters = next
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap, ChangeFilters)
	return snap, nil
}

// ToggleSource flips one source. Turning off the last enabled source is
// refused with ErrLastSource and leaves state untouched.
func (s *Store) ToggleSource(ctx context.Context, id models.SourceID) (models.SourceDescriptor, error) {
	s.mu.Lock()

	next := append([]models.SourceDescriptor(nil), s.sources...)
	idx := -1
	for i := range next {
		if next[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return models.SourceDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}

	next[idx].Enabled = !next[idx].Enabled
	if len(models.EnabledSources(next)) == 0 {
		s.mu.Unlock()
		return s.sources[idx], ErrLastSource
	}

	if err := s.persist(ctx, sourcesKey, next); err != nil {
		s.mu.Unlock()
		return models.SourceDescriptor{}, err
	}
	s.sources = next
	toggled := next[idx]
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("source toggled", "source", toggled.ID, "enabled", toggled.Enabled)
	s.notify(snap, ChangeSources)
	return toggled, nil
}

func (s *Store) persist(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Store) snapshotLocked() Snapshot {
	f := s.filters
	f.Categories = append([]string(nil), s.filters.Categories...)
	f.Authors = append([]string(nil), s.filters.Authors...)
	return Snapshot{
		Filters: f,
		Sources: append([]models.SourceDescriptor(nil), s.sources...),
	}
}

func (s *Store) notify(snap Snapshot, change Change) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap, change)
	}
}
