package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ObiAU/newsfeed/internal/debounce"
	"github.com/ObiAU/newsfeed/internal/models"
	"github.com/ObiAU/newsfeed/internal/prefs"
)

// Session ties the preference store to the controller: search text changes
// are debounced, every other change refreshes straight away.
type Session struct {
	ctx      context.Context
	store    *prefs.Store
	ctrl     *Controller
	debounce *debounce.Debouncer
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewSession subscribes to store and starts one refresh from the stored
// filters, so a restart picks up where the user left off.
func NewSession(ctx context.Context, store *prefs.Store, ctrl *Controller, interval time.Duration, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		ctx:      ctx,
		store:    store,
		ctrl:     ctrl,
		debounce: debounce.New(interval),
		logger:   logger,
	}
	store.Subscribe(s.onChange)
	s.goRefresh()
	return s
}

func (s *Session) onChange(snap prefs.Snapshot, change prefs.Change) {
	s.logger.Debug("preferences changed", "change", change.String())
	if change == prefs.ChangeSearch {
		s.debounce.Trigger(func() {
			if s.begin() {
				defer s.wg.Done()
				s.refresh(s.ctx)
			}
		})
		return
	}
	s.debounce.Stop()
	s.goRefresh()
}

// begin registers a refresh with the wait group unless the session is closed.
func (s *Session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Session) goRefresh() {
	if !s.begin() {
		return
	}
	go func() {
		defer s.wg.Done()
		s.refresh(s.ctx)
	}()
}

func (s *Session) refresh(ctx context.Context) (State, bool) {
	return s.ctrl.RefreshWith(ctx, func() (models.FilterState, []models.SourceDescriptor) {
		snap := s.store.Snapshot()
		return snap.Filters, snap.Sources
	})
}

// RefreshNow runs a cycle synchronously with the stored preferences,
// dropping any debounced refresh that was waiting.
func (s *Session) RefreshNow(ctx context.Context) State {
	s.debounce.Stop()
	st, ok := s.refresh(ctx)
	if !ok {
		return s.ctrl.Snapshot()
	}
	return st
}

func (s *Session) State() State {
	return s.ctrl.Snapshot()
}

func (s *Session) Store() *prefs.Store {
	return s.store
}

func (s *Session) Subscribe(fn func(State)) {
	s.ctrl.Subscribe(fn)
}

// Close drops pending work, cancels the running cycle and waits for
// background refreshes, debounced ones included, to return.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.debounce.Stop()
	s.ctrl.Cancel()
	s.wg.Wait()
}
