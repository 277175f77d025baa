// Package feed runs fetch cycles and holds the result the presentation layer
// reads.
package feed

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ObiAU/newsfeed/internal/filters"
	"github.com/ObiAU/newsfeed/internal/models"
)

type Aggregator interface {
	Aggregate(ctx context.Context, query models.NormalizedQuery, enabled []models.SourceDescriptor) []models.Article
}

// State is what the presentation layer renders. HasFetched separates "no
// matches" from "never fetched".
type State struct {
	Articles   []models.Article       `json:"articles"`
	Query      models.NormalizedQuery `json:"query"`
	Loading    bool                   `json:"loading"`
	HasFetched bool                   `json:"has_fetched"`
	Seq        uint64                 `json:"seq"`
	CycleID    string                 `json:"cycle_id,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Controller serialises fetch cycles. Every Refresh takes a new sequence
// number and cancels the cycle before it; only the latest cycle may write its
// result.
type Controller struct {
	agg     Aggregator
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.RWMutex
	seq       uint64
	cancel    context.CancelFunc
	state     State
	listeners []func(State)
}

type Option func(*Controller)

// WithTimeout bounds each cycle. Zero leaves only the transport timeouts.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

func NewController(agg Aggregator, opts ...Option) *Controller {
	c := &Controller{
		agg:    agg,
		logger: slog.Default(),
		state:  State{Articles: []models.Article{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh runs one cycle for the given filters and sources. It returns the
// state it wrote and true, or false when a newer cycle superseded it or ctx
// was cancelled before the result came back.
func (c *Controller) Refresh(ctx context.Context, fs models.FilterState, sources []models.SourceDescriptor) (State, bool) {
	return c.RefreshWith(ctx, func() (models.FilterState, []models.SourceDescriptor) {
		return fs, sources
	})
}

// RefreshWith is Refresh with the input read by load under the cycle lock, so
// a later sequence number always sees inputs at least as new as an earlier one.
func (c *Controller) RefreshWith(ctx context.Context, load func() (models.FilterState, []models.SourceDescriptor)) (State, bool) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	fs, sources := load()

	if !filters.ShouldFetch(fs) {
		c.state = State{Articles: []models.Article{}, Seq: seq, UpdatedAt: time.Now()}
		st := c.state
		c.mu.Unlock()

		c.logger.Debug("fetch skipped, no active filters", "seq", seq)
		c.notify(st)
		return st, true
	}

	query := filters.Normalize(fs)
	var cycleCtx context.Context
	var cancel context.CancelFunc
	if c.timeout > 0 {
		cycleCtx, cancel = context.WithTimeout(ctx, c.timeout)
	} else {
		cycleCtx, cancel = context.WithCancel(ctx)
	}
	c.cancel = cancel

	cycleID := uuid.NewString()
	prev := c.state
	prev.Loading = false
	c.state.Loading = true
	c.state.Query = query
	c.state.Seq = seq
	c.state.CycleID = cycleID
	loading := c.state
	c.mu.Unlock()

	logger := c.logger.With("cycle", cycleID, "seq", seq)
	logger.Info("fetch cycle started", "query", query)
	c.notify(loading)

	articles := c.agg.Aggregate(cycleCtx, query, models.EnabledSources(sources))

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		cancel()
		logger.Info("fetch cycle superseded, result discarded", "articles", len(articles))
		return State{}, false
	}
	cancel()
	c.cancel = nil
	// Adapters turn a cancelled caller into empty results; keep the last
	// good feed rather than storing a false "no matches".
	if ctx.Err() != nil {
		c.state = prev
		st := c.state
		c.mu.Unlock()
		logger.Info("fetch cycle abandoned by caller, result discarded", "error", ctx.Err())
		c.notify(st)
		return st, false
	}
	c.state = State{
		Articles:   articles,
		Query:      query,
		HasFetched: true,
		Seq:        seq,
		CycleID:    cycleID,
		UpdatedAt:  time.Now(),
	}
	st := c.state
	c.mu.Unlock()

	logger.Info("fetch cycle complete", "articles", len(articles))
	c.notify(st)
	return st, true
}

// Cancel abandons the in-flight cycle, if any, without touching the state.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state.Loading = false
}

func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.state
	st.Articles = append([]models.Article{}, c.state.Articles...)
	return st
}

// Subscribe registers fn for every state write, loading transitions included.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) notify(st State) {
	c.mu.RLock()
	listeners := slices.Clone(c.listeners)
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn(st)
	}
}
