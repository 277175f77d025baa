package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/ObiAU/newsfeed/internal/models"
	"github.com/ObiAU/newsfeed/internal/prefs"
)

// blockingAggregator holds each call until released, recording the context it
// was given.
type blockingAggregator struct {
	mu      sync.Mutex
	calls   int32
	queries []models.NormalizedQuery
	ctxs    []context.Context
	release chan struct{}
}

func newBlockingAggregator() *blockingAggregator {
	return &blockingAggregator{release: make(chan struct{}, 8)}
}

func (b *blockingAggregator) Aggregate(ctx context.Context, q models.NormalizedQuery, enabled []models.SourceDescriptor) []models.Article {
	atomic.AddInt32(&b.calls, 1)
	b.mu.Lock()
	b.queries = append(b.queries, q)
	b.ctxs = append(b.ctxs, ctx)
	b.mu.Unlock()

	<-b.release
	return []models.Article{{ID: q.Text}}
}

type instantAggregator struct {
	calls int32
	last  atomic.Value
}

func (a *instantAggregator) Aggregate(ctx context.Context, q models.NormalizedQuery, enabled []models.SourceDescriptor) []models.Article {
	atomic.AddInt32(&a.calls, 1)
	a.last.Store(q)
	if len(enabled) == 0 {
		return []models.Article{}
	}
	return []models.Article{{ID: q.Text, PublishedAt: time.Now()}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestRefreshSkipsEmptyFilters(t *testing.T) {
	agg := &instantAggregator{}
	ctrl := NewController(agg)

	st, ok := ctrl.Refresh(context.Background(), models.FilterState{Search: "  "}, models.DefaultSources())

	assert.Equal(t, true, ok)
	assert.Equal(t, false, st.HasFetched)
	assert.Equal(t, 0, len(st.Articles))
	assert.Equal(t, int32(0), atomic.LoadInt32(&agg.calls))
}

func TestRefreshEmptyResultIsFetched(t *testing.T) {
	agg := &instantAggregator{}
	ctrl := NewController(agg)

	st, ok := ctrl.Refresh(context.Background(), models.FilterState{Search: "climate"}, nil)

	assert.Equal(t, true, ok)
	assert.Equal(t, true, st.HasFetched)
	assert.Equal(t, false, st.Loading)
	assert.Equal(t, 0, len(st.Articles))
	assert.Equal(t, "climate", st.Query.Text)
}

func TestNewerCycleWins(t *testing.T) {
	agg := newBlockingAggregator()
	ctrl := NewController(agg)
	ctx := context.Background()

	firstDone := make(chan bool)
	go func() {
		_, ok := ctrl.Refresh(ctx, models.FilterState{Search: "first"}, models.DefaultSources())
		firstDone <- ok
	}()
	waitFor(t, func() bool { return atomic.LoadInt32(&agg.calls) == 1 })
	assert.Equal(t, true, ctrl.Snapshot().Loading)

	secondDone := make(chan State)
	go func() {
		st, _ := ctrl.Refresh(ctx, models.FilterState{Search: "second"}, models.DefaultSources())
		secondDone <- st
	}()
	waitFor(t, func() bool { return atomic.LoadInt32(&agg.calls) == 2 })

	agg.mu.Lock()
	firstCtx := agg.ctxs[0]
	agg.mu.Unlock()
	assert.Equal(t, context.Canceled, firstCtx.Err())

	agg.release <- struct{}{}
	agg.release <- struct{}{}

	assert.Equal(t, false, <-firstDone)
	second := <-secondDone
	assert.Equal(t, "second", second.Articles[0].ID)

	final := ctrl.Snapshot()
	assert.Equal(t, uint64(2), final.Seq)
	assert.Equal(t, "second", final.Articles[0].ID)
	assert.Equal(t, false, final.Loading)
}

func TestSubscribeSeesLoadingThenResult(t *testing.T) {
	ctrl := NewController(&instantAggregator{})

	var states []State
	ctrl.Subscribe(func(st State) { states = append(states, st) })

	ctrl.Refresh(context.Background(), models.FilterState{Search: "climate"}, models.DefaultSources())

	assert.Equal(t, 2, len(states))
	assert.Equal(t, true, states[0].Loading)
	assert.Equal(t, true, states[1].HasFetched)
	assert.Equal(t, states[0].CycleID, states[1].CycleID)
}

// startSession builds a session and waits for its startup refresh, so later
// store changes are not folded into it.
func startSession(t *testing.T, store *prefs.Store, agg Aggregator, interval time.Duration) *Session {
	t.Helper()
	session := NewSession(context.Background(), store, NewController(agg), interval, nil)
	waitFor(t, func() bool {
		st := session.State()
		return st.Seq >= 1 && !st.Loading
	})
	return session
}

func TestSessionDebouncesSearch(t *testing.T) {
	ctx := context.Background()
	store, err := prefs.Load(ctx, prefs.NewMemoryBackend(), nil)
	assert.Equal(t, nil, err)

	agg := &instantAggregator{}
	session := startSession(t, store, agg, 40*time.Millisecond)
	defer session.Close()

	for _, text := range []string{"c", "cl", "cli", "climate"} {
		text := text
		store.SetFilters(ctx, prefs.Patch{Search: &text})
	}

	waitFor(t, func() bool { return session.State().HasFetched })
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&agg.calls))
	assert.Equal(t, "climate", session.State().Query.Text)
}

func TestSessionRefreshesImmediatelyOnSourceToggle(t *testing.T) {
	ctx := context.Background()
	store, _ := prefs.Load(ctx, prefs.NewMemoryBackend(), nil)
	cats := []string{"tech"}
	store.SetFilters(ctx, prefs.Patch{Categories: &cats})

	agg := &instantAggregator{}
	session := startSession(t, store, agg, time.Hour)
	defer session.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&agg.calls))

	store.ToggleSource(ctx, models.SourceGuardian)

	waitFor(t, func() bool { return atomic.LoadInt32(&agg.calls) == 2 })
	waitFor(t, func() bool { return session.State().Seq == 2 && session.State().HasFetched })
	assert.Equal(t, "tech", session.State().Query.Category)
}

func TestSessionRefreshNow(t *testing.T) {
	ctx := context.Background()
	store, _ := prefs.Load(ctx, prefs.NewMemoryBackend(), nil)
	session := startSession(t, store, &instantAggregator{}, time.Hour)
	defer session.Close()

	text := "climate"
	store.SetFilters(ctx, prefs.Patch{Search: &text})

	st := session.RefreshNow(ctx)
	assert.Equal(t, true, st.HasFetched)
	assert.Equal(t, "climate", st.Articles[0].ID)
}

func TestSessionFetchesStoredFiltersOnStart(t *testing.T) {
	ctx := context.Background()
	backend := prefs.NewMemoryBackend()
	previous, _ := prefs.Load(ctx, backend, nil)
	text := "climate"
	previous.SetFilters(ctx, prefs.Patch{Search: &text})

	store, err := prefs.Load(ctx, backend, nil)
	assert.Equal(t, nil, err)

	agg := &instantAggregator{}
	session := startSession(t, store, agg, time.Hour)
	defer session.Close()

	st := session.State()
	assert.Equal(t, true, st.HasFetched)
	assert.Equal(t, "climate", st.Query.Text)
	assert.Equal(t, int32(1), atomic.LoadInt32(&agg.calls))
}

func TestSessionCloseWaitsForDebouncedRefresh(t *testing.T) {
	ctx := context.Background()
	store, _ := prefs.Load(ctx, prefs.NewMemoryBackend(), nil)
	agg := newBlockingAggregator()
	session := startSession(t, store, agg, 10*time.Millisecond)

	text := "climate"
	store.SetFilters(ctx, prefs.Patch{Search: &text})
	waitFor(t, func() bool { return atomic.LoadInt32(&agg.calls) == 1 })

	closed := make(chan struct{})
	go func() {
		session.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a debounced refresh was still running")
	case <-time.After(50 * time.Millisecond):
	}

	agg.release <- struct{}{}
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the refresh finished")
	}
}

// ctxAggregator answers the first call at once and holds later ones until
// their context is done, returning nothing the way adapters do.
type ctxAggregator struct {
	calls int32
}

func (a *ctxAggregator) Aggregate(ctx context.Context, q models.NormalizedQuery, enabled []models.SourceDescriptor) []models.Article {
	if atomic.AddInt32(&a.calls, 1) == 1 {
		return []models.Article{{ID: "kept", PublishedAt: time.Now()}}
	}
	<-ctx.Done()
	return []models.Article{}
}

func TestCancelledCallerKeepsPreviousFeed(t *testing.T) {
	agg := &ctxAggregator{}
	ctrl := NewController(agg)
	fs := models.FilterState{Search: "climate"}

	first, ok := ctrl.Refresh(context.Background(), fs, models.DefaultSources())
	assert.Equal(t, true, ok)
	assert.Equal(t, 1, len(first.Articles))

	var pushed []State
	var mu sync.Mutex
	ctrl.Subscribe(func(st State) {
		mu.Lock()
		pushed = append(pushed, st)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for atomic.LoadInt32(&agg.calls) < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, ok = ctrl.Refresh(ctx, fs, models.DefaultSources())
	assert.Equal(t, false, ok)

	st := ctrl.Snapshot()
	assert.Equal(t, true, st.HasFetched)
	assert.Equal(t, false, st.Loading)
	assert.Equal(t, 1, len(st.Articles))
	assert.Equal(t, "kept", st.Articles[0].ID)
	assert.Equal(t, first.Seq, st.Seq)

	mu.Lock()
	defer mu.Unlock()
	last := pushed[len(pushed)-1]
	assert.Equal(t, false, last.Loading)
	assert.Equal(t, 1, len(last.Articles))
}

func TestRefreshWithReadsInputUnderLock(t *testing.T) {
	agg := &instantAggregator{}
	ctrl := NewController(agg)

	var seqAtLoad uint64
	st, ok := ctrl.RefreshWith(context.Background(), func() (models.FilterState, []models.SourceDescriptor) {
		seqAtLoad = ctrl.seq
		return models.FilterState{Search: "climate"}, models.DefaultSources()
	})

	assert.Equal(t, true, ok)
	assert.Equal(t, st.Seq, seqAtLoad)
	assert.Equal(t, "climate", st.Query.Text)
}
