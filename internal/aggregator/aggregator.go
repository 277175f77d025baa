package aggregator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ObiAU/newsfeed/internal/models"
)

type Aggregator struct {
	sources map[models.SourceID]models.NewsSource
	dedup   bool
	logger  *slog.Logger
}

type Option func(*Aggregator)

// WithDedup enables the optional cross-source deduplication stage.
func WithDedup(enabled bool) Option {
	return func(a *Aggregator) {
		a.dedup = enabled
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

func New(newsSources []models.NewsSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		sources: make(map[models.SourceID]models.NewsSource, len(newsSources)),
		logger:  slog.Default(),
	}
	for _, src := range newsSources {
		a.sources[src.ID()] = src
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate fans the query out to every enabled source, waits for all of
// them, and returns the union sorted newest first. Sources that fail
// contribute nothing; the result is never nil.
func (a *Aggregator) Aggregate(ctx context.Context, query models.NormalizedQuery, enabled []models.SourceDescriptor) []models.Article {
	start := time.Now()

	var targets []models.NewsSource
	for _, desc := range enabled {
		if !desc.Enabled {
			continue
		}
		src, ok := a.sources[desc.ID]
		if !ok {
			a.logger.Warn("no adapter registered for source", "source", desc.ID)
			continue
		}
		targets = append(targets, src)
	}

	// One slot per source keeps the flatten order equal to source order no
	// matter which goroutine finishes first.
	results := make([][]models.Article, len(targets))
	var wg sync.WaitGroup

	for i, source := range targets {
		wg.Add(1)
		go func(i int, src models.NewsSource) {
			defer wg.Done()
			results[i] = src.FetchArticles(ctx, query)
		}(i, source)
	}

	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]models.Article, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}

	SortByRecency(merged)

	if a.dedup {
		before := len(merged)
		merged = Dedup(merged)
		a.logger.Debug("dedup applied", "removed", before-len(merged))
	}

	a.logger.Info("aggregation complete",
		"sources", len(targets),
		"articles", len(merged),
		"took", time.Since(start),
	)
	return merged
}

// SortByRecency orders articles by PublishedAt descending. Equal timestamps
// keep their incoming order.
func SortByRecency(articles []models.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
}
