package sources

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ObiAU/newsfeed/internal/filters"
	"github.com/ObiAU/newsfeed/internal/models"
)

var stripTags = bluemonday.StrictPolicy()

// plainText removes markup from provider snippets.
func plainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(stripTags.Sanitize(s)))
}

// parseTime accepts the assorted ISO-8601 variants providers emit. Unparseable
// input yields the zero time, which sorts last.
func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// compactDate turns YYYY-MM-DD into YYYYMMDD.
func compactDate(date string) string {
	return strings.ReplaceAll(date, "-", "")
}

// filterByDate keeps articles published within [from 00:00, to 23:59:59.999]
// UTC. A missing or malformed bound leaves that side open.
func filterByDate(articles []models.Article, from, to string) []models.Article {
	lower, hasLower := dayBound(from, false)
	upper, hasUpper := dayBound(to, true)
	if !hasLower && !hasUpper {
		return articles
	}

	kept := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if a.PublishedAt.IsZero() {
			continue
		}
		if hasLower && a.PublishedAt.Before(lower) {
			continue
		}
		if hasUpper && a.PublishedAt.After(upper) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func dayBound(date string, end bool) (time.Time, bool) {
	if date == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(filters.DateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

// fetchWithFallback runs fetch with the category filter applied and, if a
// text+category request came back empty, retries exactly once without it.
func fetchWithFallback(
	ctx context.Context,
	q models.NormalizedQuery,
	categoryApplied bool,
	fetch func(ctx context.Context, withCategory bool) ([]models.Article, error),
) ([]models.Article, error) {
	articles, err := fetch(ctx, categoryApplied)
	if err != nil || len(articles) > 0 || !categoryApplied || q.Text == "" {
		return articles, err
	}
	return fetch(ctx, false)
}

// translateCategories maps the comma separated user categories through a
// provider vocabulary, dropping unknown entries and duplicates.
func translateCategories(raw string, table map[string]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range filters.SplitList(raw) {
		mapped, ok := table[strings.ToLower(c)]
		if !ok || seen[mapped] {
			continue
		}
		seen[mapped] = true
		out = append(out, mapped)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
