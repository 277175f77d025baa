package models

import (
	"context"
	"time"
)

// Article is the provider-agnostic shape every source adapter produces.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      string    `json:"source"`
	Category    string    `json:"category,omitempty"`
	Author      string    `json:"author,omitempty"`
}

// NormalizedQuery is built once per fetch cycle and handed to every adapter.
// An empty field means the filter is absent.
type NormalizedQuery struct {
	Text     string `json:"text,omitempty"`
	Category string `json:"category,omitempty"`
	FromDate string `json:"fromDate,omitempty"`
	ToDate   string `json:"toDate,omitempty"`
	Authors  string `json:"authors,omitempty"`
}

// IsEmpty reports whether no field of the query is set.
func (q NormalizedQuery) IsEmpty() bool {
	return q == NormalizedQuery{}
}

// FilterState is the user-facing filter set owned by the presentation layer.
type FilterState struct {
	Search     string   `json:"search"`
	Categories []string `json:"categories"`
	Authors    []string `json:"authors"`
	FromDate   string   `json:"fromDate,omitempty"`
	ToDate     string   `json:"toDate,omitempty"`
}

// NewsSource is implemented by every upstream adapter. FetchArticles never
// fails: errors are reported through an ErrorReporter and yield an empty list.
type NewsSource interface {
	ID() SourceID
	Name() string
	FetchArticles(ctx context.Context, query NormalizedQuery) []Article
}

// ErrorReporter is the fire-and-forget failure side channel.
type ErrorReporter interface {
	Report(source string, err error)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(source string, err error)

func (f ReporterFunc) Report(source string, err error) {
	f(source, err)
}
