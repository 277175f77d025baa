// Package filters turns the user's filter state into the query handed to
// source adapters, and decides whether a fetch should run at all.
package filters

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ObiAU/newsfeed/internal/models"
)

// DateLayout is the YYYY-MM-DD form used for date bounds everywhere.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate   = errors.New("date must be in YYYY-MM-DD format")
	ErrInvertedRange = errors.New("from date is after to date")
)

// Normalize projects a filter state onto a NormalizedQuery.
func Normalize(state models.FilterState) models.NormalizedQuery {
	return models.NormalizedQuery{
		Text:     strings.TrimSpace(state.Search),
		Category: joinNonBlank(state.Categories),
		Authors:  joinNonBlank(state.Authors),
		FromDate: state.FromDate,
		ToDate:   state.ToDate,
	}
}

// ShouldFetch is false only when every filter is empty, so an untouched or
// fully reset filter state never triggers a full fan-out.
func ShouldFetch(state models.FilterState) bool {
	if strings.TrimSpace(state.Search) != "" {
		return true
	}
	if joinNonBlank(state.Categories) != "" || joinNonBlank(state.Authors) != "" {
		return true
	}
	return state.FromDate != "" || state.ToDate != ""
}

// ValidateDates checks both bounds are well formed and ordered.
func ValidateDates(state models.FilterState) error {
	from, err := parseBound(state.FromDate)
	if err != nil {
		return fmt.Errorf("from date %q: %w", state.FromDate, err)
	}
	to, err := parseBound(state.ToDate)
	if err != nil {
		return fmt.Errorf("to date %q: %w", state.ToDate, err)
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return ErrInvertedRange
	}
	return nil
}

// SplitList parses a comma separated user input into trimmed, non-blank items.
func SplitList(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func parseBound(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func joinNonBlank(items []string) string {
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			kept = append(kept, item)
		}
	}
	return strings.Join(kept, ",")
}
