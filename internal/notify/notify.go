// Package notify implements the fire-and-forget channel adapters use to
// surface fetch failures.
package notify

import (
	"log/slog"
	"sync"

	"github.com/ObiAU/newsfeed/internal/models"
)

// LogReporter writes failures to the structured log.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(source string, err error) {
	r.logger.Warn("source unavailable", "source", source, "error", err)
}

// Multi fans a report out to several reporters. Nil entries are skipped.
type Multi []models.ErrorReporter

func (m Multi) Report(source string, err error) {
	for _, r := range m {
		if r != nil {
			r.Report(source, err)
		}
	}
}

// Deferred forwards to a reporter attached after construction, which lets
// adapters be built before the chat surface that also wants their failures.
type Deferred struct {
	mu     sync.RWMutex
	target models.ErrorReporter
}

func (d *Deferred) Attach(r models.ErrorReporter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = r
}

func (d *Deferred) Report(source string, err error) {
	d.mu.RLock()
	target := d.target
	d.mu.RUnlock()

	if target != nil {
		target.Report(source, err)
	}
}
