package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "info", "json")

	l.Debug("hidden")
	l.Info("cycle complete", "articles", 3)

	var entry map[string]any
	assert.Equal(t, nil, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cycle complete", entry["msg"])
	assert.Equal(t, float64(3), entry["articles"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn", "text")

	l.Info("hidden")
	l.Warn("source unavailable", "source", "nyt")

	assert.Equal(t, false, strings.Contains(buf.String(), "hidden"))
	assert.Equal(t, true, strings.Contains(buf.String(), "source=nyt"))
}
