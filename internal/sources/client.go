package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ObiAU/newsfeed/internal/models"
)

const maxBodyBytes = 10 << 20

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Source string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Source, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Source, e.Code, e.Body)
}

// Option configures a source adapter.
type Option func(*client)

// WithBaseURL points the adapter at a different endpoint root (used in tests).
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.http = hc
	}
}

// WithReporter sets the side channel that receives fetch failures.
func WithReporter(r models.ErrorReporter) Option {
	return func(c *client) {
		c.reporter = r
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *client) {
		c.logger = l
	}
}

// client holds what every adapter shares: identity, credentials, transport
// and the failure side channel.
type client struct {
	id       models.SourceID
	name     string
	apiKey   string
	baseURL  string
	http     *http.Client
	reporter models.ErrorReporter
	logger   *slog.Logger
}

func newClient(id models.SourceID, name, apiKey, baseURL string, opts []Option) client {
	c := client{
		id:      id,
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *client) ID() models.SourceID {
	return c.id
}

func (c *client) Name() string {
	return c.name
}

// guard runs fetch and converts any failure into an empty result, reporting
// it unless the context was cancelled by a newer cycle.
func (c *client) guard(ctx context.Context, fetch func(context.Context) ([]models.Article, error)) []models.Article {
	start := time.Now()
	articles, err := fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("fetch abandoned", "source", c.id, "error", ctx.Err())
			return []models.Article{}
		}
		c.logger.Warn("fetch failed", "source", c.id, "error", err)
		if c.reporter != nil {
			c.reporter.Report(c.name, err)
		}
		return []models.Article{}
	}

	c.logger.Debug("fetch complete", "source", c.id, "articles", len(articles), "took", time.Since(start))
	return articles
}

// getJSON issues a GET against endpoint with params and decodes the JSON
// response into out.
func (c *client) getJSON(ctx context.Context, endpoint string, params url.Values, header http.Header, out any) error {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Source: string(c.id), Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s read body: %w", c.id, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s decode: %w", c.id, err)
	}
	return nil
}

var errMissingKey = errors.New("api key not configured")
