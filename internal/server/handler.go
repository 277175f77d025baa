package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ObiAU/newsfeed/internal/feed"
	"github.com/ObiAU/newsfeed/internal/filters"
	"github.com/ObiAU/newsfeed/internal/models"
	"github.com/ObiAU/newsfeed/internal/prefs"
)

type FeedView interface {
	State() feed.State
	RefreshNow(ctx context.Context) feed.State
}

type Aggregator interface {
	Aggregate(ctx context.Context, query models.NormalizedQuery, enabled []models.SourceDescriptor) []models.Article
}

type Handler struct {
	store  *prefs.Store
	feed   FeedView
	agg    Aggregator
	logger *slog.Logger
}

func NewHandler(store *prefs.Store, f FeedView, agg Aggregator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, feed: f, agg: agg, logger: logger}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"enabled_sources": len(h.store.EnabledSources()),
	})
}

// GetFeed returns the session feed. ?refresh=true runs a cycle first; the
// cycle outlives the request so a disconnecting client cannot abandon the
// shared feed.
func (h *Handler) GetFeed(c *gin.Context) {
	st := h.feed.State()
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		st = h.feed.RefreshNow(context.WithoutCancel(c.Request.Context()))
	}
	c.JSON(http.StatusOK, toFeedResponse(st))
}

func (h *Handler) GetFilters(c *gin.Context) {
	c.JSON(http.StatusOK, toFiltersResponse(h.store.Filters()))
}

func (h *Handler) PatchFilters(c *gin.Context) {
	var req FiltersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	snap, err := h.store.SetFilters(c.Request.Context(), req.patch())
	if err != nil {
		if isDateError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("error saving filters", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage error"})
		return
	}

	c.JSON(http.StatusOK, toFiltersResponse(snap.Filters))
}

func (h *Handler) ResetFilters(c *gin.Context) {
	snap, err := h.store.ResetFilters(c.Request.Context())
	if err != nil {
		h.logger.Error("error resetting filters", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage error"})
		return
	}
	c.JSON(http.StatusOK, toFiltersResponse(snap.Filters))
}

func (h *Handler) GetSources(c *gin.Context) {
	c.JSON(http.StatusOK, toSourceResponses(h.store.Sources()))
}

func (h *Handler) ToggleSource(c *gin.Context) {
	id := models.SourceID(strings.ToLower(c.Param("id")))

	desc, err := h.store.ToggleSource(c.Request.Context(), id)
	switch {
	case errors.Is(err, prefs.ErrLastSource):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "At least one source must stay enabled",
			"source": toSourceResponse(desc),
		})
	case errors.Is(err, prefs.ErrUnknownSource):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
	case err != nil:
		h.logger.Error("error toggling source", "source", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage error"})
	default:
		c.JSON(http.StatusOK, toSourceResponse(desc))
	}
}

// Search runs one stateless aggregation from query parameters. It neither
// reads nor writes the stored filters; only the source toggles default from
// the store.
func (h *Handler) Search(c *gin.Context) {
	fs := models.FilterState{
		Search:     c.Query("q"),
		Categories: filters.SplitList(c.Query("category")),
		Authors:    filters.SplitList(c.Query("authors")),
		FromDate:   c.Query("from"),
		ToDate:     c.Query("to"),
	}
	if err := filters.ValidateDates(fs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled, err := h.searchSources(c.Query("sources"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !filters.ShouldFetch(fs) {
		c.JSON(http.StatusOK, SearchResponse{Articles: []ArticleResponse{}, Fetched: false})
		return
	}

	articles := h.agg.Aggregate(c.Request.Context(), filters.Normalize(fs), enabled)
	c.JSON(http.StatusOK, SearchResponse{Articles: toArticleResponses(articles), Fetched: true})
}

func (h *Handler) searchSources(raw string) ([]models.SourceDescriptor, error) {
	ids := filters.SplitList(raw)
	if len(ids) == 0 {
		return h.store.EnabledSources(), nil
	}

	known := make(map[models.SourceID]models.SourceDescriptor)
	for _, s := range models.DefaultSources() {
		known[s.ID] = s
	}

	var enabled []models.SourceDescriptor
	seen := make(map[models.SourceID]bool)
	for _, part := range ids {
		id := models.SourceID(strings.ToLower(part))
		desc, ok := known[id]
		if !ok {
			return nil, errors.New("unknown source: " + part)
		}
		if !seen[id] {
			seen[id] = true
			enabled = append(enabled, desc)
		}
	}
	return enabled, nil
}

func isDateError(err error) bool {
	return errors.Is(err, filters.ErrInvalidDate) || errors.Is(err, filters.ErrInvertedRange)
}
