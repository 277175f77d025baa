package server

import (
	"time"

	"github.com/ObiAU/newsfeed/internal/feed"
	"github.com/ObiAU/newsfeed/internal/models"
	"github.com/ObiAU/newsfeed/internal/prefs"
)

type ArticleResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Source      string `json:"source"`
	Category    string `json:"category,omitempty"`
	Author      string `json:"author,omitempty"`
}

type QueryResponse struct {
	Text     string `json:"text,omitempty"`
	Category string `json:"category,omitempty"`
	Authors  string `json:"authors,omitempty"`
	FromDate string `json:"from_date,omitempty"`
	ToDate   string `json:"to_date,omitempty"`
}

type FeedResponse struct {
	Articles   []ArticleResponse `json:"articles"`
	Loading    bool              `json:"loading"`
	HasFetched bool              `json:"has_fetched"`
	Seq        uint64            `json:"seq"`
	CycleID    string            `json:"cycle_id,omitempty"`
	Query      QueryResponse     `json:"query"`
}

type SearchResponse struct {
	Articles []ArticleResponse `json:"articles"`
	Fetched  bool              `json:"fetched"`
}

type FiltersResponse struct {
	Search     string   `json:"search"`
	Categories []string `json:"categories"`
	Authors    []string `json:"authors"`
	FromDate   string   `json:"from_date"`
	ToDate     string   `json:"to_date"`
}

// FiltersRequest is a partial update; omitted fields are left as they are.
type FiltersRequest struct {
	Search     *string   `json:"search"`
	Categories *[]string `json:"categories"`
	Authors    *[]string `json:"authors"`
	FromDate   *string   `json:"from_date"`
	ToDate     *string   `json:"to_date"`
}

type SourceResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func toArticleResponses(articles []models.Article) []ArticleResponse {
	res := make([]ArticleResponse, 0, len(articles))
	for _, a := range articles {
		article := ArticleResponse{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			ImageURL:    a.ImageURL,
			Source:      a.Source,
			Category:    a.Category,
			Author:      a.Author,
		}
		if !a.PublishedAt.IsZero() {
			article.PublishedAt = a.PublishedAt.Format(time.RFC3339)
		}
		res = append(res, article)
	}
	return res
}

func toFeedResponse(st feed.State) FeedResponse {
	return FeedResponse{
		Articles:   toArticleResponses(st.Articles),
		Loading:    st.Loading,
		HasFetched: st.HasFetched,
		Seq:        st.Seq,
		CycleID:    st.CycleID,
		Query: QueryResponse{
			Text:     st.Query.Text,
			Category: st.Query.Category,
			Authors:  st.Query.Authors,
			FromDate: st.Query.FromDate,
			ToDate:   st.Query.ToDate,
		},
	}
}

func toFiltersResponse(fs models.FilterState) FiltersResponse {
	res := FiltersResponse{
		Search:     fs.Search,
		Categories: fs.Categories,
		Authors:    fs.Authors,
		FromDate:   fs.FromDate,
		ToDate:     fs.ToDate,
	}
	if res.Categories == nil {
		res.Categories = []string{}
	}
	if res.Authors == nil {
		res.Authors = []string{}
	}
	return res
}

func toSourceResponses(sources []models.SourceDescriptor) []SourceResponse {
	res := make([]SourceResponse, 0, len(sources))
	for _, s := range sources {
		res = append(res, toSourceResponse(s))
	}
	return res
}

func toSourceResponse(s models.SourceDescriptor) SourceResponse {
	return SourceResponse{ID: string(s.ID), Name: s.Name, Enabled: s.Enabled}
}

func (r FiltersRequest) patch() prefs.Patch {
	return prefs.Patch{
		Search:     r.Search,
		Categories: r.Categories,
		Authors:    r.Authors,
		FromDate:   r.FromDate,
		ToDate:     r.ToDate,
	}
}
