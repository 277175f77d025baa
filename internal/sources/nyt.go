package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ObiAU/newsfeed/internal/filters"
	"github.com/ObiAU/newsfeed/internal/models"
)

const (
	nytBaseURL  = "https://api.nytimes.com/svc/search/v2"
	nytImageURL = "https://www.nytimes.com/"
)

type NYTClient struct {
	client
}

type NYTResponse struct {
	Status   string `json:"status"`
	Response struct {
		Docs []NYTDoc `json:"docs"`
	} `json:"response"`
}

type NYTDoc struct {
	ID       string `json:"_id"`
	WebURL   string `json:"web_url"`
	Abstract string `json:"abstract"`
	Snippet  string `json:"snippet"`
	PubDate  string `json:"pub_date"`
	Section  string `json:"section_name"`
	Headline struct {
		Main string `json:"main"`
	} `json:"headline"`
	// Byline is an object with "original", but older documents carry an
	// empty list instead.
	Byline json.RawMessage `json:"byline"`
	// Multimedia is a list of renditions in the legacy API and an object
	// keyed by rendition in the current one.
	Multimedia json.RawMessage `json:"multimedia"`
}

func NewNYTClient(apiKey string, opts ...Option) *NYTClient {
	return &NYTClient{
		client: newClient(models.SourceNYT, "The New York Times", apiKey, nytBaseURL, opts),
	}
}

func (c *NYTClient) FetchArticles(ctx context.Context, q models.NormalizedQuery) []models.Article {
	return c.guard(ctx, func(ctx context.Context) ([]models.Article, error) {
		if c.apiKey == "" {
			return nil, errMissingKey
		}
		sections := translateCategories(q.Category, nytSections)
		return fetchWithFallback(ctx, q, len(sections) > 0, func(ctx context.Context, withSection bool) ([]models.Article, error) {
			var fq []string
			if withSection {
				fq = append(fq, fqClause("section_name", sections))
			}
			if authors := filters.SplitList(q.Authors); len(authors) > 0 {
				fq = append(fq, fqClause("byline", authors))
			}
			return c.search(ctx, q, strings.Join(fq, " AND "))
		})
	})
}

func (c *NYTClient) search(ctx context.Context, q models.NormalizedQuery, fq string) ([]models.Article, error) {
	params := url.Values{}
	params.Set("api-key", c.apiKey)
	params.Set("sort", "newest")
	if q.Text != "" {
		params.Set("q", q.Text)
	}
	if fq != "" {
		params.Set("fq", fq)
	}
	if q.FromDate != "" {
		params.Set("begin_date", compactDate(q.FromDate))
	}
	if q.ToDate != "" {
		params.Set("end_date", compactDate(q.ToDate))
	}

	var apiResp NYTResponse
	if err := c.getJSON(ctx, "/articlesearch.json", params, nil, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.Status != "" && !strings.EqualFold(apiResp.Status, "OK") {
		return nil, fmt.Errorf("nyt error: status %s", apiResp.Status)
	}

	articles := make([]models.Article, 0, len(apiResp.Response.Docs))
	for _, doc := range apiResp.Response.Docs {
		articles = append(articles, models.Article{
			ID:          firstNonEmpty(doc.ID, doc.WebURL),
			Title:       doc.Headline.Main,
			Description: plainText(firstNonEmpty(doc.Abstract, doc.Snippet)),
			URL:         doc.WebURL,
			ImageURL:    nytImage(doc.Multimedia),
			PublishedAt: parseTime(doc.PubDate),
			Source:      c.name,
			Category:    firstNonEmpty(q.Category, doc.Section),
			Author:      nytByline(doc.Byline),
		})
	}

	return articles, nil
}

// fqClause renders field:("a" "b"), the filter query syntax for matching any
// of several values.
func fqClause(field string, values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, `"`+strings.ReplaceAll(v, `"`, "")+`"`)
	}
	return field + ":(" + strings.Join(quoted, " ") + ")"
}

func nytImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var legacy []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &legacy); err == nil {
		if len(legacy) == 0 {
			return ""
		}
		return absoluteNYTURL(legacy[0].URL)
	}

	var current struct {
		Default struct {
			URL string `json:"url"`
		} `json:"default"`
		Thumbnail struct {
			URL string `json:"url"`
		} `json:"thumbnail"`
	}
	if err := json.Unmarshal(raw, &current); err == nil {
		return absoluteNYTURL(firstNonEmpty(current.Default.URL, current.Thumbnail.URL))
	}
	return ""
}

func nytByline(raw json.RawMessage) string {
	var byline struct {
		Original string `json:"original"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &byline) != nil {
		return ""
	}
	return strings.TrimSpace(byline.Original)
}

func absoluteNYTURL(u string) string {
	if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return nytImageURL + strings.TrimLeft(u, "/")
}
