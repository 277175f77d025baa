package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ObiAU/newsfeed/internal/models"
)

const newsAPIBaseURL = "https://newsapi.org/v2"

type NewsAPIClient struct {
	client
}

type NewsAPIResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
	} `json:"articles"`
}

func NewNewsAPIClient(apiKey string, opts ...Option) *NewsAPIClient {
	return &NewsAPIClient{
		client: newClient(models.SourceNewsAPI, "NewsAPI", apiKey, newsAPIBaseURL, opts),
	}
}

func (c *NewsAPIClient) FetchArticles(ctx context.Context, q models.NormalizedQuery) []models.Article {
	return c.guard(ctx, func(ctx context.Context) ([]models.Article, error) {
		return c.fetch(ctx, q)
	})
}

// fetch uses /everything for plain text searches, where date bounds are
// honoured upstream, and /top-headlines whenever a category is involved since
// only that endpoint takes one. Dates are always re-checked locally because
// /top-headlines ignores them.
func (c *NewsAPIClient) fetch(ctx context.Context, q models.NormalizedQuery) ([]models.Article, error) {
	if c.apiKey == "" {
		return nil, errMissingKey
	}

	categories := translateCategories(q.Category, newsAPICategories)
	params := url.Values{}
	endpoint := "/top-headlines"

	if q.Text != "" && len(categories) == 0 {
		endpoint = "/everything"
		params.Set("q", q.Text)
		params.Set("sortBy", "publishedAt")
		params.Set("language", "en")
		if q.FromDate != "" {
			params.Set("from", q.FromDate)
		}
		if q.ToDate != "" {
			params.Set("to", q.ToDate)
		}
	} else {
		params.Set("country", "us")
		if q.Text != "" {
			params.Set("q", q.Text)
		}
		if len(categories) > 0 {
			params.Set("category", categories[0])
		}
	}
	params.Set("pageSize", "100")

	header := http.Header{}
	header.Set("X-Api-Key", c.apiKey)

	var apiResp NewsAPIResponse
	if err := c.getJSON(ctx, endpoint, params, header, &apiResp); err != nil {
		return nil, err
	}

	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("newsapi error: %s %s", apiResp.Code, apiResp.Message)
	}

	category := firstNonEmpty(q.Category, "general")
	articles := make([]models.Article, 0, len(apiResp.Articles))
	for _, apiArticle := range apiResp.Articles {
		if apiArticle.URL == "" || apiArticle.Title == "[Removed]" {
			continue
		}

		articles = append(articles, models.Article{
			ID:          apiArticle.URL,
			Title:       apiArticle.Title,
			Description: plainText(firstNonEmpty(apiArticle.Description, apiArticle.Content)),
			URL:         apiArticle.URL,
			ImageURL:    apiArticle.URLToImage,
			PublishedAt: parseTime(apiArticle.PublishedAt),
			Source:      firstNonEmpty(apiArticle.Source.Name, c.name),
			Category:    category,
			Author:      apiArticle.Author,
		})
	}

	return filterByDate(articles, q.FromDate, q.ToDate), nil
}
