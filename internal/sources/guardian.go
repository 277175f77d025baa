package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ObiAU/newsfeed/internal/models"
)

const guardianBaseURL = "https://content.guardianapis.com"

type GuardianClient struct {
	client
}

type GuardianResponse struct {
	Response struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Total   int    `json:"total"`
		Results []struct {
			ID                 string `json:"id"`
			SectionName        string `json:"sectionName"`
			WebTitle           string `json:"webTitle"`
			WebURL             string `json:"webUrl"`
			WebPublicationDate string `json:"webPublicationDate"`
			Fields             *struct {
				Thumbnail string `json:"thumbnail"`
				TrailText string `json:"trailText"`
				Byline    string `json:"byline"`
			} `json:"fields"`
		} `json:"results"`
	} `json:"response"`
}

func NewGuardianClient(apiKey string, opts ...Option) *GuardianClient {
	return &GuardianClient{
		client: newClient(models.SourceGuardian, "The Guardian", apiKey, guardianBaseURL, opts),
	}
}

func (c *GuardianClient) FetchArticles(ctx context.Context, q models.NormalizedQuery) []models.Article {
	return c.guard(ctx, func(ctx context.Context) ([]models.Article, error) {
		if c.apiKey == "" {
			return nil, errMissingKey
		}
		sections := translateCategories(q.Category, guardianSections)
		return fetchWithFallback(ctx, q, len(sections) > 0, func(ctx context.Context, withSection bool) ([]models.Article, error) {
			var section string
			if withSection {
				section = strings.Join(sections, "|")
			}
			return c.search(ctx, q, section)
		})
	})
}

// The search endpoint has no byline filter, so authors are not sent.
func (c *GuardianClient) search(ctx context.Context, q models.NormalizedQuery, section string) ([]models.Article, error) {
	params := url.Values{}
	params.Set("api-key", c.apiKey)
	params.Set("show-fields", "thumbnail,trailText,byline")
	params.Set("order-by", "newest")
	params.Set("page-size", "50")
	if q.Text != "" {
		params.Set("q", q.Text)
	}
	if section != "" {
		params.Set("section", section)
	}
	if q.FromDate != "" {
		params.Set("from-date", q.FromDate)
	}
	if q.ToDate != "" {
		params.Set("to-date", q.ToDate)
	}

	var apiResp GuardianResponse
	if err := c.getJSON(ctx, "/search", params, nil, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.Response.Status != "" && apiResp.Response.Status != "ok" {
		return nil, fmt.Errorf("guardian error: %s", apiResp.Response.Message)
	}

	articles := make([]models.Article, 0, len(apiResp.Response.Results))
	for _, result := range apiResp.Response.Results {
		article := models.Article{
			ID:          result.ID,
			Title:       result.WebTitle,
			URL:         result.WebURL,
			PublishedAt: parseTime(result.WebPublicationDate),
			Source:      c.name,
			Category:    firstNonEmpty(q.Category, result.SectionName),
		}
		if result.Fields != nil {
			article.Description = plainText(result.Fields.TrailText)
			article.ImageURL = result.Fields.Thumbnail
			article.Author = result.Fields.Byline
		}
		articles = append(articles, article)
	}

	return articles, nil
}
