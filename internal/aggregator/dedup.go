package aggregator

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"

	"github.com/ObiAU/newsfeed/internal/models"
)

// Dedup drops later occurrences of the same story. Articles are keyed by
// canonical URL, or by title and publish date when they carry no usable URL.
func Dedup(articles []models.Article) []models.Article {
	seen := make(map[string]bool, len(articles))
	kept := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		key := dedupKey(a)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, a)
	}
	return kept
}

func dedupKey(a models.Article) string {
	if canonical := canonicalURL(a.URL); canonical != "" {
		return generateHash("url:" + canonical)
	}
	title := strings.ToLower(strings.Join(strings.Fields(a.Title), " "))
	return generateHash("title:" + title + "|" + a.PublishedAt.UTC().Format("2006-01-02"))
}

func canonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + strings.TrimRight(u.Path, "/")
}

func generateHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}
