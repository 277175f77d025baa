package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/ObiAU/newsfeed/internal/models"
)

const defaultBriefingSize = 10

// Briefer writes a short digest of the current feed with an OpenAI chat model.
type Briefer struct {
	client openai.Client
	model  openai.ChatModel
	limit  int
}

func NewBriefer(apiKey string, opts ...option.RequestOption) *Briefer {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Briefer{
		client: openai.NewClient(opts...),
		model:  openai.ChatModelGPT4oMini,
		limit:  defaultBriefingSize,
	}
}

// Brief summarises the newest articles. It returns an error rather than an
// empty briefing when there is nothing to summarise.
func (b *Briefer) Brief(ctx context.Context, articles []models.Article) (string, error) {
	if len(articles) == 0 {
		return "", fmt.Errorf("no articles to brief")
	}
	if len(articles) > b.limit {
		articles = articles[:b.limit]
	}

	response, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: b.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a news editor. Write a neutral briefing of at most five bullet points from the headlines you are given. Do not invent facts."),
			openai.UserMessage(buildBriefingPrompt(articles)),
		},
		Temperature: openai.Float(0.2),
		MaxTokens:   openai.Int(400),
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func buildBriefingPrompt(articles []models.Article) string {
	var sb strings.Builder
	sb.WriteString("Headlines, newest first:\n\n")

	for i, article := range articles {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, article.Title))
		sb.WriteString(fmt.Sprintf("Source: %s", article.Source))
		if !article.PublishedAt.IsZero() {
			sb.WriteString(fmt.Sprintf(", %s", article.PublishedAt.Format("2006-01-02")))
		}
		sb.WriteString("\n")
		if article.Description != "" {
			sb.WriteString(fmt.Sprintf("Summary: %s\n", article.Description))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
