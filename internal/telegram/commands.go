package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"

	"github.com/ObiAU/newsfeed/internal/feed"
	"github.com/ObiAU/newsfeed/internal/filters"
	"github.com/ObiAU/newsfeed/internal/models"
	"github.com/ObiAU/newsfeed/internal/prefs"
)

const defaultPreviewSize = 5

type Sender interface {
	Send(chatID int64, text string) error
}

// Feed is the part of feed.Session the bot needs.
type Feed interface {
	State() feed.State
	RefreshNow(ctx context.Context) feed.State
}

type Briefer interface {
	Brief(ctx context.Context, articles []models.Article) (string, error)
}

// Handler turns chat commands into preference changes and renders the feed
// back as HTML messages.
type Handler struct {
	store       *prefs.Store
	feed        Feed
	sender      Sender
	briefer     Briefer
	previewSize int
	logger      *slog.Logger

	mu         sync.Mutex
	activeChat int64
	lastPushed uint64
}

type HandlerOption func(*Handler)

func WithBriefer(b Briefer) HandlerOption {
	return func(h *Handler) {
		h.briefer = b
	}
}

func WithPreviewSize(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.previewSize = n
		}
	}
}

func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

func NewHandler(store *prefs.Store, f Feed, sender Sender, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:       store,
		feed:        f,
		sender:      sender,
		previewSize: defaultPreviewSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Handle(ctx context.Context, chatID int64, text string) {
	text = strings.TrimSpace(text)
	command, arg := splitCommand(text)

	switch command {
	case "/start":
		h.handleStart(chatID)
	case "/help":
		h.handleHelp(chatID)
	case "/search":
		h.setSearch(ctx, chatID, arg)
	case "/category":
		list := filters.SplitList(arg)
		h.applyPatch(ctx, chatID, prefs.Patch{Categories: &list}, "Categories", strings.Join(list, ", "))
	case "/author":
		list := filters.SplitList(arg)
		h.applyPatch(ctx, chatID, prefs.Patch{Authors: &list}, "Authors", strings.Join(list, ", "))
	case "/from":
		h.applyPatch(ctx, chatID, prefs.Patch{FromDate: &arg}, "From date", arg)
	case "/to":
		h.applyPatch(ctx, chatID, prefs.Patch{ToDate: &arg}, "To date", arg)
	case "/reset":
		h.handleReset(ctx, chatID)
	case "/sources":
		h.handleSources(chatID)
	case "/toggle":
		h.handleToggle(ctx, chatID, arg)
	case "/feed":
		h.handleFeed(ctx, chatID)
	case "/brief":
		h.handleBrief(ctx, chatID)
	default:
		h.reply(chatID, "Unknown command. Use /help for available commands.")
	}
}

// OnState pushes a finished cycle to the chat that last changed the filters.
func (h *Handler) OnState(st feed.State) {
	if st.Loading || !st.HasFetched {
		return
	}

	h.mu.Lock()
	chatID := h.activeChat
	h.mu.Unlock()

	if chatID != 0 && h.claimPush(st.Seq) {
		h.reply(chatID, h.formatPreview(st))
	}
}

// claimPush records seq as delivered and reports whether it was new.
func (h *Handler) claimPush(seq uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if seq <= h.lastPushed {
		return false
	}
	h.lastPushed = seq
	return true
}

func splitCommand(text string) (string, string) {
	command, arg, _ := strings.Cut(text, " ")
	// "/search@MyBot climate" in group chats
	command, _, _ = strings.Cut(command, "@")
	return strings.ToLower(command), strings.TrimSpace(arg)
}

func (h *Handler) handleStart(chatID int64) {
	h.setActive(chatID)
	h.reply(chatID, `Welcome to the news feed! 📰

I search NewsAPI, The Guardian and The New York Times at once and merge the results, newest first.

Start with /search climate or /category technology. Use /help for every command.`)
}

func (h *Handler) handleHelp(chatID int64) {
	h.reply(chatID, `News feed help 📖

Filters:
/search &lt;text&gt; - Set the search text (empty clears it)
/category &lt;a,b&gt; - Set categories
/author &lt;a,b&gt; - Set authors
/from &lt;YYYY-MM-DD&gt; - Set the start date (empty clears it)
/to &lt;YYYY-MM-DD&gt; - Set the end date (empty clears it)
/reset - Clear every filter

Sources:
/sources - List sources
/toggle &lt;id&gt; - Enable or disable a source

Feed:
/feed - Show the latest results
/brief - Summarise the latest results`)
}

func (h *Handler) setSearch(ctx context.Context, chatID int64, text string) {
	h.applyPatch(ctx, chatID, prefs.Patch{Search: &text}, "Search", text)
}

func (h *Handler) applyPatch(ctx context.Context, chatID int64, patch prefs.Patch, label, value string) {
	h.setActive(chatID)

	if _, err := h.store.SetFilters(ctx, patch); err != nil {
		switch {
		case errors.Is(err, filters.ErrInvalidDate), errors.Is(err, filters.ErrInvertedRange):
			h.reply(chatID, fmt.Sprintf("⚠️ %s", html.EscapeString(err.Error())))
		default:
			h.logger.Error("failed to save filters", "error", err)
			h.reply(chatID, "Could not save your filters, please try again.")
		}
		return
	}

	if value == "" {
		h.reply(chatID, fmt.Sprintf("%s cleared.", label))
		return
	}
	h.reply(chatID, fmt.Sprintf("%s set to <b>%s</b>. Fetching...", label, html.EscapeString(value)))
}

func (h *Handler) handleReset(ctx context.Context, chatID int64) {
	h.setActive(chatID)
	if _, err := h.store.ResetFilters(ctx); err != nil {
		h.logger.Error("failed to reset filters", "error", err)
		h.reply(chatID, "Could not reset your filters, please try again.")
		return
	}
	h.reply(chatID, "All filters cleared.")
}

func (h *Handler) handleSources(chatID int64) {
	var sb strings.Builder
	sb.WriteString("Sources 📋\n\n")
	for _, s := range h.store.Sources() {
		mark := "❌"
		if s.Enabled {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s (<code>%s</code>)\n", mark, html.EscapeString(s.Name), s.ID))
	}
	sb.WriteString("\nUse /toggle &lt;id&gt; to switch one on or off.")
	h.reply(chatID, sb.String())
}

func (h *Handler) handleToggle(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		h.reply(chatID, "Usage: /toggle &lt;id&gt;, see /sources for ids.")
		return
	}
	h.setActive(chatID)

	desc, err := h.store.ToggleSource(ctx, models.SourceID(strings.ToLower(arg)))
	switch {
	case errors.Is(err, prefs.ErrLastSource):
		h.reply(chatID, "⚠️ At least one source must stay enabled.")
	case errors.Is(err, prefs.ErrUnknownSource):
		h.reply(chatID, fmt.Sprintf("Unknown source <code>%s</code>, see /sources.", html.EscapeString(arg)))
	case err != nil:
		h.logger.Error("failed to toggle source", "source", arg, "error", err)
		h.reply(chatID, "Could not update sources, please try again.")
	case desc.Enabled:
		h.reply(chatID, fmt.Sprintf("%s enabled.", html.EscapeString(desc.Name)))
	default:
		h.reply(chatID, fmt.Sprintf("%s disabled.", html.EscapeString(desc.Name)))
	}
}

func (h *Handler) handleFeed(ctx context.Context, chatID int64) {
	h.setActive(chatID)

	st := h.feed.State()
	if st.HasFetched {
		h.reply(chatID, h.formatPreview(st))
		return
	}

	st = h.feed.RefreshNow(ctx)
	if !st.HasFetched {
		h.reply(chatID, "No filters set yet. Try /search climate.")
		return
	}
	// OnState may already have pushed this cycle while it completed.
	if h.claimPush(st.Seq) {
		h.reply(chatID, h.formatPreview(st))
	}
}

func (h *Handler) handleBrief(ctx context.Context, chatID int64) {
	if h.briefer == nil {
		h.reply(chatID, "Briefings are not configured.")
		return
	}

	st := h.feed.State()
	if len(st.Articles) == 0 {
		h.reply(chatID, "Nothing to brief yet. Set a filter first.")
		return
	}

	brief, err := h.briefer.Brief(ctx, st.Articles)
	if err != nil {
		h.logger.Error("briefing failed", "error", err)
		h.reply(chatID, "Could not write a briefing right now.")
		return
	}
	h.reply(chatID, "🧠 Briefing\n\n"+html.EscapeString(brief))
}

func (h *Handler) formatPreview(st feed.State) string {
	if len(st.Articles) == 0 {
		return "No articles match your filters."
	}

	articles := st.Articles
	if len(articles) > h.previewSize {
		articles = articles[:h.previewSize]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📰 %d articles, newest first\n", len(st.Articles)))
	for _, a := range articles {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(a.Title)))
		meta := html.EscapeString(a.Source)
		if !a.PublishedAt.IsZero() {
			meta += ", " + a.PublishedAt.Format(filters.DateLayout)
		}
		sb.WriteString(meta + "\n")
		if a.URL != "" {
			sb.WriteString(fmt.Sprintf("<a href=\"%s\">Read more</a>\n", html.EscapeString(a.URL)))
		}
	}
	return sb.String()
}

func (h *Handler) setActive(chatID int64) {
	h.mu.Lock()
	h.activeChat = chatID
	h.mu.Unlock()
}

func (h *Handler) reply(chatID int64, text string) {
	if err := h.sender.Send(chatID, text); err != nil {
		h.logger.Error("failed to send telegram message", "chat", chatID, "error", err)
	}
}
