package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot is the Telegram transport: it delivers updates to a Handler and sends
// messages on its behalf.
type Bot struct {
	api        *tgbotapi.BotAPI
	webhookURL string
	chatID     int64
	logger     *slog.Logger

	mu      sync.RWMutex
	handler *Handler
	polling bool
}

// NewBot connects to the Bot API. chatID, when non-zero, receives source
// failure notices.
func NewBot(token, webhookURL string, chatID int64, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Bot{
		api:        api,
		webhookURL: webhookURL,
		chatID:     chatID,
		logger:     logger,
	}, nil
}

// Start registers the webhook when one is configured, otherwise it begins
// long polling until ctx is done.
func (b *Bot) Start(ctx context.Context, handler *Handler) error {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()

	if b.webhookURL != "" {
		return b.startWebhook()
	}
	return b.startPolling(ctx)
}

func (b *Bot) startWebhook() error {
	webhook, err := tgbotapi.NewWebhook(b.webhookURL)
	if err != nil {
		return err
	}

	if _, err := b.api.Request(webhook); err != nil {
		return err
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return err
	}

	if info.LastErrorDate != 0 {
		b.logger.Warn("telegram webhook last error", "error", info.LastErrorMessage)
	}

	b.logger.Info("telegram webhook registered", "url", b.webhookURL)
	return nil
}

func (b *Bot) startPolling(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to clear webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.mu.Lock()
	b.polling = true
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				b.handleUpdate(ctx, update)
			}
		}
	}()

	b.logger.Info("telegram long polling started", "bot", b.api.Self.UserName)
	return nil
}

// WebhookHandler serves Telegram's webhook callbacks. Updates are handled in
// the background so the callback returns at once.
func (b *Bot) WebhookHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		update, err := b.api.HandleUpdate(r)
		if err != nil {
			b.logger.Warn("invalid telegram update", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		go b.handleUpdate(ctx, *update)
		w.WriteHeader(http.StatusOK)
	})
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}

	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()
	if handler == nil {
		return
	}

	handler.Handle(ctx, update.Message.Chat.ID, update.Message.Text)
}

// Send implements Sender.
func (b *Bot) Send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := b.api.Send(msg)
	return err
}

// Report implements models.ErrorReporter by posting a notice to the
// configured chat.
func (b *Bot) Report(source string, err error) {
	if b.chatID == 0 {
		return
	}
	text := fmt.Sprintf("⚠️ %s is unavailable: %s", html.EscapeString(source), html.EscapeString(err.Error()))
	go func() {
		if sendErr := b.Send(b.chatID, text); sendErr != nil {
			b.logger.Error("failed to send failure notice", "source", source, "error", sendErr)
		}
	}()
}

func (b *Bot) Stop() {
	b.mu.RLock()
	polling := b.polling
	b.mu.RUnlock()

	if polling {
		b.api.StopReceivingUpdates()
	}
}
