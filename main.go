package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ObiAU/newsfeed/internal/aggregator"
	"github.com/ObiAU/newsfeed/internal/ai"
	"github.com/ObiAU/newsfeed/internal/config"
	"github.com/ObiAU/newsfeed/internal/feed"
	"github.com/ObiAU/newsfeed/internal/logger"
	"github.com/ObiAU/newsfeed/internal/models"
	"github.com/ObiAU/newsfeed/internal/notify"
	"github.com/ObiAU/newsfeed/internal/prefs"
	"github.com/ObiAU/newsfeed/internal/server"
	"github.com/ObiAU/newsfeed/internal/sources"
	"github.com/ObiAU/newsfeed/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		slog.Error("news feed failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s preference store: %w", cfg.PrefsBackend, err)
	}
	defer closeBackend.Close()

	store, err := prefs.Load(ctx, backend, log)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}

	// The bot is created after the adapters but still receives their failures.
	botReporter := &notify.Deferred{}
	reporter := notify.Multi{notify.NewLogReporter(log), botReporter}

	newsSources := newSources(cfg, reporter, log)
	agg := aggregator.New(newsSources, aggregator.WithDedup(cfg.DedupArticles), aggregator.WithLogger(log))
	ctrl := feed.NewController(agg, feed.WithTimeout(cfg.FetchTimeout), feed.WithLogger(log))
	session := feed.NewSession(ctx, store, ctrl, cfg.DebounceInterval, log)
	defer session.Close()

	var webhook http.Handler
	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, cfg.TelegramWebhookURL, cfg.TelegramChatID, log)
		if err != nil {
			log.Error("telegram disabled", "error", err)
		}
	}
	if bot != nil {
		opts := []telegram.HandlerOption{
			telegram.WithPreviewSize(cfg.FeedPreviewSize),
			telegram.WithLogger(log),
		}
		if cfg.OpenAIAPIKey != "" {
			opts = append(opts, telegram.WithBriefer(ai.NewBriefer(cfg.OpenAIAPIKey)))
		}
		handler := telegram.NewHandler(store, session, bot, opts...)
		session.Subscribe(handler.OnState)
		botReporter.Attach(bot)

		if err := bot.Start(ctx, handler); err != nil {
			log.Error("failed to start telegram bot", "error", err)
		} else if cfg.TelegramWebhookURL != "" {
			webhook = bot.WebhookHandler(ctx)
		}
		defer bot.Stop()
	}

	router := server.NewRouter(server.NewHandler(store, session, agg, log), cfg.AllowedOrigins, webhook)
	srv := server.New(cfg.ServerPort, router, log)

	go func() {
		if err := srv.Run(); err != nil {
			log.Error("http server failed", "error", err)
			cancel()
		}
	}()

	log.Info("news feed started", "sources", len(store.EnabledSources()), "prefs_backend", cfg.PrefsBackend)
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}
	log.Info("news feed stopped gracefully")
	return nil
}

func newSources(cfg *config.Config, reporter models.ErrorReporter, log *slog.Logger) []models.NewsSource {
	opts := []sources.Option{sources.WithReporter(reporter), sources.WithLogger(log)}

	keys := map[models.SourceID]string{
		models.SourceNewsAPI:  cfg.NewsAPIKey,
		models.SourceGuardian: cfg.GuardianAPIKey,
		models.SourceNYT:      cfg.NYTAPIKey,
	}
	for id, key := range keys {
		if key == "" {
			log.Warn("no api key configured, source will return nothing", "source", id)
		}
	}

	return []models.NewsSource{
		sources.NewNewsAPIClient(cfg.NewsAPIKey, opts...),
		sources.NewGuardianClient(cfg.GuardianAPIKey, opts...),
		sources.NewNYTClient(cfg.NYTAPIKey, opts...),
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openBackend(ctx context.Context, cfg *config.Config) (prefs.Backend, io.Closer, error) {
	switch cfg.PrefsBackend {
	case config.BackendMemory:
		return prefs.NewMemoryBackend(), nopCloser{}, nil
	case config.BackendRedis:
		b, err := prefs.NewRedisBackend(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	default:
		b, err := prefs.NewSQLiteBackend(cfg.PrefsDBPath)
		if err != nil {
			return nil, nil, err
		}
		return b, b, nil
	}
}
