package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	NewsAPIKey         string
	GuardianAPIKey     string
	NYTAPIKey          string
	OpenAIAPIKey       string
	TelegramToken      string
	TelegramWebhookURL string
	TelegramChatID     int64
	ServerPort         string
	AllowedOrigins     []string
	PrefsBackend       string
	PrefsDBPath        string
	RedisURL           string
	DebounceInterval   time.Duration
	FetchTimeout       time.Duration
	DedupArticles      bool
	LogLevel           string
	LogFormat          string
	FeedPreviewSize    int
}

// Load reads a local .env if present, then the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		NewsAPIKey:         getEnv("NEWS_API_KEY", ""),
		GuardianAPIKey:     getEnv("GUARDIAN_API_KEY", ""),
		NYTAPIKey:          getEnv("NYT_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		TelegramToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookURL: getEnv("TELEGRAM_WEBHOOK_URL", ""),
		TelegramChatID:     getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:     getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		PrefsBackend:       strings.ToLower(getEnv("PREFS_BACKEND", BackendSQLite)),
		PrefsDBPath:        getEnv("PREFS_DB_PATH", "newsfeed.db"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DebounceInterval:   getEnvAsDuration("DEBOUNCE_INTERVAL", 500*time.Millisecond),
		FetchTimeout:       getEnvAsDuration("FETCH_TIMEOUT", 0),
		DedupArticles:      getEnvAsBool("DEDUP_ARTICLES", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		FeedPreviewSize:    getEnvAsInt("FEED_PREVIEW_SIZE", 5),
	}
}

func (c *Config) Validate() error {
	if c.NewsAPIKey == "" && c.GuardianAPIKey == "" && c.NYTAPIKey == "" {
		return errors.New("at least one of NEWS_API_KEY, GUARDIAN_API_KEY or NYT_API_KEY must be set")
	}
	switch c.PrefsBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown PREFS_BACKEND %q", c.PrefsBackend)
	}
	if c.TelegramChatID != 0 && c.TelegramToken == "" {
		return errors.New("TELEGRAM_CHAT_ID requires TELEGRAM_BOT_TOKEN")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
