package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageFirestore = "firestore"
	StorageMemory    = "memory"
)

type Config struct {
	ProjectID            string
	Port                 string
	Storage              string
	PostsCollection      string
	UsersCollection      string
	FeedPageSize         int
	SortedPageSize       int
	MaxPageSize          int
	CursorSecret         string
	TieBreakByID         bool
	UserCacheTTL         time.Duration
	UserLookupRetries    int
	ModerationWebhookURL string
	SearchDebounce       time.Duration
}

// Load reads the configuration from the environment. A .env file in the
// working directory, if present, fills in variables that are not already
// set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	storage := os.Getenv("STORAGE")
	if storage == "" {
		storage = StorageFirestore
	}
	if storage != StorageFirestore && storage != StorageMemory {
		return nil, fmt.Errorf("invalid STORAGE %q: want %q or %q", storage, StorageFirestore, StorageMemory)
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" && storage == StorageFirestore {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required but not set")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	cursorSecret := os.Getenv("CURSOR_SECRET")
	if cursorSecret == "" {
		slog.Warn("CURSOR_SECRET not set, cursor tokens will not survive a restart")
	}

	webhookURL := os.Getenv("MODERATION_WEBHOOK_URL")
	if webhookURL == "" {
		slog.Warn("MODERATION_WEBHOOK_URL not set, moderation notifications will be skipped")
	}

	cfg := &Config{
		ProjectID:            projectID,
		Port:                 port,
		Storage:              storage,
		PostsCollection:      envOr("POSTS_COLLECTION", "posts"),
		UsersCollection:      envOr("USERS_COLLECTION", "users"),
		CursorSecret:         cursorSecret,
		ModerationWebhookURL: webhookURL,
	}

	var err error
	if cfg.FeedPageSize, err = positiveInt("FEED_PAGE_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.SortedPageSize, err = positiveInt("SORTED_PAGE_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.MaxPageSize, err = positiveInt("MAX_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.FeedPageSize > cfg.MaxPageSize || cfg.SortedPageSize > cfg.MaxPageSize {
		return nil, fmt.Errorf("page sizes (%d, %d) exceed MAX_PAGE_SIZE %d", cfg.FeedPageSize, cfg.SortedPageSize, cfg.MaxPageSize)
	}
	if cfg.UserLookupRetries, err = nonNegativeInt("USER_LOOKUP_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.UserCacheTTL, err = duration("USER_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SearchDebounce, err = duration("SEARCH_DEBOUNCE", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if v := os.Getenv("TIE_BREAK_BY_ID"); v != "" {
		if cfg.TieBreakByID, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid TIE_BREAK_BY_ID %q: %w", v, err)
		}
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	n, err := nonNegativeInt(key, def)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, os.Getenv(key))
	}
	return n, nil
}

func nonNegativeInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, v)
	}
	return n, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
