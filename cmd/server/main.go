package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pauljones0/mindmerge-forum/internal/api"
	"github.com/pauljones0/mindmerge-forum/internal/config"
	"github.com/pauljones0/mindmerge-forum/internal/feed"
	"github.com/pauljones0/mindmerge-forum/internal/models"
	"github.com/pauljones0/mindmerge-forum/internal/notifier"
	"github.com/pauljones0/mindmerge-forum/internal/posts"
	"github.com/pauljones0/mindmerge-forum/internal/ranking"
	"github.com/pauljones0/mindmerge-forum/internal/storage"
	"github.com/pauljones0/mindmerge-forum/internal/storage/memory"
	"github.com/pauljones0/mindmerge-forum/internal/users"
	"github.com/pauljones0/mindmerge-forum/internal/votes"
)

// store is everything the services need from a backend.
type store interface {
	feed.PostReader
	posts.Store
	votes.PostTransactor
	users.UserGetter
	Close() error
}

var (
	_ store = (*storage.Client)(nil)
	_ store = (*memory.Store)(nil)
)

func main() {
	slog.Info("Starting MindMerge forum server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Critical error initializing storage", "storage", cfg.Storage, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	dir := users.NewDirectory(st, cfg.UserCacheTTL, cfg.UserLookupRetries)
	engine := ranking.New(ranking.Options{TieBreakByID: cfg.TieBreakByID})
	handler := api.NewHandler(
		feed.NewService(st, dir, engine, cfg.MaxPageSize),
		posts.NewService(st, dir, notifier.New(cfg.ModerationWebhookURL)),
		votes.NewService(st),
		ranking.NewCodec(cursorSecret(cfg)),
		api.PageSizes{Feed: cfg.FeedPageSize, Sorted: cfg.SortedPageSize},
	)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port, "storage", cfg.Storage)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	if cfg.Storage == config.StorageMemory {
		slog.Warn("Using in-memory storage, data is lost on restart")
		m := memory.New()
		m.PutUser(models.User{ID: "admin", Handle: "admin", Role: models.RoleAdmin})
		return m, nil
	}
	return storage.New(ctx, cfg.ProjectID, cfg.PostsCollection, cfg.UsersCollection)
}

// cursorSecret falls back to a per-process random secret, so tokens issued
// before a restart stop validating.
func cursorSecret(cfg *config.Config) string {
	if cfg.CursorSecret != "" {
		return cfg.CursorSecret
	}
	return ranking.RandomSecret()
}
