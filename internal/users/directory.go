// Package users resolves user ids to display handles for feed and comment
// rendering.
package users

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/mindmerge-forum/internal/models"
	"github.com/pauljones0/mindmerge-forum/internal/util"
)

const (
	DefaultCacheTTL = 5 * time.Minute
	DefaultRetries  = 2
	maxConcurrent   = 5
)

// UserGetter reads a user record; a nil user with a nil error means the
// user does not exist.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type Directory struct {
	store   UserGetter
	cache   *handleCache
	retries int
	backoff util.Backoff
}

func NewDirectory(store UserGetter, cacheTTL time.Duration, retries int) *Directory {
	if retries < 0 {
		retries = 0
	}
	return &Directory{
		store:   store,
		cache:   newHandleCache(cacheTTL),
		retries: retries,
		backoff: util.DefaultBackoff,
	}
}

// Handle returns the user's handle, or models.UnknownUserHandle when the
// user is absent, has no handle, or cannot be looked up. It never fails.
func (d *Directory) Handle(ctx context.Context, id string) string {
	if id == "" {
		return models.UnknownUserHandle
	}
	if h, ok := d.cache.get(id); ok {
		return h
	}

	var user *models.User
	err := d.backoff.Retry(ctx, d.retries, func(attempt int) error {
		u, err := d.store.GetUser(ctx, id)
		if err != nil {
			if !transient(err) {
				return util.Permanent(err)
			}
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		slog.Warn("User lookup failed", "user", id, "error", err)
		return models.UnknownUserHandle
	}
	if user == nil || user.Handle == "" {
		return models.UnknownUserHandle
	}

	d.cache.set(id, user.Handle)
	return user.Handle
}

// Handles resolves each distinct id at most once, a few at a time.
func (d *Directory) Handles(ctx context.Context, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	var mu sync.Mutex

	seen := make(map[string]struct{}, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		g.Go(func() error {
			h := d.Handle(gctx, id)
			mu.Lock()
			out[id] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Forget drops any cached handle for id.
func (d *Directory) Forget(id string) {
	d.cache.invalidate(id)
}

func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}
