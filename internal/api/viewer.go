package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

// Headers set by the authenticating proxy in front of this service.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

type viewerKey struct{}

// WithViewer attaches the caller identity from the proxy headers. A request
// without a user id is a guest.
func WithViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := models.Viewer{
			UserID: strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Role:   strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))),
		}
		if v.UserID == "" {
			v = models.Guest
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), viewerKey{}, v)))
	})
}

// ViewerFrom returns the viewer stored by WithViewer, or a guest.
func ViewerFrom(ctx context.Context) models.Viewer {
	if v, ok := ctx.Value(viewerKey{}).(models.Viewer); ok {
		return v
	}
	return models.Guest
}

func requireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerFrom(r.Context()).IsGuest() {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
