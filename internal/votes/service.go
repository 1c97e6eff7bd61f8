package votes

import (
	"context"
	"log/slog"
	"time"

	"github.com/pauljones0/mindmerge-forum/internal/metrics"
	"github.com/pauljones0/mindmerge-forum/internal/models"
)

// PostTransactor runs fn as an atomic read-modify-write of one post. fn
// receives the latest committed post, or nil if it does not exist, and
// returns the post to write, or nil to write nothing. fn may run more than
// once when the store retries on conflict. committed reports whether a
// write happened.
type PostTransactor interface {
	Transact(ctx context.Context, postID string, fn func(current *models.Post) *models.Post) (committed bool, err error)
}

type Service struct {
	store PostTransactor
	now   func() time.Time
}

func NewService(store PostTransactor) *Service {
	return &Service{store: store, now: time.Now}
}

// CastVote toggles userID's vote on the post. It returns false when the
// vote was not recorded: no user, missing post, or a store failure. Errors
// are logged, never returned, since a lost vote must not break a page.
func (s *Service) CastVote(ctx context.Context, postID, userID string, isUpvote bool) bool {
	_, ok := s.Vote(ctx, postID, userID, isUpvote)
	return ok
}

// Vote is CastVote that also returns the committed vote state for userID.
func (s *Service) Vote(ctx context.Context, postID, userID string, isUpvote bool) (State, bool) {
	if postID == "" || userID == "" {
		metrics.VotesTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return State{}, false
	}

	var written *models.Post
	committed, err := s.store.Transact(ctx, postID, func(current *models.Post) *models.Post {
		written = Apply(current, userID, isUpvote, s.now())
		return written
	})
	if err != nil {
		slog.Warn("Vote not recorded", "post", postID, "user", userID, "error", err)
		metrics.VotesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return State{}, false
	}
	if !committed || written == nil {
		slog.Info("Vote skipped, post no longer exists", "post", postID, "user", userID)
		metrics.VotesTotal.WithLabelValues(metrics.OutcomeMissing).Inc()
		return State{}, false
	}

	metrics.VotesTotal.WithLabelValues(metrics.OutcomeRecorded).Inc()
	return StateOf(written, userID), true
}
