// Package api exposes the feed, post mutations and votes over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pauljones0/mindmerge-forum/internal/feed"
	"github.com/pauljones0/mindmerge-forum/internal/models"
	"github.com/pauljones0/mindmerge-forum/internal/posts"
	"github.com/pauljones0/mindmerge-forum/internal/ranking"
	"github.com/pauljones0/mindmerge-forum/internal/util"
	"github.com/pauljones0/mindmerge-forum/internal/votes"
)

const maxBodyBytes = 64 << 10

type FeedService interface {
	Rank(ctx context.Context, viewer models.Viewer, req ranking.Request) (*feed.Page, error)
	Search(ctx context.Context, viewer models.Viewer, req ranking.Request, query string) (*feed.SearchResult, error)
}

type PostService interface {
	Create(ctx context.Context, viewer models.Viewer, in posts.PostInput) (*models.Post, error)
	Update(ctx context.Context, viewer models.Viewer, id string, in posts.PostInput) error
	Delete(ctx context.Context, viewer models.Viewer, id string) error
	AddComment(ctx context.Context, viewer models.Viewer, postID string, in posts.CommentInput) (string, *models.Comment, error)
	EditComment(ctx context.Context, viewer models.Viewer, postID, commentID string, in posts.CommentInput) error
}

type VoteService interface {
	Vote(ctx context.Context, postID, userID string, isUpvote bool) (votes.State, bool)
}

// PageSizes are the default limits per view. Sorted applies when the
// client asks for the standalone sorted view.
type PageSizes struct {
	Feed   int
	Sorted int
}

type Handler struct {
	feed  FeedService
	posts PostService
	votes VoteService
	codec *ranking.Codec
	sizes PageSizes
}

func NewHandler(f FeedService, p PostService, v VoteService, codec *ranking.Codec, sizes PageSizes) *Handler {
	if sizes.Feed <= 0 {
		sizes.Feed = ranking.DiscoveryPageSize
	}
	if sizes.Sorted <= 0 {
		sizes.Sorted = ranking.StandalonePageSize
	}
	return &Handler{feed: f, posts: p, votes: v, codec: codec, sizes: sizes}
}

// GetFeed handles GET /api/posts/feed.
//
// Query: criteria, order (or sort=criteria_order), limit, view=sorted,
// from, to, cursor_commented, cursor_new, cursor_sorted.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	req, err := h.rankRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	viewer := ViewerFrom(r.Context())

	page, err := h.feed.Rank(r.Context(), viewer, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := feedResponse{
		TopCommented: toPostResponses(page.TopCommented.Posts, page.Handles, viewer),
		TopNew:       toPostResponses(page.TopNew.Posts, page.Handles, viewer),
		Cursors:      encodeCursors(h.codec, page.Cursors),
	}
	if page.Sorted != nil {
		resp.Sorted = toPostResponses(page.Sorted.Posts, page.Handles, viewer)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SearchPosts handles GET /api/posts/search?q=. It accepts the same
// ranking parameters as GetFeed.
func (h *Handler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	req, err := h.rankRequest(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	viewer := ViewerFrom(r.Context())
	query := r.URL.Query().Get("q")

	res, err := h.feed.Search(r.Context(), viewer, req, query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:   query,
		Posts:   toPostResponses(res.Posts, res.Handles, viewer),
		Cursors: encodeCursors(h.codec, res.Cursors),
	})
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in posts.PostInput
	if !decodeBody(w, r, &in) {
		return
	}
	viewer := ViewerFrom(r.Context())
	p, err := h.posts.Create(r.Context(), viewer, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(p, nil, viewer))
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var in posts.PostInput
	if !decodeBody(w, r, &in) {
		return
	}
	if err := h.posts.Update(r.Context(), ViewerFrom(r.Context()), chi.URLParam(r, "id"), in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), ViewerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var in posts.CommentInput
	if !decodeBody(w, r, &in) {
		return
	}
	id, c, err := h.posts.AddComment(r.Context(), ViewerFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, commentResponse{
		ID:           id,
		Text:         c.Text,
		AuthorID:     c.AuthorID,
		AuthorHandle: c.AuthorHandle,
		CreatedOn:    c.CreatedOn,
	})
}

func (h *Handler) EditComment(w http.ResponseWriter, r *http.Request) {
	var in posts.CommentInput
	if !decodeBody(w, r, &in) {
		return
	}
	err := h.posts.EditComment(r.Context(), ViewerFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "cid"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Vote handles POST /api/posts/{id}/vote with body {"upvote": bool}. A vote
// that could not be recorded is not an HTTP error: the response reports
// recorded=false and the client leaves its vote UI unchanged.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	var body voteRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Upvote == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "upvote is required", Field: "upvote"})
		return
	}

	viewer := ViewerFrom(r.Context())
	state, ok := h.votes.Vote(r.Context(), chi.URLParam(r, "id"), viewer.UserID, *body.Upvote)
	writeJSON(w, http.StatusOK, voteResponse{
		Recorded:   ok,
		VotesCount: state.VotesCount,
		Upvoted:    state.Upvoted,
		Downvoted:  state.Downvoted,
	})
}

func (h *Handler) rankRequest(r *http.Request) (ranking.Request, error) {
	q := r.URL.Query()

	var req ranking.Request
	var err error
	if key := q.Get("sort"); key != "" {
		if req.Criteria, req.Order, err = ranking.ParseSortKey(key); err != nil {
			return req, err
		}
	} else {
		if req.Criteria, err = ranking.ParseCriteria(q.Get("criteria")); err != nil {
			return req, err
		}
		if req.Order, err = ranking.ParseOrder(q.Get("order")); err != nil {
			return req, err
		}
	}

	def := h.sizes.Feed
	if strings.EqualFold(q.Get("view"), "sorted") {
		def = h.sizes.Sorted
	}
	if req.Limit, err = util.IntOrDefault(q.Get("limit"), def); err != nil {
		return req, models.NewValidationError("limit", "limit "+err.Error())
	}
	if req.Limit <= 0 {
		return req, models.NewValidationError("limit", "limit must be positive")
	}

	req.DateRange = ranking.DateRange{From: q.Get("from"), To: q.Get("to")}

	if req.Cursors.LastCommented, err = h.codec.Decode(q.Get("cursor_commented")); err != nil {
		return req, err
	}
	if req.Cursors.LastNew, err = h.codec.Decode(q.Get("cursor_new")); err != nil {
		return req, err
	}
	if req.Cursors.LastSorted, err = h.codec.Decode(q.Get("cursor_sorted")); err != nil {
		return req, err
	}
	return req, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
