// Package posts implements post and comment mutations on behalf of a
// viewer. Reads for the feed live in package feed.
package posts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pauljones0/mindmerge-forum/internal/models"
	"github.com/pauljones0/mindmerge-forum/internal/validator"
)

type Store interface {
	GetPost(ctx context.Context, id string) (*models.Post, error)
	CreatePost(ctx context.Context, post models.Post) (string, error)
	UpdatePost(ctx context.Context, id, title, content string, at time.Time) error
	DeletePost(ctx context.Context, id string) error
	AddComment(ctx context.Context, postID, commentID string, c models.Comment) error
	EditComment(ctx context.Context, postID, commentID, text string, at time.Time) error
}

type HandleResolver interface {
	Handle(ctx context.Context, id string) string
}

// Moderation receives post lifecycle events. Failures are logged and never
// fail the mutation.
type Moderation interface {
	PostCreated(ctx context.Context, post models.Post, authorHandle string) (string, error)
	PostDeleted(ctx context.Context, post models.Post, deletedBy string) error
}

type PostInput struct {
	Title   string `json:"title" validate:"required,min=16,max=64"`
	Content string `json:"content" validate:"required,min=32,max=8192"`
}

type CommentInput struct {
	Text string `json:"text" validate:"required,max=8192"`
}

type Service struct {
	store     Store
	names     HandleResolver
	mod       Moderation
	validator *validator.Validator
	now       func() time.Time
	newID     func() string
}

func NewService(store Store, names HandleResolver, mod Moderation) *Service {
	return &Service{
		store:     store,
		names:     names,
		mod:       mod,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func (s *Service) Create(ctx context.Context, viewer models.Viewer, in PostInput) (*models.Post, error) {
	if viewer.IsGuest() {
		return nil, models.ErrForbidden
	}
	in, err := s.cleanPost(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	post := models.Post{
		Title:            in.Title,
		Content:          in.Content,
		AuthorID:         viewer.UserID,
		CreatedOn:        now,
		LastActivityDate: now,
		Comments:         map[string]models.Comment{},
		Upvotes:          map[string]bool{},
		Downvotes:        map[string]bool{},
	}
	id, err := s.store.CreatePost(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	post.ID = id
	slog.Info("Post created", "post", id, "user", viewer.UserID)

	if s.mod != nil {
		if _, err := s.mod.PostCreated(ctx, post, s.names.Handle(ctx, viewer.UserID)); err != nil {
			slog.Warn("Moderation notification failed", "post", id, "error", err)
		}
	}
	return &post, nil
}

// Update replaces title and content. Only the author or an admin may edit.
func (s *Service) Update(ctx context.Context, viewer models.Viewer, id string, in PostInput) error {
	post, err := s.modifiable(ctx, viewer, id)
	if err != nil {
		return err
	}
	if in, err = s.cleanPost(in); err != nil {
		return err
	}
	if err := s.store.UpdatePost(ctx, post.ID, in.Title, in.Content, s.now()); err != nil {
		return fmt.Errorf("failed to update post %s: %w", id, err)
	}
	return nil
}

// Delete removes the post and its comments. Only the author or an admin
// may delete.
func (s *Service) Delete(ctx context.Context, viewer models.Viewer, id string) error {
	post, err := s.modifiable(ctx, viewer, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}
	slog.Info("Post deleted", "post", id, "user", viewer.UserID, "author", post.AuthorID)

	if s.mod != nil && viewer.UserID != post.AuthorID {
		if err := s.mod.PostDeleted(ctx, *post, s.names.Handle(ctx, viewer.UserID)); err != nil {
			slog.Warn("Moderation notification failed", "post", id, "error", err)
		}
	}
	return nil
}

// AddComment appends a comment under a fresh id. The commenter's handle is
// stored with the comment.
func (s *Service) AddComment(ctx context.Context, viewer models.Viewer, postID string, in CommentInput) (string, *models.Comment, error) {
	if viewer.IsGuest() {
		return "", nil, models.ErrForbidden
	}
	text, err := s.cleanComment(in)
	if err != nil {
		return "", nil, err
	}

	id := s.newID()
	c := models.Comment{
		Text:         text,
		AuthorID:     viewer.UserID,
		AuthorHandle: s.names.Handle(ctx, viewer.UserID),
		CreatedOn:    s.now(),
	}
	if err := s.store.AddComment(ctx, postID, id, c); err != nil {
		return "", nil, fmt.Errorf("failed to add comment to post %s: %w", postID, err)
	}
	return id, &c, nil
}

// EditComment replaces a comment's text. Only its author may edit it.
func (s *Service) EditComment(ctx context.Context, viewer models.Viewer, postID, commentID string, in CommentInput) error {
	if viewer.IsGuest() {
		return models.ErrForbidden
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to get post %s: %w", postID, err)
	}
	if post == nil {
		return models.ErrPostNotFound
	}
	c, ok := post.Comments[commentID]
	if !ok {
		return models.ErrCommentNotFound
	}
	if c.AuthorID != viewer.UserID {
		return models.ErrForbidden
	}

	text, err := s.cleanComment(in)
	if err != nil {
		return err
	}
	if err := s.store.EditComment(ctx, postID, commentID, text, s.now()); err != nil {
		return fmt.Errorf("failed to edit comment %s: %w", commentID, err)
	}
	return nil
}

func (s *Service) modifiable(ctx context.Context, viewer models.Viewer, id string) (*models.Post, error) {
	if viewer.IsGuest() {
		return nil, models.ErrForbidden
	}
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post %s: %w", id, err)
	}
	if post == nil {
		return nil, models.ErrPostNotFound
	}
	if !viewer.CanModify(post.AuthorID) {
		return nil, models.ErrForbidden
	}
	return post, nil
}

func (s *Service) cleanPost(in PostInput) (PostInput, error) {
	var err error
	if in.Title, err = plainText(in.Title); err != nil {
		return in, err
	}
	if in.Content, err = plainText(in.Content); err != nil {
		return in, err
	}
	return in, s.validator.ValidateStruct(in)
}

func (s *Service) cleanComment(in CommentInput) (string, error) {
	text, err := plainText(in.Text)
	if err != nil {
		return "", err
	}
	in.Text = text
	return text, s.validator.ValidateStruct(in)
}
