package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

const (
	DefaultPostsCollection = "posts"
	DefaultUsersCollection = "users"
)

type Client struct {
	client *firestore.Client
	posts  string
	users  string
}

// New opens a Firestore client. Empty collection names fall back to the
// defaults.
func New(ctx context.Context, projectID, postsCollection, usersCollection string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	if postsCollection == "" {
		postsCollection = DefaultPostsCollection
	}
	if usersCollection == "" {
		usersCollection = DefaultUsersCollection
	}
	return &Client{client: client, posts: postsCollection, users: usersCollection}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) postRef(id string) *firestore.DocumentRef {
	return c.client.Collection(c.posts).Doc(id)
}

// GetAll reads every post in the collection. A document with an unreadable
// field still loads; see decodePost.
func (c *Client) GetAll(ctx context.Context) ([]*models.Post, error) {
	iter := c.client.Collection(c.posts).Documents(ctx)
	defer iter.Stop()

	var out []*models.Post
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate posts: %w", err)
		}
		out = append(out, decodePost(doc.Ref.ID, doc.Data()))
	}
	return out, nil
}

// GetPost retrieves a post by its document id. A missing post is nil, nil.
func (c *Client) GetPost(ctx context.Context, id string) (*models.Post, error) {
	doc, err := c.postRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post %s: %w", id, err)
	}
	if !doc.Exists() {
		return nil, nil
	}
	return decodePost(doc.Ref.ID, doc.Data()), nil
}

// CreatePost writes a new document and returns its generated id.
func (c *Client) CreatePost(ctx context.Context, post models.Post) (string, error) {
	ref := c.client.Collection(c.posts).NewDoc()
	if _, err := ref.Create(ctx, post); err != nil {
		return "", fmt.Errorf("failed to create post: %w", err)
	}
	return ref.ID, nil
}

func (c *Client) UpdatePost(ctx context.Context, id, title, content string, at time.Time) error {
	_, err := c.postRef(id).Update(ctx, []firestore.Update{
		{Path: "title", Value: title},
		{Path: "content", Value: content},
		{Path: "lastActivityDate", Value: at},
	})
	return mapWriteErr(err, "update post "+id)
}

// DeletePost removes the post document; comments live inside it and go
// with it.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	_, err := c.postRef(id).Delete(ctx, firestore.Exists)
	return mapWriteErr(err, "delete post "+id)
}

func (c *Client) AddComment(ctx context.Context, postID, commentID string, comment models.Comment) error {
	_, err := c.postRef(postID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"comments", commentID}, Value: comment},
		{Path: "lastActivityDate", Value: comment.CreatedOn},
	})
	return mapWriteErr(err, "add comment to post "+postID)
}

// EditComment replaces a comment's text. It runs in a transaction so that
// a comment deleted concurrently is reported instead of recreated.
func (c *Client) EditComment(ctx context.Context, postID, commentID, text string, at time.Time) error {
	ref := c.postRef(postID)
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		post := decodePost(doc.Ref.ID, doc.Data())
		if _, ok := post.Comments[commentID]; !ok {
			return models.ErrCommentNotFound
		}
		return tx.Update(ref, []firestore.Update{
			{FieldPath: firestore.FieldPath{"comments", commentID, "text"}, Value: text},
			{Path: "lastActivityDate", Value: at},
		})
	})
	if errors.Is(err, models.ErrCommentNotFound) {
		return err
	}
	return mapWriteErr(err, "edit comment "+commentID)
}

// Transact runs fn inside a Firestore transaction. Firestore retries the
// function on contention, so fn sees the latest committed post each time.
func (c *Client) Transact(ctx context.Context, postID string, fn func(current *models.Post) *models.Post) (bool, error) {
	ref := c.postRef(postID)
	var committed bool
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		committed = false

		var current *models.Post
		doc, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		case doc.Exists():
			current = decodePost(doc.Ref.ID, doc.Data())
		}

		next := fn(current)
		if next == nil {
			return nil
		}
		if err := tx.Set(ref, next); err != nil {
			return err
		}
		committed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("transaction on post %s: %w", postID, err)
	}
	return committed, nil
}

// GetUser returns nil, nil when the user document does not exist.
func (c *Client) GetUser(ctx context.Context, id string) (*models.User, error) {
	doc, err := c.client.Collection(c.users).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	if !doc.Exists() {
		return nil, nil
	}

	var u models.User
	if err := doc.DataTo(&u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if u.ID == "" {
		u.ID = doc.Ref.ID
	}
	return &u, nil
}

func mapWriteErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return models.ErrPostNotFound
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
