// Package memory is an in-process post and user store with the same
// semantics as the Firestore client, including optimistic transactions.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

// ErrTooMuchContention is returned when a transaction keeps losing to
// concurrent writers.
var ErrTooMuchContention = errors.New("transaction aborted: too much contention")

const defaultMaxAttempts = 25

type entry struct {
	post    *models.Post
	version uint64
}

type Store struct {
	mu          sync.RWMutex
	posts       map[string]*entry
	users       map[string]models.User
	clock       uint64
	seq         int
	maxAttempts int
}

func New() *Store {
	return &Store{
		posts:       make(map[string]*entry),
		users:       make(map[string]models.User),
		maxAttempts: defaultMaxAttempts,
	}
}

func (s *Store) Close() error {
	return nil
}

// PutUser adds or replaces a user record.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// GetUser returns nil, nil for an unknown id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// GetAll returns a snapshot of every post ordered by id.
func (s *Store) GetAll(ctx context.Context) ([]*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Post, 0, len(s.posts))
	for _, e := range s.posts {
		out = append(out, e.post.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetPost returns nil, nil for an unknown id.
func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	return e.post.Clone(), nil
}

// CreatePost stores post under a new id, or under post.ID when set.
func (s *Store) CreatePost(ctx context.Context, post models.Post) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := post.ID
	if id == "" {
		s.seq++
		id = fmt.Sprintf("post-%06d", s.seq)
	}
	if _, exists := s.posts[id]; exists {
		return "", fmt.Errorf("post %s already exists", id)
	}
	stored := post.Clone()
	stored.ID = id
	s.write(id, stored)
	return id, nil
}

func (s *Store) UpdatePost(ctx context.Context, id, title, content string, at time.Time) error {
	return s.mutate(ctx, id, func(p *models.Post) error {
		p.Title = title
		p.Content = content
		p.Touch(at)
		return nil
	})
}

// DeletePost removes the post together with its comments.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return models.ErrPostNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *Store) AddComment(ctx context.Context, postID, commentID string, c models.Comment) error {
	return s.mutate(ctx, postID, func(p *models.Post) error {
		if p.Comments == nil {
			p.Comments = make(map[string]models.Comment)
		}
		p.Comments[commentID] = c
		p.Touch(c.CreatedOn)
		return nil
	})
}

func (s *Store) EditComment(ctx context.Context, postID, commentID, text string, at time.Time) error {
	return s.mutate(ctx, postID, func(p *models.Post) error {
		c, ok := p.Comments[commentID]
		if !ok {
			return models.ErrCommentNotFound
		}
		c.Text = text
		p.Comments[commentID] = c
		p.Touch(at)
		return nil
	})
}

// Transact reads the post, runs fn without holding the lock, and commits
// the result only if no other write landed in between; otherwise it starts
// over from the latest committed post.
func (s *Store) Transact(ctx context.Context, postID string, fn func(current *models.Post) *models.Post) (bool, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		s.mu.RLock()
		var current *models.Post
		var version uint64
		if e, ok := s.posts[postID]; ok {
			current = e.post.Clone()
			version = e.version
		}
		s.mu.RUnlock()

		next := fn(current)
		if next == nil {
			return false, nil
		}

		s.mu.Lock()
		var latest uint64
		if e, ok := s.posts[postID]; ok {
			latest = e.version
		}
		if latest != version {
			s.mu.Unlock()
			continue
		}
		stored := next.Clone()
		stored.ID = postID
		s.write(postID, stored)
		s.mu.Unlock()
		return true, nil
	}
	return false, ErrTooMuchContention
}

func (s *Store) mutate(ctx context.Context, id string, fn func(p *models.Post) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.posts[id]
	if !ok {
		return models.ErrPostNotFound
	}
	p := e.post.Clone()
	if err := fn(p); err != nil {
		return err
	}
	s.write(id, p)
	return nil
}

// write must be called with mu held.
func (s *Store) write(id string, p *models.Post) {
	s.clock++
	s.posts[id] = &entry{post: p, version: s.clock}
}
