package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store) string {
	t.Helper()
	id, err := s.CreatePost(context.Background(), models.Post{
		Title:     "Seeded title for tests",
		Content:   "Seeded content long enough for anything.",
		AuthorID:  "u1",
		CreatedOn: t0,
		Comments:  map[string]models.Comment{},
	})
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	return id
}

func TestStore_CreateAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := seed(t, s)

	got, err := s.GetPost(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != id || got.AuthorID != "u1" {
		t.Fatalf("GetPost() = %+v", got)
	}

	got.Title = "mutated"
	again, _ := s.GetPost(ctx, id)
	if again.Title == "mutated" {
		t.Error("GetPost must return a copy")
	}

	missing, err := s.GetPost(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetPost(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestStore_GetAllOrderedByID(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		seed(t, s)
	}
	all, err := s.GetAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("GetAll() returned %d posts, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Errorf("GetAll() not ordered: %s before %s", all[i-1].ID, all[i].ID)
		}
	}
}

func TestStore_MutationsStampActivity(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := seed(t, s)

	if err := s.UpdatePost(ctx, id, "New title", "New content", t0.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddComment(ctx, id, "c1", models.Comment{Text: "first", AuthorID: "u2", CreatedOn: t0.Add(2 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := s.EditComment(ctx, id, "c1", "edited", t0.Add(3*time.Hour)); err != nil {
		t.Fatal(err)
	}

	p, _ := s.GetPost(ctx, id)
	if p.Title != "New title" || p.Comments["c1"].Text != "edited" {
		t.Errorf("mutations not applied: %+v", p)
	}
	if !p.LastActivityDate.Equal(t0.Add(3 * time.Hour)) {
		t.Errorf("LastActivityDate = %v, want %v", p.LastActivityDate, t0.Add(3*time.Hour))
	}

	if err := s.EditComment(ctx, id, "c404", "x", t0); !errors.Is(err, models.ErrCommentNotFound) {
		t.Errorf("EditComment(missing) error = %v, want ErrCommentNotFound", err)
	}
	if err := s.UpdatePost(ctx, "nope", "a", "b", t0); !errors.Is(err, models.ErrPostNotFound) {
		t.Errorf("UpdatePost(missing) error = %v, want ErrPostNotFound", err)
	}
}

func TestStore_DeleteRemovesComments(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := seed(t, s)
	_ = s.AddComment(ctx, id, "c1", models.Comment{Text: "bye", CreatedOn: t0})

	if err := s.DeletePost(ctx, id); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.GetPost(ctx, id); p != nil {
		t.Error("post still present after delete")
	}
	if err := s.DeletePost(ctx, id); !errors.Is(err, models.ErrPostNotFound) {
		t.Errorf("second DeletePost error = %v, want ErrPostNotFound", err)
	}
}

func TestStore_TransactMissingPost(t *testing.T) {
	s := New()
	var sawNil bool
	committed, err := s.Transact(context.Background(), "nope", func(cur *models.Post) *models.Post {
		sawNil = cur == nil
		return nil
	})
	if err != nil || committed {
		t.Errorf("Transact() = %v, %v; want false, nil", committed, err)
	}
	if !sawNil {
		t.Error("fn should receive nil for a missing post")
	}
}

func TestStore_TransactRetriesOnConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := seed(t, s)

	attempts := 0
	committed, err := s.Transact(ctx, id, func(cur *models.Post) *models.Post {
		attempts++
		if attempts == 1 {
			// Another writer commits between our read and our write.
			if err := s.UpdatePost(ctx, id, "Concurrent title", cur.Content, t0.Add(time.Minute)); err != nil {
				t.Fatal(err)
			}
		}
		next := cur.Clone()
		next.Upvotes = map[string]bool{"u9": true}
		return next
	})
	if err != nil || !committed {
		t.Fatalf("Transact() = %v, %v; want true, nil", committed, err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}

	p, _ := s.GetPost(ctx, id)
	if p.Title != "Concurrent title" {
		t.Error("retry must start from the latest committed post")
	}
	if !p.Upvotes["u9"] {
		t.Error("transaction result not committed")
	}
}

func TestStore_TransactGivesUpUnderContention(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := seed(t, s)
	s.maxAttempts = 3

	_, err := s.Transact(ctx, id, func(cur *models.Post) *models.Post {
		_ = s.UpdatePost(ctx, id, cur.Title+"!", cur.Content, t0)
		return cur
	})
	if !errors.Is(err, ErrTooMuchContention) {
		t.Errorf("Transact() error = %v, want ErrTooMuchContention", err)
	}
}

func TestStore_ConcurrentTransactionsLoseNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := seed(t, s)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := string(rune('a' + n))
			_, err := s.Transact(ctx, id, func(cur *models.Post) *models.Post {
				next := cur.Clone()
				if next.Upvotes == nil {
					next.Upvotes = map[string]bool{}
				}
				next.Upvotes[user] = true
				return next
			})
			if err != nil {
				t.Errorf("Transact() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	p, _ := s.GetPost(ctx, id)
	if len(p.Upvotes) != writers {
		t.Errorf("expected %d upvotes, got %d", writers, len(p.Upvotes))
	}
}

func TestStore_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.GetAll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("GetAll() error = %v, want context.Canceled", err)
	}
}
