//go:build integration

package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

// These tests need a running emulator, e.g.
//
//	gcloud emulators firestore start --host-port=localhost:8200
//	FIRESTORE_EMULATOR_HOST=localhost:8200 go test -tags integration ./internal/storage/
func newEmulatorClient(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	suffix := uuid.NewString()
	c, err := New(context.Background(), "mindmerge-test", "posts-"+suffix, "users-"+suffix)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIntegration_PostLifecycle(t *testing.T) {
	c := newEmulatorClient(t)
	ctx := context.Background()
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	id, err := c.CreatePost(ctx, models.Post{
		Title: "Emulator lifecycle title", Content: "content", AuthorID: "u1",
		CreatedOn: created, LastActivityDate: created, Comments: map[string]models.Comment{},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.AddComment(ctx, id, "c1", models.Comment{Text: "hello", AuthorID: "u2", CreatedOn: created.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if err := c.EditComment(ctx, id, "c1", "edited", created.Add(2*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := c.EditComment(ctx, id, "nope", "x", created); !errors.Is(err, models.ErrCommentNotFound) {
		t.Errorf("EditComment(missing) = %v, want ErrCommentNotFound", err)
	}

	p, err := c.GetPost(ctx, id)
	if err != nil || p == nil {
		t.Fatalf("GetPost() = %v, %v", p, err)
	}
	if p.Comments["c1"].Text != "edited" || p.EffectiveCommentCount() != 1 {
		t.Errorf("comments = %+v", p.Comments)
	}

	if err := c.DeletePost(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := c.DeletePost(ctx, id); !errors.Is(err, models.ErrPostNotFound) {
		t.Errorf("second DeletePost() = %v, want ErrPostNotFound", err)
	}
}

func TestIntegration_ConcurrentTransactions(t *testing.T) {
	c := newEmulatorClient(t)
	ctx := context.Background()

	id, err := c.CreatePost(ctx, models.Post{Title: "t", Content: "c", AuthorID: "u", CreatedOn: time.Now().UTC()})
	if err != nil {
		t.Fatal(err)
	}

	const voters = 5
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := c.Transact(ctx, id, func(cur *models.Post) *models.Post {
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
		}(uuid.NewString())
	}
	wg.Wait()

	p, _ := c.GetPost(ctx, id)
	if len(p.Upvotes) != voters {
		t.Errorf("upvotes = %d, want %d", len(p.Upvotes), voters)
	}

	committed, err := c.Transact(ctx, "does-not-exist", func(cur *models.Post) *models.Post { return cur })
	if err != nil || committed {
		t.Errorf("Transact(missing) = %v, %v; want false, nil", committed, err)
	}
}

func TestIntegration_GetAllSkipsUnreadableTimes(t *testing.T) {
	c := newEmulatorClient(t)
	ctx := context.Background()

	good, err := c.CreatePost(ctx, models.Post{Title: "readable", Content: "c", AuthorID: "u", CreatedOn: time.Now().UTC()})
	if err != nil {
		t.Fatal(err)
	}
	bad := c.client.Collection(c.posts).Doc("bad-time")
	if _, err := bad.Set(ctx, map[string]interface{}{"title": "unreadable", "createdOn": "Jan 3rd"}); err != nil {
		t.Fatal(err)
	}

	all, err := c.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	byID := map[string]*models.Post{}
	for _, p := range all {
		byID[p.ID] = p
	}
	if byID[good] == nil || byID[good].Title != "readable" {
		t.Errorf("readable post missing from GetAll: %+v", byID)
	}
	if p := byID["bad-time"]; p == nil || !p.CreatedOn.IsZero() {
		t.Errorf("unreadable post = %+v, want it loaded with a zero createdOn", p)
	}

	committed, err := c.Transact(ctx, "bad-time", func(cur *models.Post) *models.Post {
		next := cur.Clone()
		next.Upvotes = map[string]bool{"u1": true}
		return next
	})
	if err != nil || !committed {
		t.Errorf("Transact(bad-time) = %v, %v; want true, nil", committed, err)
	}
}
