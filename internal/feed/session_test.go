package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/pauljones0/mindmerge-forum/internal/models"
	"github.com/pauljones0/mindmerge-forum/internal/ranking"
)

// gatedRanker blocks each Rank call until release is closed, so tests can
// interleave requests deterministically.
type gatedRanker struct {
	inner   Ranker
	mu      sync.Mutex
	gates   []chan struct{}
	started chan ranking.Request
}

func newGatedRanker(inner Ranker) *gatedRanker {
	return &gatedRanker{inner: inner, started: make(chan ranking.Request, 10)}
}

func (g *gatedRanker) Rank(ctx context.Context, viewer models.Viewer, req ranking.Request) (*Page, error) {
	gate := make(chan struct{})
	g.mu.Lock()
	g.gates = append(g.gates, gate)
	g.mu.Unlock()
	g.started <- req
	<-gate
	return g.inner.Rank(ctx, viewer, req)
}

func (g *gatedRanker) release(i int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gates[i])
}

func newMemberSession(t *testing.T, n, limit int) *Session {
	t.Helper()
	svc := NewService(seedStore(t, n), &stubResolver{}, nil, 0)
	s := NewSession(svc, models.Viewer{UserID: "u1"}, limit, 10*time.Millisecond)
	t.Cleanup(s.Close)
	return s
}

func TestSession_LoadMoreWalksToExhaustion(t *testing.T) {
	s := newMemberSession(t, 5, 2)
	ctx := context.Background()

	v, err := s.LoadMore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"P5", "P4"}, ids(v.Sorted)); diff != "" {
		t.Errorf("first page mismatch (-want +got):\n%s", diff)
	}

	for i := 0; i < 2; i++ {
		if v, err = s.LoadMore(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"P5", "P4", "P3", "P2", "P1"}, ids(v.Sorted)); diff != "" {
		t.Errorf("accumulated mismatch (-want +got):\n%s", diff)
	}
	if v.Exhausted.Sorted {
		t.Error("a full last page must not mark the section exhausted yet")
	}

	v, _ = s.LoadMore(ctx)
	if !v.Exhausted.TopNew || !v.Exhausted.Sorted {
		t.Errorf("expected exhaustion after an empty page, got %+v", v.Exhausted)
	}

	v, _ = s.LoadMore(ctx)
	if len(v.Sorted) != 5 || len(v.TopNew) != 5 {
		t.Errorf("loading past the end must not restart: sorted %d, new %d", len(v.Sorted), len(v.TopNew))
	}
}

func TestSession_SortChangeResetsCursors(t *testing.T) {
	s := newMemberSession(t, 4, 2)
	ctx := context.Background()

	if _, err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Cursors().LastSorted == nil {
		t.Fatal("expected a sorted cursor after the first page")
	}

	s.SetSort(ranking.ByComments, ranking.Descending)
	if c := s.Cursors(); c.LastSorted != nil || c.LastNew != nil || c.LastCommented != nil {
		t.Errorf("cursors not reset after sort change: %+v", c)
	}

	if _, err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	s.SetDateRange(ranking.DateRange{From: "2024-01-02"})
	if c := s.Cursors(); c.LastSorted != nil {
		t.Errorf("cursors not reset after range change: %+v", c)
	}
}

func TestSession_SupersededResultDiscarded(t *testing.T) {
	svc := NewService(seedStore(t, 4), &stubResolver{}, nil, 0)
	gated := newGatedRanker(svc)
	s := NewSession(gated, models.Viewer{UserID: "u1"}, 10, time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	type outcome struct {
		view View
		err  error
	}
	first := make(chan outcome, 1)
	go func() {
		v, err := s.Refresh(ctx)
		first <- outcome{v, err}
	}()
	<-gated.started

	s.SetSort(ranking.ByDate, ranking.Ascending)
	second := make(chan outcome, 1)
	go func() {
		v, err := s.Refresh(ctx)
		second <- outcome{v, err}
	}()
	<-gated.started

	gated.release(1)
	got := <-second
	if got.err != nil {
		t.Fatalf("second Refresh() error = %v", got.err)
	}
	if diff := cmp.Diff([]string{"P1", "P2", "P3", "P4"}, ids(got.view.Sorted)); diff != "" {
		t.Errorf("second view mismatch (-want +got):\n%s", diff)
	}

	gated.release(0)
	stale := <-first
	if !errors.Is(stale.err, ErrSuperseded) {
		t.Errorf("first Refresh() error = %v, want ErrSuperseded", stale.err)
	}
	if diff := cmp.Diff([]string{"P1", "P2", "P3", "P4"}, ids(s.View().Sorted)); diff != "" {
		t.Errorf("stale result overwrote the view (-want +got):\n%s", diff)
	}
}

func TestSession_QueryFiltersLoadedPosts(t *testing.T) {
	s := newMemberSession(t, 5, 10)
	ctx := context.Background()
	if _, err := s.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"P2"}, ids(s.SetQuery("number 2"))); diff != "" {
		t.Errorf("SetQuery mismatch (-want +got):\n%s", diff)
	}

	// The active query is reapplied when the view refreshes.
	v, _ := s.Refresh(ctx)
	if diff := cmp.Diff([]string{"P2"}, ids(v.Results)); diff != "" {
		t.Errorf("results after refresh mismatch (-want +got):\n%s", diff)
	}

	if got := s.SetQuery(""); got != nil {
		t.Errorf("SetQuery(\"\") = %v, want nil", ids(got))
	}
}

func TestSession_SearchDebounced(t *testing.T) {
	s := newMemberSession(t, 5, 10)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	results := make(chan []*models.Post, 3)
	for _, q := range []string{"n", "nu", "number 4"} {
		s.Search(q, func(posts []*models.Post) { results <- posts })
	}

	select {
	case got := <-results:
		if diff := cmp.Diff([]string{"P4"}, ids(got)); diff != "" {
			t.Errorf("debounced result mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(time.Second):
		t.Fatal("debounced search never ran")
	}

	select {
	case extra := <-results:
		t.Errorf("only the last query should run, got extra result %v", ids(extra))
	case <-time.After(50 * time.Millisecond):
	}
	if q := s.View().Query; q != "number 4" {
		t.Errorf("Query = %q, want %q", q, "number 4")
	}
}

func TestSession_GuestHasNoSortedSection(t *testing.T) {
	svc := NewService(seedStore(t, 3), &stubResolver{}, nil, 0)
	s := NewSession(svc, models.Guest, 10, 0)
	defer s.Close()

	v, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v.Sorted != nil {
		t.Errorf("guest got sorted posts: %v", ids(v.Sorted))
	}
	// Empty pages next time round exhaust both discovery sections.
	v, _ = s.LoadMore(context.Background())
	if !v.Exhausted.TopNew || !v.Exhausted.TopCommented {
		t.Errorf("Exhausted = %+v", v.Exhausted)
	}
}
