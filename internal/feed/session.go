package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pauljones0/mindmerge-forum/internal/metrics"
	"github.com/pauljones0/mindmerge-forum/internal/models"
	"github.com/pauljones0/mindmerge-forum/internal/ranking"
	"github.com/pauljones0/mindmerge-forum/internal/search"
)

// ErrSuperseded is returned when a newer request for the same view was
// issued before this one resolved. Its result has been discarded.
var ErrSuperseded = errors.New("result superseded by a newer request")

// Ranker is what a Session pulls pages from; *Service implements it.
type Ranker interface {
	Rank(ctx context.Context, viewer models.Viewer, req ranking.Request) (*Page, error)
}

// View is a point-in-time snapshot of what a session shows. It is only
// refreshed by asking the session to rank again.
type View struct {
	TopCommented []*models.Post
	TopNew       []*models.Post
	Sorted       []*models.Post
	Handles      map[string]string

	// Query is the active search text and Results its matches within the
	// searchable posts; Results is nil when no query is active.
	Query   string
	Results []*models.Post

	// Exhausted reports, per section, that the last load came back empty
	// so loading more would only restart from the top.
	Exhausted Exhausted
}

type Exhausted struct {
	TopCommented bool
	TopNew       bool
	Sorted       bool
}

func (e Exhausted) all(guest bool) bool {
	return e.TopCommented && e.TopNew && (guest || e.Sorted)
}

// Session holds one viewer's feed state: sort, date range, cursors and the
// posts loaded so far. Every request carries a generation number; a
// response is applied only if no newer request of the same kind was made
// meanwhile. The lock is never held across store calls.
type Session struct {
	ranker Ranker
	viewer models.Viewer
	limit  int

	mu        sync.Mutex
	criteria  ranking.Criteria
	order     ranking.Order
	dateRange ranking.DateRange
	cursors   ranking.Cursors
	loaded    bool
	view      View
	feedGen   uint64
	searchGen uint64
	debounce  *search.Debouncer
}

// NewSession starts a session sorted by date, newest first. A non-positive
// limit uses ranking.DiscoveryPageSize.
func NewSession(r Ranker, viewer models.Viewer, limit int, debounce time.Duration) *Session {
	if limit <= 0 {
		limit = ranking.DiscoveryPageSize
	}
	return &Session{
		ranker:   r,
		viewer:   viewer,
		limit:    limit,
		criteria: ranking.ByDate,
		order:    ranking.Descending,
		debounce: search.NewDebouncer(debounce),
	}
}

// SetSort changes the sorted section's key. Cursors are reset and any
// request in flight is superseded.
func (s *Session) SetSort(c ranking.Criteria, o ranking.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c == s.criteria && o == s.order {
		return
	}
	s.criteria, s.order = c, o
	s.resetLocked()
}

// SetDateRange changes the date filter. Cursors are reset and any request
// in flight is superseded.
func (s *Session) SetDateRange(r ranking.DateRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r == s.dateRange {
		return
	}
	s.dateRange = r
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.cursors = ranking.Cursors{}
	s.loaded = false
	s.view.Exhausted = Exhausted{}
	s.feedGen++
}

// Cursors returns the cursors the next LoadMore will use.
func (s *Session) Cursors() ranking.Cursors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors
}

// View returns a copy of the current snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.copy()
}

// Refresh ranks from the first page and replaces the view.
func (s *Session) Refresh(ctx context.Context) (View, error) {
	s.mu.Lock()
	s.feedGen++
	gen := s.feedGen
	req := s.requestLocked(ranking.Cursors{})
	s.mu.Unlock()

	page, err := s.ranker.Rank(ctx, s.viewer, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.feedGen {
		metrics.StaleResults.WithLabelValues("feed").Inc()
		return s.view.copy(), ErrSuperseded
	}
	if err != nil {
		return s.view.copy(), err
	}

	s.view.TopCommented = page.TopCommented.Posts
	s.view.TopNew = page.TopNew.Posts
	s.view.Sorted = nil
	if page.Sorted != nil {
		s.view.Sorted = page.Sorted.Posts
	}
	s.view.Handles = page.Handles
	s.view.Exhausted = Exhausted{}
	s.applyCursorsLocked(page)
	s.loaded = true
	s.refilterLocked()
	return s.view.copy(), nil
}

// LoadMore fetches the next page of every section that is not exhausted
// and appends it. Before the first Refresh it behaves like Refresh.
func (s *Session) LoadMore(ctx context.Context) (View, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return s.Refresh(ctx)
	}
	if s.view.Exhausted.all(s.viewer.IsGuest()) {
		v := s.view.copy()
		s.mu.Unlock()
		return v, nil
	}
	s.feedGen++
	gen := s.feedGen
	req := s.requestLocked(s.cursors)
	exhausted := s.view.Exhausted
	s.mu.Unlock()

	page, err := s.ranker.Rank(ctx, s.viewer, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.feedGen {
		metrics.StaleResults.WithLabelValues("feed").Inc()
		return s.view.copy(), ErrSuperseded
	}
	if err != nil {
		return s.view.copy(), err
	}

	// A nil cursor restarts a section from the top, so exhausted sections
	// must ignore what came back.
	if !exhausted.TopCommented {
		s.view.TopCommented = appendPosts(s.view.TopCommented, page.TopCommented.Posts)
	}
	if !exhausted.TopNew {
		s.view.TopNew = appendPosts(s.view.TopNew, page.TopNew.Posts)
	}
	if !exhausted.Sorted && page.Sorted != nil {
		s.view.Sorted = appendPosts(s.view.Sorted, page.Sorted.Posts)
	}
	if s.view.Handles == nil {
		s.view.Handles = make(map[string]string, len(page.Handles))
	}
	for id, h := range page.Handles {
		s.view.Handles[id] = h
	}

	next := page.Cursors
	if exhausted.TopCommented {
		next.LastCommented = nil
	}
	if exhausted.TopNew {
		next.LastNew = nil
	}
	if exhausted.Sorted {
		next.LastSorted = nil
	}
	s.cursors = next
	s.view.Exhausted = Exhausted{
		TopCommented: exhausted.TopCommented || next.LastCommented == nil,
		TopNew:       exhausted.TopNew || next.LastNew == nil,
		Sorted:       exhausted.Sorted || (page.Sorted != nil && next.LastSorted == nil),
	}
	s.refilterLocked()
	return s.view.copy(), nil
}

// SetQuery filters the loaded posts immediately and returns the matches.
// A blank query clears the search.
func (s *Session) SetQuery(query string) []*models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchGen++
	s.view.Query = query
	s.refilterLocked()
	return copyPosts(s.view.Results)
}

// Search schedules SetQuery after the typing pause and calls onResult with
// the matches. Only the last query of a burst is evaluated; a burst that
// is superseded after its timer fired is dropped.
func (s *Session) Search(query string, onResult func([]*models.Post)) {
	s.mu.Lock()
	s.searchGen++
	gen := s.searchGen
	s.mu.Unlock()

	s.debounce.Call(func() {
		s.mu.Lock()
		if gen != s.searchGen {
			s.mu.Unlock()
			metrics.StaleResults.WithLabelValues("search").Inc()
			return
		}
		s.view.Query = query
		s.refilterLocked()
		results := copyPosts(s.view.Results)
		s.mu.Unlock()

		if onResult != nil {
			onResult(results)
		}
	})
}

// Close cancels any pending search.
func (s *Session) Close() {
	s.debounce.Stop()
}

func (s *Session) requestLocked(cursors ranking.Cursors) ranking.Request {
	return ranking.Request{
		Criteria:  s.criteria,
		Order:     s.order,
		Limit:     s.limit,
		Cursors:   cursors,
		DateRange: s.dateRange,
	}
}

func (s *Session) applyCursorsLocked(page *Page) {
	s.cursors = page.Cursors
	s.view.Exhausted = Exhausted{
		TopCommented: page.Cursors.LastCommented == nil,
		TopNew:       page.Cursors.LastNew == nil,
		Sorted:       page.Sorted != nil && page.Cursors.LastSorted == nil,
	}
}

func (s *Session) refilterLocked() {
	if s.view.Query == "" {
		s.view.Results = nil
		return
	}
	metrics.SearchEvaluations.Inc()
	res := &ranking.Result{
		TopCommented: ranking.Section{Posts: s.view.TopCommented},
		TopNew:       ranking.Section{Posts: s.view.TopNew},
	}
	if !s.viewer.IsGuest() {
		res.Sorted = &ranking.Section{Posts: s.view.Sorted}
	}
	s.view.Results = search.Filter(Searchable(res), s.view.Query)
}

func (v View) copy() View {
	out := v
	out.TopCommented = copyPosts(v.TopCommented)
	out.TopNew = copyPosts(v.TopNew)
	out.Sorted = copyPosts(v.Sorted)
	out.Results = copyPosts(v.Results)
	if v.Handles != nil {
		out.Handles = make(map[string]string, len(v.Handles))
		for k, h := range v.Handles {
			out.Handles[k] = h
		}
	}
	return out
}

func appendPosts(dst, more []*models.Post) []*models.Post {
	out := make([]*models.Post, 0, len(dst)+len(more))
	out = append(out, dst...)
	return append(out, more...)
}

func copyPosts(in []*models.Post) []*models.Post {
	if in == nil {
		return nil
	}
	out := make([]*models.Post, len(in))
	copy(out, in)
	return out
}
