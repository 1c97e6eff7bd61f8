// Package feed composes the post store, the ranking engine, the search
// filter and the user directory into the pages the presentation layer
// renders.
package feed

import (
	"context"
	"fmt"

	"github.com/pauljones0/mindmerge-forum/internal/metrics"
	"github.com/pauljones0/mindmerge-forum/internal/models"
	"github.com/pauljones0/mindmerge-forum/internal/ranking"
	"github.com/pauljones0/mindmerge-forum/internal/search"
)

// PostReader is the read side of the post store.
type PostReader interface {
	GetAll(ctx context.Context) ([]*models.Post, error)
}

// HandleResolver maps user ids to display handles. It never fails; unknown
// ids map to models.UnknownUserHandle.
type HandleResolver interface {
	Handles(ctx context.Context, ids []string) map[string]string
}

// Page is a ranking result plus the handle of every author on it.
type Page struct {
	*ranking.Result
	Handles map[string]string
}

// SearchResult is the subset of a page that matched a query.
type SearchResult struct {
	Posts   []*models.Post
	Handles map[string]string
	Cursors ranking.Cursors
}

type Service struct {
	store    PostReader
	names    HandleResolver
	engine   *ranking.Engine
	maxLimit int
}

// NewService wires the feed. A non-positive maxLimit leaves page sizes
// unbounded above.
func NewService(store PostReader, names HandleResolver, engine *ranking.Engine, maxLimit int) *Service {
	if engine == nil {
		engine = ranking.New(ranking.Options{})
	}
	return &Service{store: store, names: names, engine: engine, maxLimit: maxLimit}
}

// Rank reads the whole collection and ranks it for the viewer. Guests get
// the discovery sections only.
func (s *Service) Rank(ctx context.Context, viewer models.Viewer, req ranking.Request) (*Page, error) {
	req.Guest = viewer.IsGuest()
	if s.maxLimit > 0 && req.Limit > s.maxLimit {
		req.Limit = s.maxLimit
	}
	defer metrics.TrackRank(req.Guest)()

	posts, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	res, err := s.engine.Rank(posts, req)
	if err != nil {
		return nil, err
	}
	return &Page{Result: res, Handles: s.authors(ctx, res)}, nil
}

// Search ranks for the viewer and narrows the page they would be looking
// at: the sorted section for members, the discovery sections for guests.
func (s *Service) Search(ctx context.Context, viewer models.Viewer, req ranking.Request, query string) (*SearchResult, error) {
	page, err := s.Rank(ctx, viewer, req)
	if err != nil {
		return nil, err
	}
	metrics.SearchEvaluations.Inc()

	matched := search.Filter(Searchable(page.Result), query)
	handles := make(map[string]string, len(matched))
	for _, p := range matched {
		handles[p.AuthorID] = page.Handles[p.AuthorID]
	}
	return &SearchResult{Posts: matched, Handles: handles, Cursors: page.Cursors}, nil
}

// Searchable returns the posts a search runs over: the sorted section when
// present, otherwise the discovery sections with duplicates removed.
func Searchable(res *ranking.Result) []*models.Post {
	if res == nil {
		return nil
	}
	if res.Sorted != nil {
		return res.Sorted.Posts
	}
	seen := make(map[string]bool, len(res.TopCommented.Posts)+len(res.TopNew.Posts))
	var out []*models.Post
	for _, sec := range []ranking.Section{res.TopNew, res.TopCommented} {
		for _, p := range sec.Posts {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) authors(ctx context.Context, res *ranking.Result) map[string]string {
	var ids []string
	add := func(sec ranking.Section) {
		for _, p := range sec.Posts {
			ids = append(ids, p.AuthorID)
		}
	}
	add(res.TopCommented)
	add(res.TopNew)
	if res.Sorted != nil {
		add(*res.Sorted)
	}
	if s.names == nil || len(ids) == 0 {
		return map[string]string{}
	}
	return s.names.Handles(ctx, ids)
}
