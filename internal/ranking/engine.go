// Package ranking orders a post collection into the feed sections and
// paginates each section with its own keyset cursor.
//
// Pagination is keyset only: a page holds posts strictly past the cursor's
// key in the section's order. Posts inserted or edited between two page
// requests may therefore be shown twice or skipped at the page boundary.
// With the default options two posts sharing a key at a boundary are
// dropped together; Options.TieBreakByID adds the post id as a secondary
// key to make boundaries exact.
package ranking

import (
	"cmp"
	"slices"
	"strings"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

// Request describes one ranking pass.
type Request struct {
	Criteria  Criteria
	Order     Order
	Limit     int
	Cursors   Cursors
	DateRange DateRange
	// Guest skips the sorted section; guests only see the discovery
	// sections.
	Guest bool
}

// Section is one ordered, bounded page. Next is nil when the page is empty.
type Section struct {
	Posts []*models.Post
	Next  *Cursor
}

// ByID indexes the page by post id.
func (s Section) ByID() map[string]*models.Post {
	out := make(map[string]*models.Post, len(s.Posts))
	for _, p := range s.Posts {
		out[p.ID] = p
	}
	return out
}

// Result holds the pages of a ranking pass. Sorted is nil for guests.
type Result struct {
	TopCommented Section
	TopNew       Section
	Sorted       *Section
	Cursors      Cursors
}

type Options struct {
	TieBreakByID bool
}

type Engine struct {
	opts Options
}

func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

var defaultEngine = New(Options{})

// Rank runs a pass with the default options.
func Rank(posts []*models.Post, req Request) (*Result, error) {
	return defaultEngine.Rank(posts, req)
}

// Rank filters posts by the request's date range and builds every section.
// posts is not modified.
func (e *Engine) Rank(posts []*models.Post, req Request) (*Result, error) {
	if req.Limit <= 0 {
		return nil, models.ErrInvalidLimit
	}
	if req.Criteria == "" {
		req.Criteria = ByDate
	}
	if req.Order == "" {
		req.Order = Descending
	}

	b := req.DateRange.bounds()
	filtered := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if p != nil && b.contains(p.CreatedOn) {
			filtered = append(filtered, p)
		}
	}

	res := &Result{
		TopCommented: e.section(filtered, ByComments, Descending, req.Cursors.LastCommented, req.Limit),
		TopNew:       e.section(filtered, ByDate, Descending, req.Cursors.LastNew, req.Limit),
	}
	res.Cursors.LastCommented = res.TopCommented.Next
	res.Cursors.LastNew = res.TopNew.Next

	if !req.Guest {
		sorted := e.section(filtered, req.Criteria, req.Order, req.Cursors.LastSorted, req.Limit)
		res.Sorted = &sorted
		res.Cursors.LastSorted = sorted.Next
	}
	return res, nil
}

func (e *Engine) section(posts []*models.Post, c Criteria, o Order, cur *Cursor, limit int) Section {
	ordered := slices.Clone(posts)
	slices.SortStableFunc(ordered, func(a, b *models.Post) int {
		d := directed(compareKeys(c, a, b), o)
		if d == 0 && e.opts.TieBreakByID {
			return strings.Compare(a.ID, b.ID)
		}
		return d
	})

	page := make([]*models.Post, 0, min(limit, len(ordered)))
	for _, p := range ordered {
		if cur != nil && !e.pastCursor(c, o, p, cur) {
			continue
		}
		page = append(page, p)
		if len(page) == limit {
			break
		}
	}

	s := Section{Posts: page}
	if len(page) > 0 {
		s.Next = CursorFor(page[len(page)-1])
	}
	return s
}

// pastCursor reports whether p sorts strictly after the cursor.
func (e *Engine) pastCursor(c Criteria, o Order, p *models.Post, cur *Cursor) bool {
	d := directed(compareToCursor(c, p, cur), o)
	if d != 0 {
		return d > 0
	}
	return e.opts.TieBreakByID && p.ID > cur.PostID
}

func directed(d int, o Order) int {
	if o == Descending {
		return -d
	}
	return d
}

// compareKeys compares a and b ascending on the criteria's derived key.
func compareKeys(c Criteria, a, b *models.Post) int {
	switch c {
	case ByComments:
		return cmp.Compare(a.EffectiveCommentCount(), b.EffectiveCommentCount())
	case ByLikes:
		return cmp.Compare(a.EffectiveLikeCount(), b.EffectiveLikeCount())
	default:
		return a.CreatedOn.Compare(b.CreatedOn)
	}
}

func compareToCursor(c Criteria, p *models.Post, cur *Cursor) int {
	switch c {
	case ByComments:
		return cmp.Compare(p.EffectiveCommentCount(), cur.CommentCount)
	case ByLikes:
		return cmp.Compare(p.EffectiveLikeCount(), cur.LikeCount)
	default:
		return p.CreatedOn.Compare(cur.CreatedOn)
	}
}
