package models

import (
	"time"
)

// Post is a forum question together with its comments and votes.
//
// Two document schemas coexist in the posts collection. Newer posts carry
// a comments map and upvote/downvote maps; older posts carry a likedBy map
// or scalar like counters and a scalar commentCount. Use the Effective*
// accessors instead of reading either representation directly.
type Post struct {
	ID               string             `firestore:"-" json:"id"`
	Title            string             `firestore:"title" json:"title" validate:"required"`
	Content          string             `firestore:"content" json:"content" validate:"required"`
	AuthorID         string             `firestore:"userId" json:"userId" validate:"required"`
	CreatedOn        time.Time          `firestore:"createdOn,omitempty" json:"createdOn"`
	LastActivityDate time.Time          `firestore:"lastActivityDate,omitempty" json:"lastActivityDate"`
	Comments         map[string]Comment `firestore:"comments" json:"comments,omitempty"`
	Upvotes          map[string]bool    `firestore:"upvotes" json:"upvotes,omitempty"`
	Downvotes        map[string]bool    `firestore:"downvotes" json:"downvotes,omitempty"`

	// Legacy schema.
	LikedBy      map[string]bool `firestore:"likedBy" json:"likedBy,omitempty"`
	Likes        int             `firestore:"likes,omitempty" json:"likes,omitempty"`
	LikeCount    int             `firestore:"likeCount,omitempty" json:"likeCount,omitempty"`
	CommentCount int             `firestore:"commentCount,omitempty" json:"commentCount,omitempty"`
}

// Comment is an answer owned by its parent Post.
type Comment struct {
	Text         string    `firestore:"text" json:"text" validate:"required"`
	AuthorID     string    `firestore:"userId" json:"userId"`
	AuthorHandle string    `firestore:"userHandle" json:"userHandle"`
	CreatedOn    time.Time `firestore:"createdOn" json:"createdOn"`
}

// EffectiveCommentCount returns the size of the comments map when the post
// has one, otherwise the legacy commentCount.
func (p *Post) EffectiveCommentCount() int {
	if p.Comments != nil {
		return len(p.Comments)
	}
	return p.CommentCount
}

// EffectiveLikeCount returns the size of the likedBy map when present,
// otherwise the first non-zero of likes and likeCount.
func (p *Post) EffectiveLikeCount() int {
	if p.LikedBy != nil {
		return len(p.LikedBy)
	}
	if p.Likes != 0 {
		return p.Likes
	}
	return p.LikeCount
}

// VotesCount is the net score, upvotes minus downvotes.
func (p *Post) VotesCount() int {
	return len(p.Upvotes) - len(p.Downvotes)
}

func (p *Post) HasUpvoted(userID string) bool {
	return userID != "" && p.Upvotes[userID]
}

func (p *Post) HasDownvoted(userID string) bool {
	return userID != "" && p.Downvotes[userID]
}

// Touch stamps the last activity date, never moving it before CreatedOn.
func (p *Post) Touch(now time.Time) {
	if !p.CreatedOn.IsZero() && now.Before(p.CreatedOn) {
		now = p.CreatedOn
	}
	p.LastActivityDate = now
}

// Clone returns a deep copy. A nil map stays nil so that the presence of
// each schema field survives the copy.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	if p.Comments != nil {
		c.Comments = make(map[string]Comment, len(p.Comments))
		for id, cm := range p.Comments {
			c.Comments[id] = cm
		}
	}
	c.Upvotes = cloneSet(p.Upvotes)
	c.Downvotes = cloneSet(p.Downvotes)
	c.LikedBy = cloneSet(p.LikedBy)
	return &c
}

func cloneSet(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
