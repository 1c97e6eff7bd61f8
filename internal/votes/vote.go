// Package votes toggles a user's vote on a post inside a single atomic
// read-modify-write of the post document.
package votes

import (
	"time"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

// State is the vote summary of a post as seen by one user.
type State struct {
	VotesCount int  `json:"votesCount"`
	Upvoted    bool `json:"upvoted"`
	Downvoted  bool `json:"downvoted"`
}

// StateOf derives the summary from the post's vote maps.
func StateOf(p *models.Post, userID string) State {
	if p == nil {
		return State{}
	}
	return State{
		VotesCount: p.VotesCount(),
		Upvoted:    p.HasUpvoted(userID),
		Downvoted:  p.HasDownvoted(userID),
	}
}

// Apply returns a copy of p with userID's vote toggled. The user is first
// removed from both maps; the clicked direction is then added unless it was
// already the active one. A nil post yields nil.
func Apply(p *models.Post, userID string, isUpvote bool, now time.Time) *models.Post {
	if p == nil {
		return nil
	}
	next := p.Clone()
	if next.Upvotes == nil {
		next.Upvotes = make(map[string]bool)
	}
	if next.Downvotes == nil {
		next.Downvotes = make(map[string]bool)
	}

	hadUp := next.Upvotes[userID]
	hadDown := next.Downvotes[userID]
	delete(next.Upvotes, userID)
	delete(next.Downvotes, userID)

	switch {
	case isUpvote && !hadUp:
		next.Upvotes[userID] = true
	case !isUpvote && !hadDown:
		next.Downvotes[userID] = true
	}

	next.Touch(now)
	return next
}
