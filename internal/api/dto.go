package api

import (
	"time"

	"github.com/pauljones0/mindmerge-forum/internal/models"
	"github.com/pauljones0/mindmerge-forum/internal/ranking"
)

type postResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	AuthorID         string    `json:"userId"`
	AuthorHandle     string    `json:"userHandle"`
	CreatedOn        time.Time `json:"createdOn"`
	LastActivityDate time.Time `json:"lastActivityDate,omitempty"`
	CommentCount     int       `json:"commentCount"`
	LikeCount        int       `json:"likeCount"`
	VotesCount       int       `json:"votesCount"`
	Upvoted          bool      `json:"upvoted"`
	Downvoted        bool      `json:"downvoted"`
}

type cursorTokens struct {
	Commented string `json:"commented,omitempty"`
	New       string `json:"new,omitempty"`
	Sorted    string `json:"sorted,omitempty"`
}

type feedResponse struct {
	TopCommented []postResponse `json:"topCommented"`
	TopNew       []postResponse `json:"topNew"`
	// Sorted is null for guests.
	Sorted  []postResponse `json:"sorted"`
	Cursors cursorTokens   `json:"cursors"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Posts   []postResponse `json:"posts"`
	Cursors cursorTokens   `json:"cursors"`
}

type voteRequest struct {
	Upvote *bool `json:"upvote"`
}

type voteResponse struct {
	Recorded   bool `json:"recorded"`
	VotesCount int  `json:"votesCount"`
	Upvoted    bool `json:"upvoted"`
	Downvoted  bool `json:"downvoted"`
}

type commentResponse struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	AuthorID     string    `json:"userId"`
	AuthorHandle string    `json:"userHandle"`
	CreatedOn    time.Time `json:"createdOn"`
}

func toPostResponses(posts []*models.Post, handles map[string]string, viewer models.Viewer) []postResponse {
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostResponse(p, handles, viewer))
	}
	return out
}

func toPostResponse(p *models.Post, handles map[string]string, viewer models.Viewer) postResponse {
	handle, ok := handles[p.AuthorID]
	if !ok {
		handle = models.UnknownUserHandle
	}
	return postResponse{
		ID:               p.ID,
		Title:            p.Title,
		Content:          p.Content,
		AuthorID:         p.AuthorID,
		AuthorHandle:     handle,
		CreatedOn:        p.CreatedOn,
		LastActivityDate: p.LastActivityDate,
		CommentCount:     p.EffectiveCommentCount(),
		LikeCount:        p.EffectiveLikeCount(),
		VotesCount:       p.VotesCount(),
		Upvoted:          p.HasUpvoted(viewer.UserID),
		Downvoted:        p.HasDownvoted(viewer.UserID),
	}
}

func encodeCursors(codec *ranking.Codec, c ranking.Cursors) cursorTokens {
	return cursorTokens{
		Commented: codec.Encode(c.LastCommented),
		New:       codec.Encode(c.LastNew),
		Sorted:    codec.Encode(c.LastSorted),
	}
}
