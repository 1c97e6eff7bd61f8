// Package search narrows an already fetched page of posts by free text.
package search

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

// Filter returns the posts whose title or content contains query, ignoring
// case. A blank query returns posts unchanged. The result keeps the input
// order and never contains a post that was not in posts.
func Filter(posts []*models.Post, query string) []*models.Post {
	query = strings.TrimSpace(query)
	if query == "" {
		return posts
	}

	fold := cases.Fold()
	needle := fold.String(query)

	out := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		if strings.Contains(fold.String(p.Title), needle) || strings.Contains(fold.String(p.Content), needle) {
			out = append(out, p)
		}
	}
	return out
}
