package storage

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

// decodePost maps a raw document onto a Post. It is deliberately lenient:
// older documents store createdOn as an ISO string or epoch milliseconds,
// comments as an array, and counters as floats. A time that cannot be read
// is logged and left zero, which keeps the post out of every ranked section.
func decodePost(id string, data map[string]interface{}) *models.Post {
	p := &models.Post{
		ID:       id,
		Title:    asString(data["title"]),
		Content:  asString(data["content"]),
		AuthorID: asString(data["userId"]),
	}

	p.CreatedOn = postTime(id, "createdOn", data)
	p.LastActivityDate = postTime(id, "lastActivityDate", data)

	p.Comments = asComments(data["comments"])
	p.Upvotes = asSet(data["upvotes"])
	p.Downvotes = asSet(data["downvotes"])
	p.LikedBy = asSet(data["likedBy"])
	p.Likes = asInt(data["likes"])
	p.LikeCount = asInt(data["likeCount"])
	p.CommentCount = asInt(data["commentCount"])
	return p
}

func postTime(id, field string, data map[string]interface{}) time.Time {
	t, err := asTime(data[field])
	if err != nil {
		slog.Warn("Ignoring unreadable post time", "post", id, "field", field, "error", err)
		return time.Time{}
	}
	return t
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asTime accepts a Firestore timestamp, an RFC 3339 string or epoch
// milliseconds. Absent and null values are the zero time.
func asTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case string:
		if t == "" {
			return time.Time{}, nil
		}
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC(), nil
		}
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unrecognised time %q", t)
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time type %T", v)
	}
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

// asSet decodes a map of user id to a marker. Every key is a member, so
// the set's size matches the number of keys stored; the value records
// whether the marker is truthy (legacy likes store 1 instead of true). Any
// non-map value, such as a bare numeric likedBy, is treated as absent.
func asSet(v interface{}) map[string]bool {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, val := range m {
		out[k] = truthy(val)
	}
	return out
}

func truthy(v interface{}) bool {
	switch marker := v.(type) {
	case nil:
		return false
	case bool:
		return marker
	case int64, int, float64:
		return asInt(marker) != 0
	case string:
		return marker != ""
	default:
		return true
	}
}

// asComments decodes the comments field. A map is keyed by comment id; an
// array, as written on post creation by older clients, is keyed by index.
func asComments(v interface{}) map[string]models.Comment {
	switch c := v.(type) {
	case map[string]interface{}:
		out := make(map[string]models.Comment, len(c))
		for id, raw := range c {
			out[id] = asComment(raw)
		}
		return out
	case []interface{}:
		out := make(map[string]models.Comment, len(c))
		for i, raw := range c {
			out[strconv.Itoa(i)] = asComment(raw)
		}
		return out
	default:
		return nil
	}
}

func asComment(v interface{}) models.Comment {
	m, ok := v.(map[string]interface{})
	if !ok {
		return models.Comment{Text: asString(v)}
	}
	created, _ := asTime(m["createdOn"])
	return models.Comment{
		Text:         asString(m["text"]),
		AuthorID:     asString(m["userId"]),
		AuthorHandle: asString(m["userHandle"]),
		CreatedOn:    created,
	}
}
