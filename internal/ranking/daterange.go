package ranking

import (
	"strconv"
	"strings"
	"time"
)

// DateRange holds optional inclusive bounds on a post's creation time, as
// entered by the user. A bound that cannot be parsed is ignored rather than
// rejected.
type DateRange struct {
	From string
	To   string
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseBound parses a single bound. ok is false for an empty or unparsable
// value.
func ParseBound(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

type bounds struct {
	from, to       time.Time
	hasFrom, hasTo bool
}

func (r DateRange) bounds() bounds {
	var b bounds
	b.from, b.hasFrom = ParseBound(r.From)
	b.to, b.hasTo = ParseBound(r.To)
	return b
}

// contains excludes posts without a creation time unconditionally.
func (b bounds) contains(created time.Time) bool {
	if created.IsZero() {
		return false
	}
	if b.hasFrom && created.Before(b.from) {
		return false
	}
	if b.hasTo && created.After(b.to) {
		return false
	}
	return true
}
