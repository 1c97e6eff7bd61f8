package ranking

import (
	"fmt"
	"strings"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

// Criteria selects the key the sorted section is ordered by.
type Criteria string

const (
	ByDate     Criteria = "date"
	ByLikes    Criteria = "likes"
	ByComments Criteria = "comments"
)

type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// Page sizes used by the feed views.
const (
	DiscoveryPageSize  = 10
	StandalonePageSize = 50
)

// Labels are the display names of every criteria/order combination, keyed
// by SortKey.
var Labels = map[string]string{
	SortKey(ByDate, Descending):     "Latest Date",
	SortKey(ByDate, Ascending):      "Earliest Date",
	SortKey(ByLikes, Descending):    "Most Liked",
	SortKey(ByLikes, Ascending):     "Least Liked",
	SortKey(ByComments, Descending): "Most Active",
	SortKey(ByComments, Ascending):  "Least Active",
}

// SortKey joins a criteria and an order as "criteria_order".
func SortKey(c Criteria, o Order) string {
	return string(c) + "_" + string(o)
}

// ParseCriteria accepts date, likes or comments. Empty means date.
func ParseCriteria(s string) (Criteria, error) {
	switch Criteria(strings.ToLower(strings.TrimSpace(s))) {
	case "", ByDate:
		return ByDate, nil
	case ByLikes:
		return ByLikes, nil
	case ByComments:
		return ByComments, nil
	}
	return "", models.NewValidationError("criteria", fmt.Sprintf("criteria must be one of: date, likes, comments (got %q)", s))
}

// ParseOrder accepts asc/ascend/ascending and desc/descend/descending in
// any case. Empty means descending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "descend", "descending":
		return Descending, nil
	case "asc", "ascend", "ascending":
		return Ascending, nil
	}
	return "", models.NewValidationError("order", fmt.Sprintf("order must be asc or desc (got %q)", s))
}

// ParseSortKey splits "criteria_order". A key without an order sorts
// descending.
func ParseSortKey(key string) (Criteria, Order, error) {
	name, order, _ := strings.Cut(key, "_")
	c, err := ParseCriteria(name)
	if err != nil {
		return "", "", err
	}
	o, err := ParseOrder(order)
	if err != nil {
		return "", "", err
	}
	return c, o, nil
}
