package util

import (
	"fmt"
	"strconv"
	"strings"
)

// IntOrDefault parses s as an integer, returning def when s is blank.
func IntOrDefault(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return i, nil
}
