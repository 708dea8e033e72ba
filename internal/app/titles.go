package app

import (
	"fmt"
	"strings"
)

// MakeUniqueTitle appends " (n)" until the title no longer collides with
// an entry in used. Comparison is case-insensitive; used keys must be
// lowercased by the caller.
func MakeUniqueTitle(title string, used map[string]bool) string {
	if !used[strings.ToLower(title)] {
		return title
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", title, n)
		if !used[strings.ToLower(candidate)] {
			return candidate
		}
	}
}
