// Package match decides whether a ROM's category satisfies a user filter.
package match

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// MatureMarker is the sentinel catver.ini appends to adult titles.
	MatureMarker = "* Mature *"
	// MatureToken selects the mature rule when given as the category filter.
	MatureToken = "mature"
)

// Filter is a category filter. An empty Category selects the mature rule.
type Filter struct {
	Category        string
	CaseInsensitive bool
}

// Mature reports whether the filter resolves to the built-in mature rule,
// either because no category was given or because it names the mature token.
func (f Filter) Mature() bool {
	return f.Category == "" || strings.EqualFold(f.Category, MatureToken)
}

func (f Filter) String() string {
	if f.Mature() {
		return MatureToken
	}
	if f.CaseInsensitive {
		return fmt.Sprintf("%q (case-insensitive)", f.Category)
	}
	return fmt.Sprintf("%q", f.Category)
}

// Matches reports whether category satisfies the filter. The mature rule is
// an exact, case-sensitive marker check and ignores CaseInsensitive.
func Matches(category string, f Filter) bool {
	if f.Mature() {
		return strings.Contains(category, MatureMarker)
	}
	if f.CaseInsensitive {
		// Casers carry state and are not safe to share across goroutines.
		lower := cases.Lower(language.Und)
		return strings.Contains(lower.String(category), lower.String(f.Category))
	}
	return strings.Contains(category, f.Category)
}
