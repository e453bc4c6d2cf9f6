package value

import (
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// collate.Collator keeps internal buffers and must not be shared across goroutines.
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Und, collate.Numeric)
)

// Compare orders names lexically, comparing embedded digit runs by numeric
// value so that "x2" sorts before "x10". Ties under collation fall back to
// byte order, which keeps the ordering total.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	collatorMu.Lock()
	c := collator.CompareString(a, b)
	collatorMu.Unlock()
	if c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// SortBy stably sorts items by the Compare order of key(item).
func SortBy[T any](items []T, key func(T) string) {
	slices.SortStableFunc(items, func(x, y T) int {
		return Compare(key(x), key(y))
	})
}

// SortedNames returns a sorted, de-duplicated copy of names.
func SortedNames(names []string) []string {
	out := slices.Clone(names)
	slices.SortFunc(out, Compare)
	return slices.Compact(out)
}
