package dedup

import (
	"regexp"
	"strings"
)

const (
	// MinPrefixLength is the shortest normalized title the prefix rule accepts.
	MinPrefixLength = 15
	// MinTitleLength guards generic short names from matching anything.
	MinTitleLength = 10
	// JaccardThreshold is the inclusive token overlap ratio for a match.
	JaccardThreshold = 0.8
)

var tokenExpr = regexp.MustCompile(`[a-z0-9]+`)

// PrefixOverlap reports whether two normalized titles agree on their first
// min(len(a), len(b)) characters, provided that length is at least
// MinPrefixLength.
func PrefixOverlap(a, b string) bool {
	shorter := min(len(a), len(b))
	if shorter < MinPrefixLength {
		return false
	}
	return strings.HasPrefix(a, b[:shorter]) || strings.HasPrefix(b, a[:shorter])
}

// TokenJaccard is |A∩B| / |A∪B| over the alphanumeric tokens of a and b.
// Empty token sets score 0.
func TokenJaccard(a, b string) float64 {
	return jaccard(tokenSet(a), tokenSet(b))
}

func tokenSet(s string) map[string]struct{} {
	tokens := tokenExpr.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// TitleKey is a precomputed comparison key for one title.
type TitleKey struct {
	Normalized string
	tokens     map[string]struct{}
}

// NewTitleKey builds the key for a raw title.
func NewTitleKey(title string) TitleKey {
	return TitleKey{
		Normalized: NormalizeTitle(title),
		tokens:     tokenSet(title),
	}
}

// Matches applies the full title rule set: exact normalized equality, prefix
// overlap, or token Jaccard at or above JaccardThreshold. A normalized title
// shorter than MinTitleLength never matches.
func (k TitleKey) Matches(other TitleKey) bool {
	if len(k.Normalized) < MinTitleLength {
		return false
	}
	if k.Normalized == other.Normalized {
		return true
	}
	if PrefixOverlap(k.Normalized, other.Normalized) {
		return true
	}
	return jaccard(k.tokens, other.tokens) >= JaccardThreshold
}
