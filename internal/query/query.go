package query

import (
	"github.com/tagd-dev/tagd/pkg/types"
)

// Flag bits controlling query behavior and output.
type Flag uint32

const (
	// Elisp emits a quoted literal-list wrapper instead of plain lines.
	Elisp Flag = 1 << iota
	// WildcardSymbolNames enables * and ? matching on the pattern.
	WildcardSymbolNames
	// StripParentheses truncates signatures at the opening parenthesis.
	StripParentheses
	// MatchCaseInsensitive compares names case-insensitively.
	MatchCaseInsensitive
	// ReverseSort orders plain output descending.
	ReverseSort
)

// Has reports whether bit is set.
func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// PathFilterMode selects how a path filter is applied.
type PathFilterMode int

const (
	// PathFilterDependency matches any location whose path has the filter
	// as a prefix.
	PathFilterDependency PathFilterMode = iota
	// PathFilterSelf restricts the query to one exact known file.
	PathFilterSelf
)

// PathFilter narrows a query to locations under (or exactly at) a path.
type PathFilter struct {
	Pattern string
	Mode    PathFilterMode
}

// Query is one symbol-lookup request.
type Query struct {
	Pattern     string
	Flags       Flag
	PathFilters []PathFilter
	// KindFilter restricts results to the listed kinds; empty means all.
	KindFilter map[types.SymbolKind]struct{}
}

// HasKindFilter reports whether a kind filter is in effect.
func (q *Query) HasKindFilter() bool { return len(q.KindFilter) > 0 }

// FilterKind reports whether kind passes the kind filter.
func (q *Query) FilterKind(kind types.SymbolKind) bool {
	if len(q.KindFilter) == 0 {
		return true
	}
	_, ok := q.KindFilter[kind]
	return ok
}
