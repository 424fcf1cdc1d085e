package query

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tagd-dev/tagd/internal/project"
	"github.com/tagd-dev/tagd/pkg/types"
)

// ListSymbolsJob answers one "list symbols" query against a project.
type ListSymbolsJob struct {
	query   Query
	proj    *project.Project
	pattern string // query pattern after the wildcard-append adjustment
}

// NewListSymbols builds the job.
func NewListSymbols(q Query, proj *project.Project) *ListSymbolsJob {
	return &ListSymbolsJob{query: q, proj: proj}
}

// Execute runs the query and writes results to w. Returns 0 on a non-empty
// result set and 1 when nothing matched; "no results" is the only failure a
// query surfaces.
func (l *ListSymbolsJob) Execute(w io.Writer) int {
	l.pattern = l.query.Pattern
	if l.query.Flags.Has(WildcardSymbolNames) &&
		strings.ContainsAny(l.pattern, "*?") && !strings.HasSuffix(l.pattern, "*") {
		// Make prefix-style queries behave as "starts with or matches".
		l.pattern += "*"
	}

	// Only a filter list made entirely of Self filters naming known files
	// routes through the per-file scan; anything else falls back to the
	// project-wide index.
	var paths []string
	for _, f := range l.query.PathFilters {
		if f.Mode != PathFilterSelf || l.proj.FileID(f.Pattern) == 0 {
			paths = nil
			break
		}
		paths = append(paths, f.Pattern)
	}

	var out map[string]struct{}
	if len(paths) > 0 {
		out = l.listSymbolsWithPathFilter(paths)
	} else {
		out = l.listSymbols()
	}

	names := make([]string, 0, len(out))
	for name := range out {
		names = append(names, name)
	}
	sort.Strings(names)

	if l.query.Flags.Has(Elisp) {
		fmt.Fprintln(w, "(list")
		for _, name := range names {
			fmt.Fprintln(w, strconv.Quote(name))
		}
		fmt.Fprintln(w, ")")
	} else {
		if l.query.Flags.Has(ReverseSort) {
			sort.Sort(sort.Reverse(sort.StringSlice(names)))
		}
		for _, name := range names {
			fmt.Fprintln(w, name)
		}
	}

	if len(out) == 0 {
		return 1
	}
	return 0
}

// listSymbolsWithPathFilter scans the symbols map of each named file.
func (l *ListSymbolsJob) listSymbolsWithPathFilter(paths []string) map[string]struct{} {
	wildcard := l.query.Flags.Has(WildcardSymbolNames) && strings.ContainsAny(l.query.Pattern, "*?")
	strip := l.query.Flags.Has(StripParentheses)
	ci := l.query.Flags.Has(MatchCaseInsensitive)

	out := make(map[string]struct{})
	for _, path := range paths {
		fileID := l.proj.FileID(path)
		if fileID == 0 {
			continue
		}
		symbols, err := l.proj.FileMaps().OpenSymbols(fileID)
		if err != nil {
			continue
		}
		for i := 0; i < symbols.Count(); i++ {
			sym := symbols.ValueAt(i)
			if !l.query.FilterKind(sym.Kind) {
				continue
			}
			name := sym.SymbolName
			if name == "" {
				continue
			}
			if l.pattern != "" {
				if wildcard {
					if !matchWildcard(l.pattern, name, ci) {
						continue
					}
				} else if !containsCase(name, l.pattern, ci) {
					continue
				}
			}

			if !strip {
				out[name] = struct{}{}
				continue
			}
			paren := strings.IndexByte(name, '(')
			switch {
			case paren == -1:
				out[name] = struct{}{}
			case isFunctionVariableSymbol(&sym):
				// Truncating would corrupt the type of a function-pointer
				// or function-local variable.
				out[name] = struct{}{}
			default:
				out[name[:paren]] = struct{}{}
			}
		}
	}
	return out
}

// listSymbols walks the project-wide consolidated name index. Unlike the
// path-filtered scan it can emit both the truncated and the verbatim form
// of a parenthesized name; the asymmetry is intentional and relied upon by
// editor frontends.
func (l *ListSymbolsJob) listSymbols() map[string]struct{} {
	hasFilter := len(l.query.PathFilters) > 0
	hasKindFilter := l.query.HasKindFilter()
	strip := l.query.Flags.Has(StripParentheses)
	wildcard := l.query.Flags.Has(WildcardSymbolNames) && strings.ContainsAny(l.query.Pattern, "*?")
	ci := l.query.Flags.Has(MatchCaseInsensitive)

	match := func(name string) bool {
		if l.pattern == "" {
			return true
		}
		if wildcard {
			return matchWildcard(l.pattern, name, ci)
		}
		return containsCase(name, l.pattern, ci)
	}

	out := make(map[string]struct{})
	l.proj.FindSymbols(match, func(name string, locations []types.Location) {
		if hasFilter {
			ok := false
			for _, loc := range locations {
				if l.filterPath(l.proj.FilePath(loc.FileID)) {
					ok = true
					break
				}
			}
			if !ok {
				return
			}
		}
		if hasKindFilter {
			sym, ok := l.proj.FindSymbol(locations[0])
			if !ok || !l.query.FilterKind(sym.Kind) {
				return
			}
		}
		paren := strings.IndexByte(name, '(')
		if paren == -1 {
			out[name] = struct{}{}
			return
		}
		if !types.IsFunctionVariable(name) {
			out[name[:paren]] = struct{}{}
		}
		if !strip {
			out[name] = struct{}{}
		}
	})
	return out
}

// filterPath applies the query's path filters to one location path.
func (l *ListSymbolsJob) filterPath(path string) bool {
	if path == "" {
		return false
	}
	for _, f := range l.query.PathFilters {
		switch f.Mode {
		case PathFilterSelf:
			if path == f.Pattern {
				return true
			}
		default:
			if strings.HasPrefix(path, f.Pattern) {
				return true
			}
		}
	}
	return false
}

// isFunctionVariableSymbol classifies a symbol whose full record is at
// hand: either the name marks a function-local variable, or the symbol is
// a variable/field whose name carries a parenthesized (function-pointer)
// type.
func isFunctionVariableSymbol(sym *types.Symbol) bool {
	if types.IsFunctionVariable(sym.SymbolName) {
		return true
	}
	if !strings.ContainsRune(sym.SymbolName, '(') {
		return false
	}
	return sym.Kind == types.KindVariable || sym.Kind == types.KindField
}
