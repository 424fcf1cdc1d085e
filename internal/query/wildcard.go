package query

import "strings"

// matchWildcard reports whether name matches pattern, where '*' matches any
// run of characters and '?' matches exactly one. Iterative with
// backtracking over the last '*', so pathological patterns stay linear-ish.
func matchWildcard(pattern, name string, caseInsensitive bool) bool {
	if caseInsensitive {
		pattern = strings.ToLower(pattern)
		name = strings.ToLower(name)
	}
	pi, ni := 0, 0
	star, mark := -1, 0
	for ni < len(name) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == name[ni]):
			pi++
			ni++
		case pi < len(pattern) && pattern[pi] == '*':
			star = pi
			mark = ni
			pi++
		case star != -1:
			pi = star + 1
			mark++
			ni = mark
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// containsCase reports whether name contains pattern with the requested
// case sensitivity.
func containsCase(name, pattern string, caseInsensitive bool) bool {
	if caseInsensitive {
		return strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
	}
	return strings.Contains(name, pattern)
}
