package project

import (
	"regexp"
	"strings"
)

// Match selects file paths for reindex/remove operations: an empty pattern
// matches everything, otherwise a substring match, or a regular expression
// when built with NewRegexMatch.
type Match struct {
	pattern string
	re      *regexp.Regexp
}

// NewMatch builds a substring match.
func NewMatch(pattern string) Match {
	return Match{pattern: pattern}
}

// NewRegexMatch builds a regular-expression match.
func NewRegexMatch(pattern string) (Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Match{}, err
	}
	return Match{pattern: pattern, re: re}, nil
}

// IsEmpty reports whether the match accepts everything.
func (m Match) IsEmpty() bool { return m.pattern == "" }

// IsMatch reports whether path is selected.
func (m Match) IsMatch(path string) bool {
	if m.pattern == "" {
		return true
	}
	if m.re != nil {
		return m.re.MatchString(path)
	}
	return strings.Contains(path, m.pattern)
}

func (m Match) String() string { return m.pattern }
