package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchWildcard(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		ci      bool
		want    bool
	}{
		{"foo*", "foobar", false, true},
		{"foo*", "foo", false, true},
		{"foo*", "barfoo", false, false},
		{"*bar", "foobar", false, true},
		{"f?o", "foo", false, true},
		{"f?o", "fo", false, false},
		{"*", "anything", false, true},
		{"*", "", false, true},
		{"a*b*c", "aXXbYYc", false, true},
		{"a*b*c", "acb", false, false},
		{"ba*", "Bar", false, false},
		{"ba*", "Bar", true, true},
		{"", "", false, true},
		{"", "x", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchWildcard(tt.pattern, tt.name, tt.ci))
		})
	}
}

func TestContainsCase(t *testing.T) {
	assert.True(t, containsCase("fooBar", "Bar", false))
	assert.False(t, containsCase("foobar", "Bar", false))
	assert.True(t, containsCase("foobar", "Bar", true))
	assert.True(t, containsCase("anything", "", false))
}
