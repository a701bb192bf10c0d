package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyPattern(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"Single Char", "a", "a"},
		{"Plain Word", "cat", "c.*a.*t"},
		{"Escapes Meta Chars", "a.b", `a.*\..*b`},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FuzzyPattern(tt.query))
		})
	}
}

func TestFuzzyRegexp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		query   string
		subject string
		match   bool
	}{
		{"Exact", "hello", "hello", true},
		{"Subsequence", "hlo", "hello", true},
		{"Case Insensitive", "HeLLo", "hello world", true},
		{"Gap Spanning", "cat", "carrot town", true},
		{"Out Of Order", "tac", "cat", false},
		{"Missing Char", "xyz", "hello", false},
		{"Literal Dot", "a.c", "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, FuzzyRegexp(tt.query).MatchString(tt.subject))
		})
	}
}
