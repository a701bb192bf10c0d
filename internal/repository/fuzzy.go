package repository

import (
	"regexp"
	"strings"
)

// FuzzyPattern builds the subsequence-match pattern for query: every query
// character in order, any gap between them. Characters are escaped so the
// query is matched literally. The pattern is shared by both backends: the
// document backend hands it to $regex, the file backend compiles it.
func FuzzyPattern(query string) string {
	var parts []string
	for _, r := range query {
		parts = append(parts, regexp.QuoteMeta(string(r)))
	}
	return strings.Join(parts, ".*")
}

// FuzzyRegexp compiles the case-insensitive subsequence matcher for query.
func FuzzyRegexp(query string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + FuzzyPattern(query))
}
