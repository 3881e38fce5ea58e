package textutil

import (
	"strings"
	"unicode"
)

// Slug lowercases value and joins its letter and digit runs with single
// underscores, so "Episode 12: Pricing!" becomes "episode_12_pricing". Values
// with no letters or digits yield "unknown".
func Slug(value string) string {
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.Join(fields, "_")
}
