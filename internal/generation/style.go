package generation

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Style is the optional voice applied to every generated passage.
type Style struct {
	Tone        string   `json:"tone,omitempty" yaml:"tone"`
	StyleGuide  string   `json:"style_guide,omitempty" yaml:"style_guide"`
	BannedTerms []string `json:"banned_terms,omitempty" yaml:"banned_terms"`
}

// IsZero reports whether the style carries no instructions.
func (s *Style) IsZero() bool {
	if s == nil {
		return true
	}
	return strings.TrimSpace(s.Tone) == "" &&
		strings.TrimSpace(s.StyleGuide) == "" &&
		len(s.bannedTerms()) == 0
}

// Merge returns a copy of s with extra banned terms appended.
func (s *Style) Merge(extra []string) *Style {
	if s == nil && len(extra) == 0 {
		return nil
	}
	merged := &Style{}
	if s != nil {
		merged.Tone = s.Tone
		merged.StyleGuide = s.StyleGuide
		merged.BannedTerms = append(merged.BannedTerms, s.BannedTerms...)
	}
	merged.BannedTerms = append(merged.BannedTerms, extra...)
	merged.BannedTerms = merged.bannedTerms()
	return merged
}

// voiceLine renders the style as a single prompt line.
func (s *Style) voiceLine() string {
	if s == nil {
		return ""
	}
	tone := strings.TrimSpace(s.Tone)
	guide := strings.TrimSpace(s.StyleGuide)
	switch {
	case tone != "" && guide != "":
		return "Tone: " + tone + ", Style: " + guide
	case tone != "":
		return "Tone: " + tone
	case guide != "":
		return "Style: " + guide
	default:
		return ""
	}
}

// bannedTerms returns the trimmed, de-duplicated banned terms in input order.
func (s *Style) bannedTerms() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(s.BannedTerms))
	out := make([]string, 0, len(s.BannedTerms))
	for _, term := range s.BannedTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := foldText(term)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}

// BannedTermsIn returns the banned terms that occur in text as whole words,
// sorted for stable reporting. Matching ignores case and Unicode
// normalisation differences.
func (s *Style) BannedTermsIn(text string) []string {
	terms := s.bannedTerms()
	if len(terms) == 0 || strings.TrimSpace(text) == "" {
		return nil
	}
	haystack := foldText(text)
	var found []string
	for _, term := range terms {
		if containsWord(haystack, foldText(term)) {
			found = append(found, term)
		}
	}
	sort.Strings(found)
	return found
}

// foldText applies Unicode case folding followed by NFC composition.
// A Caser is stateful so each call gets its own.
func foldText(text string) string {
	return norm.NFC.String(cases.Fold().String(norm.NFC.String(text)))
}

func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	offset := 0
	for {
		idx := strings.Index(haystack[offset:], needle)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(needle)
		if wordBoundaryBefore(haystack, start) && wordBoundaryAfter(haystack, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(haystack[start:])
		offset = start + size
	}
}

func wordBoundaryBefore(s string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:idx])
	return !isWordRune(r)
}

func wordBoundaryAfter(s string, idx int) bool {
	if idx >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[idx:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
