package textutil

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// tokenSplitPattern matches runs of characters that are neither letters nor digits.
var tokenSplitPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// stopWords are conversational filler terms that carry no topical signal in
// spoken transcripts.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "you": {}, "that": {}, "this": {}, "was": {}, "for": {},
	"are": {}, "with": {}, "have": {}, "but": {}, "not": {}, "they": {}, "what": {},
	"just": {}, "like": {}, "yeah": {}, "know": {}, "mean": {}, "really": {},
	"from": {}, "there": {}, "about": {}, "can": {}, "its": {}, "it's": {}, "all": {},
	"get": {}, "our": {}, "out": {}, "who": {}, "how": {}, "very": {}, "also": {},
	"would": {}, "could": {}, "some": {}, "then": {}, "them": {}, "were": {}, "been": {},
	"into": {}, "your": {}, "when": {}, "which": {}, "his": {}, "her": {}, "she": {},
	"him": {}, "had": {}, "has": {}, "did": {}, "does": {}, "okay": {}, "right": {},
	"gonna": {}, "kind": {}, "sort": {}, "thing": {}, "things": {}, "lot": {},
}

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	return newFingerprint(counts)
}

func newFingerprint(weights map[string]float64) *Fingerprint {
	var norm float64
	for _, w := range weights {
		norm += w * w
	}
	return &Fingerprint{tokens: weights, norm: math.Sqrt(norm)}
}

// Tokenize splits text into lowercase tokens, dropping stop words and tokens
// shorter than three characters.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	raw := tokenSplitPattern.Split(lowered, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if utf8.RuneCountInString(token) < 3 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// TopTerm returns the highest-weighted token. Ties resolve alphabetically.
func (f *Fingerprint) TopTerm() string {
	if f == nil || len(f.tokens) == 0 {
		return ""
	}
	terms := make([]string, 0, len(f.tokens))
	for term := range f.tokens {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		wi, wj := f.tokens[terms[i]], f.tokens[terms[j]]
		if wi != wj {
			return wi > wj
		}
		return terms[i] < terms[j]
	})
	return terms[0]
}

// Similarity is the cosine of the angle between two fingerprints. A nil or
// empty fingerprint scores 0 against anything.
func (f *Fingerprint) Similarity(other *Fingerprint) float64 {
	if f == nil || other == nil || f.norm == 0 || other.norm == 0 {
		return 0
	}
	var dot float64
	for token, weight := range f.tokens {
		dot += weight * other.tokens[token]
	}
	return dot / (f.norm * other.norm)
}

// WithIDF returns a new Fingerprint with TF-IDF weights applied.
// Each term's count is multiplied by its IDF weight. The norm is recomputed.
// Terms absent from the IDF map retain their original weight.
func (f *Fingerprint) WithIDF(idf map[string]float64) *Fingerprint {
	if f == nil || len(idf) == 0 {
		return f
	}
	weighted := make(map[string]float64, len(f.tokens))
	for token, count := range f.tokens {
		w := count
		if idfVal, ok := idf[token]; ok {
			w *= idfVal
		}
		if w == 0 {
			continue
		}
		weighted[token] = w
	}
	if len(weighted) == 0 {
		return nil
	}
	return newFingerprint(weighted)
}

// Corpus collects document frequency statistics for IDF computation.
type Corpus struct {
	docCount int
	docFreq  map[string]int
}

// NewCorpus creates an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{docFreq: make(map[string]int)}
}

// Add registers a fingerprint's unique terms in the corpus.
func (c *Corpus) Add(fp *Fingerprint) {
	if c == nil || fp == nil {
		return
	}
	c.docCount++
	for token := range fp.tokens {
		c.docFreq[token]++
	}
}

// Len reports how many documents were added.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return c.docCount
}

// IDF computes inverse document frequency weights: log((N+1)/(1+df)) for each term.
// Terms present in every document weigh zero.
func (c *Corpus) IDF() map[string]float64 {
	if c == nil || c.docCount == 0 {
		return nil
	}
	idf := make(map[string]float64, len(c.docFreq))
	n := float64(c.docCount)
	for term, df := range c.docFreq {
		idf[term] = math.Log((n + 1) / (1 + float64(df)))
	}
	return idf
}

// SmoothIDF computes log((N+1)/(df+1)) + 1 so that terms shared by every
// document keep a positive weight. Small corpora (a handful of transcript
// segments) need this to stay searchable.
func (c *Corpus) SmoothIDF() map[string]float64 {
	if c == nil || c.docCount == 0 {
		return nil
	}
	idf := make(map[string]float64, len(c.docFreq))
	n := float64(c.docCount)
	for term, df := range c.docFreq {
		idf[term] = math.Log((n+1)/(float64(df)+1)) + 1
	}
	return idf
}
