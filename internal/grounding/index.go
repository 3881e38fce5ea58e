// Package grounding provides per-recording retrieval over transcript segments.
//
// The index is a pure function of the segment sequence: TF-IDF fingerprints
// with smoothed IDF, scored by cosine similarity against the query topic.
package grounding

import (
	"sort"

	"echopress/internal/textutil"
	"echopress/internal/transcript"
)

// DefaultThreshold is the minimum cosine relevance a segment needs to be returned.
const DefaultThreshold = 0.05

// Hit is one retrieved segment with its relevance score.
type Hit struct {
	Segment transcript.Segment `json:"segment"`
	Score   float64            `json:"score"`
	// Position is the segment's index in the run's segment sequence.
	Position int `json:"position"`
}

// Index answers topical queries for a single recording.
type Index struct {
	segments  []transcript.Segment
	prints    []*textutil.Fingerprint
	idf       map[string]float64
	threshold float64
}

// Option customises index construction.
type Option func(*Index)

// WithThreshold overrides the minimum relevance score. Negative values are ignored.
func WithThreshold(threshold float64) Option {
	return func(idx *Index) {
		if threshold >= 0 {
			idx.threshold = threshold
		}
	}
}

// Build indexes segments. The input slice is copied.
func Build(segments []transcript.Segment, opts ...Option) *Index {
	idx := &Index{
		segments:  append([]transcript.Segment(nil), segments...),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(idx)
	}
	corpus := textutil.NewCorpus()
	raw := make([]*textutil.Fingerprint, len(idx.segments))
	for i, seg := range idx.segments {
		raw[i] = textutil.NewFingerprint(seg.Text)
		corpus.Add(raw[i])
	}
	idx.idf = corpus.SmoothIDF()
	idx.prints = make([]*textutil.Fingerprint, len(raw))
	for i, fp := range raw {
		idx.prints[i] = fp.WithIDF(idx.idf)
	}
	return idx
}

// Len returns the number of indexed segments.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.segments)
}

// Segments returns a copy of the indexed segments in temporal order.
func (idx *Index) Segments() []transcript.Segment {
	if idx == nil {
		return nil
	}
	return append([]transcript.Segment(nil), idx.segments...)
}

// Query returns up to k segments most relevant to topic, most relevant first.
// Equal scores resolve by earlier start time. Segments scoring below the
// threshold are omitted, so an unrelated topic yields an empty result.
func (idx *Index) Query(topic string, k int) []Hit {
	if idx == nil || k <= 0 || len(idx.segments) == 0 {
		return nil
	}
	query := textutil.NewFingerprint(topic).WithIDF(idx.idf)
	if query == nil {
		return nil
	}
	hits := make([]Hit, 0, len(idx.segments))
	for i, fp := range idx.prints {
		score := query.Similarity(fp)
		if score <= 0 || score < idx.threshold {
			continue
		}
		hits = append(hits, Hit{Segment: idx.segments[i], Score: score, Position: i})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Segment.StartMS != hits[j].Segment.StartMS {
			return hits[i].Segment.StartMS < hits[j].Segment.StartMS
		}
		return hits[i].Position < hits[j].Position
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Contains reports whether some indexed segment covers [startMS, endMS].
func (idx *Index) Contains(startMS, endMS int64) bool {
	if idx == nil {
		return false
	}
	return Covered(idx.segments, startMS, endMS)
}

// Covered reports whether some segment in segments covers [startMS, endMS].
func Covered(segments []transcript.Segment, startMS, endMS int64) bool {
	for _, seg := range segments {
		if seg.Covers(startMS, endMS) {
			return true
		}
	}
	return false
}
