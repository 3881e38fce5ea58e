package transcript

import (
	"fmt"
	"math"
	"sort"
)

// Segment is a time-coded, speaker-attributed unit of recognized speech.
type Segment struct {
	StartMS    int64   `json:"start_ms"`
	EndMS      int64   `json:"end_ms"`
	Text       string  `json:"text"`
	Speaker    string  `json:"speaker,omitempty"`
	Confidence float64 `json:"confidence"`
	Topic      string  `json:"topic,omitempty"`
}

// DurationMS returns the segment length in milliseconds.
func (s Segment) DurationMS() int64 {
	return s.EndMS - s.StartMS
}

// Covers reports whether [startMS, endMS] lies within the segment.
func (s Segment) Covers(startMS, endMS int64) bool {
	return startMS >= s.StartMS && endMS <= s.EndMS && startMS <= endMS
}

// Sort orders segments by start time, keeping recognizer order for equal starts.
func Sort(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartMS < segments[j].StartMS
	})
}

// Validate checks the ordering and range properties every segment sequence
// must hold, including that segments of one speaker never overlap.
func Validate(segments []Segment) error {
	last := make(map[string]int)
	for i, seg := range segments {
		if seg.EndMS < seg.StartMS {
			return fmt.Errorf("segment %d ends before it starts (%d < %d)", i, seg.EndMS, seg.StartMS)
		}
		if seg.Confidence < 0 || seg.Confidence > 1 {
			return fmt.Errorf("segment %d confidence %v outside [0,1]", i, seg.Confidence)
		}
		if i > 0 && seg.StartMS < segments[i-1].StartMS {
			return fmt.Errorf("segment %d starts before segment %d", i, i-1)
		}
		if prev, ok := last[seg.Speaker]; ok && seg.StartMS < segments[prev].EndMS {
			return fmt.Errorf("segment %d overlaps segment %d of speaker %q", i, prev, seg.Speaker)
		}
		last[seg.Speaker] = i
	}
	return nil
}

// OverallConfidence is the raw mean of per-segment confidence.
//
// The recognizers report differently calibrated scores (WhisperX word scores,
// remote ASR log-probabilities mapped to [0,1]); averaging them without
// normalization can over- or under-state trust, so treat the value as a hint.
func OverallConfidence(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	var sum float64
	for _, seg := range segments {
		sum += seg.Confidence
	}
	return sum / float64(len(segments))
}

// Speakers lists distinct speaker labels in order of first appearance.
func Speakers(segments []Segment) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, seg := range segments {
		if seg.Speaker == "" {
			continue
		}
		if _, ok := seen[seg.Speaker]; ok {
			continue
		}
		seen[seg.Speaker] = struct{}{}
		out = append(out, seg.Speaker)
	}
	return out
}

func secondsToMS(sec float64) int64 {
	if math.IsNaN(sec) || sec < 0 {
		return 0
	}
	return int64(math.Round(sec * 1000))
}

func clampConfidence(value *float64) float64 {
	if value == nil || math.IsNaN(*value) {
		return 0
	}
	switch {
	case *value < 0:
		return 0
	case *value > 1:
		return 1
	default:
		return *value
	}
}
