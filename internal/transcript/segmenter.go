package transcript

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"echopress/internal/logging"
	"echopress/internal/services"
	"echopress/internal/textutil"
)

const stageName = "transcription"

// RecognizedSegment is one span of speech as reported by a recognizer. Times are
// in seconds; Confidence is nil when the recognizer did not report one.
type RecognizedSegment struct {
	Start      float64
	End        float64
	Text       string
	Speaker    string
	Confidence *float64
}

// Recognition is the full recognizer output for one recording.
type Recognition struct {
	Language string
	Segments []RecognizedSegment
}

// SpeakerTurn is a diarization span attributed to one speaker.
type SpeakerTurn struct {
	Start   float64
	End     float64
	Speaker string
}

// Recognizer is the speech-to-text capability.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath, language string) (Recognition, error)
}

// Diarizer is the speaker diarization capability.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]SpeakerTurn, error)
}

// Segmenter produces ordered segments from a recognizer plus optional diarizer.
type Segmenter struct {
	recognizer Recognizer
	diarizer   Diarizer
	logger     *slog.Logger
}

// NewSegmenter wires the capability providers. diarizer may be nil.
func NewSegmenter(recognizer Recognizer, diarizer Diarizer, logger *slog.Logger) *Segmenter {
	return &Segmenter{
		recognizer: recognizer,
		diarizer:   diarizer,
		logger:     logging.NewComponentLogger(logger, "segmenter"),
	}
}

// Segment transcribes audioPath and returns segments sorted by start time.
// A recording that yields no speech is an input error.
func (s *Segmenter) Segment(ctx context.Context, audioPath, language string) ([]Segment, error) {
	if s == nil || s.recognizer == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "recognize", "no speech recognizer configured", nil)
	}
	if strings.TrimSpace(audioPath) == "" {
		return nil, services.Wrap(services.ErrInput, stageName, "recognize", "audio path is empty", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	recognition, err := s.recognizer.Recognize(ctx, audioPath, language)
	if err != nil {
		return nil, services.Classify(stageName, "recognize", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, services.Classify(stageName, "recognize", err)
	}

	segments := convert(recognition.Segments)
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrInput, stageName, "recognize", "recording contains no recognizable speech", nil)
	}

	if s.diarizer != nil {
		turns, derr := s.diarizer.Diarize(ctx, audioPath)
		switch {
		case derr != nil:
			logging.WarnWithContext(logger, "diarization failed; segments left without speakers", "diarization_failed",
				logging.Error(derr),
				logging.String(logging.FieldErrorHint, "check diarization provider availability"),
				logging.String(logging.FieldImpact, "draft citations will not name speakers"),
			)
			clearSpeakers(segments)
		case len(turns) == 0:
			logger.Info("diarization returned no speaker turns", logging.String(logging.FieldEventType, "diarization_empty"))
		default:
			AssignSpeakers(segments, turns)
		}
	}

	if trimmed := SeparateTracks(segments); trimmed > 0 {
		logger.Debug("trimmed overlapping segments within speaker tracks", logging.Int("trimmed", trimmed))
	}
	assignTopics(segments)

	logger.Info("transcript segmented",
		logging.String(logging.FieldEventType, "transcript_segmented"),
		logging.Int("segment_count", len(segments)),
		logging.Int("speaker_count", len(Speakers(segments))),
		logging.Float64("overall_confidence", OverallConfidence(segments)),
		logging.String("language", recognition.Language),
	)
	return segments, nil
}

func convert(raw []RecognizedSegment) []Segment {
	segments := make([]Segment, 0, len(raw))
	for _, r := range raw {
		text := strings.Join(strings.Fields(r.Text), " ")
		if text == "" {
			continue
		}
		start := secondsToMS(r.Start)
		end := secondsToMS(r.End)
		if end < start {
			end = start
		}
		segments = append(segments, Segment{
			StartMS:    start,
			EndMS:      end,
			Text:       text,
			Speaker:    strings.TrimSpace(r.Speaker),
			Confidence: clampConfidence(r.Confidence),
		})
	}
	Sort(segments)
	return segments
}

// AssignSpeakers labels each segment with the speaker whose turn overlaps it
// the most. segments must be sorted by start time; turns may arrive in any
// order. Segments without any overlapping turn keep their existing label.
func AssignSpeakers(segments []Segment, turns []SpeakerTurn) {
	if len(segments) == 0 || len(turns) == 0 {
		return
	}
	// Diarizers commonly group turns by speaker rather than by time.
	ordered := append([]SpeakerTurn(nil), turns...)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Start < ordered[b].Start
	})
	j := 0
	for i := range segments {
		seg := &segments[i]
		for j < len(ordered) && secondsToMS(ordered[j].End) <= seg.StartMS {
			j++
		}
		best := int64(0)
		bestSpeaker := ""
		for k := j; k < len(ordered); k++ {
			turnStart := secondsToMS(ordered[k].Start)
			turnEnd := secondsToMS(ordered[k].End)
			if turnStart >= seg.EndMS {
				break
			}
			overlap := min(seg.EndMS, turnEnd) - max(seg.StartMS, turnStart)
			if overlap > best {
				best = overlap
				bestSpeaker = strings.TrimSpace(ordered[k].Speaker)
			}
		}
		if bestSpeaker != "" {
			seg.Speaker = bestSpeaker
		}
	}
}

// SeparateTracks trims segments so that no two segments of the same speaker
// overlap: an earlier segment ends where the next one of its speaker starts.
// segments must be sorted by start time. It returns how many were trimmed.
func SeparateTracks(segments []Segment) int {
	last := make(map[string]int)
	trimmed := 0
	for i := range segments {
		speaker := segments[i].Speaker
		if prev, ok := last[speaker]; ok && segments[i].StartMS < segments[prev].EndMS {
			segments[prev].EndMS = max(segments[i].StartMS, segments[prev].StartMS)
			trimmed++
		}
		last[speaker] = i
	}
	return trimmed
}

func clearSpeakers(segments []Segment) {
	for i := range segments {
		segments[i].Speaker = ""
	}
}

// assignTopics tags each segment with its most distinctive term across the recording.
func assignTopics(segments []Segment) {
	corpus := textutil.NewCorpus()
	prints := make([]*textutil.Fingerprint, len(segments))
	for i, seg := range segments {
		prints[i] = textutil.NewFingerprint(seg.Text)
		corpus.Add(prints[i])
	}
	idf := corpus.SmoothIDF()
	for i := range segments {
		if prints[i] == nil {
			continue
		}
		segments[i].Topic = prints[i].WithIDF(idf).TopTerm()
	}
}
