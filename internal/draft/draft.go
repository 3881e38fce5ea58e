// Package draft assembles generated article parts into the final deliverable.
//
// Assembly is deterministic: the same article and segments always produce the
// same draft apart from the supplied timestamp. Every citation is checked
// again against the run's segments before a draft is returned.
package draft

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"echopress/internal/generation"
	"echopress/internal/grounding"
	"echopress/internal/services"
	"echopress/internal/textutil"
	"echopress/internal/transcript"
)

// Draft is the article produced by one successful run.
type Draft struct {
	ID           string               `json:"id"`
	RunID        string               `json:"run_id"`
	Recording    string               `json:"recording"`
	Title        string               `json:"title"`
	Introduction string               `json:"introduction"`
	Sections     []generation.Section `json:"sections"`
	Conclusion   string               `json:"conclusion"`
	KeyTakeaways []string             `json:"key_takeaways"`
	// Ledger is every section citation flattened in outline order.
	Ledger   []generation.Citation `json:"ledger"`
	Metadata Metadata              `json:"metadata"`
}

// Metadata is basic provenance for a draft.
type Metadata struct {
	WordCount         int       `json:"word_count"`
	SectionCount      int       `json:"section_count"`
	CitationCount     int       `json:"citation_count"`
	SegmentCount      int       `json:"segment_count"`
	Speakers          []string  `json:"speakers,omitempty"`
	OverallConfidence float64   `json:"overall_confidence"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Input is everything Assemble needs.
type Input struct {
	RunID     string
	Recording string
	Article   generation.Article
	Segments  []transcript.Segment
	Now       time.Time
}

// runTagLen is how much of the run id a draft id carries.
const runTagLen = 8

// ID returns the draft identifier for a run over a recording reference. The
// recording's base name keeps ids readable; the run tag keeps recordings that
// share a base name, and resubmissions of one recording, from colliding.
func ID(recording, runID string) string {
	base := filepath.Base(strings.TrimSpace(recording))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	id := "draft_" + textutil.Slug(base)
	if tag := strings.ReplaceAll(textutil.Slug(runID), "_", ""); strings.TrimSpace(runID) != "" && tag != "unknown" {
		if runes := []rune(tag); len(runes) > runTagLen {
			tag = string(runes[:runTagLen])
		}
		id += "_" + tag
	}
	return id + "_v1"
}

// Assemble merges the article into a Draft. A citation that no segment covers,
// or whose confidence is outside [0,1], fails the whole draft with
// services.ErrGroundingViolation.
func Assemble(in Input) (Draft, error) {
	title := strings.TrimSpace(in.Article.Title)
	if title == "" {
		return Draft{}, services.Wrap(services.ErrInput, "finalization", "assemble", "article title is empty", nil)
	}
	sections := make([]generation.Section, 0, len(in.Article.Sections))
	var ledger []generation.Citation
	for i, section := range in.Article.Sections {
		citations := make([]generation.Citation, 0, len(section.Citations))
		for j, citation := range section.Citations {
			if err := validateCitation(in.Segments, citation); err != nil {
				op := fmt.Sprintf("section %d citation %d", i+1, j+1)
				return Draft{}, services.Wrap(services.ErrGroundingViolation, "finalization", op, err.Error(), nil)
			}
			citation.Section = section.Title
			citations = append(citations, citation)
		}
		sections = append(sections, generation.Section{
			Title:     section.Title,
			Content:   strings.TrimSpace(section.Content),
			Citations: citations,
		})
		ledger = append(ledger, citations...)
	}
	if ledger == nil {
		ledger = []generation.Citation{}
	}

	d := Draft{
		ID:           ID(in.Recording, in.RunID),
		RunID:        in.RunID,
		Recording:    in.Recording,
		Title:        title,
		Introduction: strings.TrimSpace(in.Article.Introduction),
		Sections:     sections,
		Conclusion:   strings.TrimSpace(in.Article.Conclusion),
		KeyTakeaways: append([]string(nil), in.Article.Takeaways...),
		Ledger:       ledger,
	}
	d.Metadata = Metadata{
		WordCount:         wordCount(d),
		SectionCount:      len(sections),
		CitationCount:     len(ledger),
		SegmentCount:      len(in.Segments),
		Speakers:          transcript.Speakers(in.Segments),
		OverallConfidence: transcript.OverallConfidence(in.Segments),
		GeneratedAt:       in.Now.UTC(),
	}
	return d, nil
}

func validateCitation(segments []transcript.Segment, c generation.Citation) error {
	if c.EndMS < c.StartMS {
		return fmt.Errorf("citation span %d-%d is inverted", c.StartMS, c.EndMS)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("citation confidence %v outside [0,1]", c.Confidence)
	}
	if !grounding.Covered(segments, c.StartMS, c.EndMS) {
		return fmt.Errorf("citation span %d-%d has no backing segment", c.StartMS, c.EndMS)
	}
	return nil
}

func wordCount(d Draft) int {
	total := len(strings.Fields(d.Title)) + len(strings.Fields(d.Introduction)) + len(strings.Fields(d.Conclusion))
	for _, section := range d.Sections {
		total += len(strings.Fields(section.Title)) + len(strings.Fields(section.Content))
	}
	for _, item := range d.KeyTakeaways {
		total += len(strings.Fields(item))
	}
	return total
}
