package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"echopress/internal/draft"
	"echopress/internal/transcript"
)

// SaveSegments stores the transcription checkpoint for a recording and
// language, replacing any earlier one.
func (s *Store) SaveSegments(ctx context.Context, recording, language string, segments []transcript.Segment) error {
	payload, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	if _, err := s.exec(ctx,
		`INSERT INTO segment_checkpoints (recording, language, segment_count, segments_json, created_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(recording, language) DO UPDATE SET
            segment_count = excluded.segment_count,
            segments_json = excluded.segments_json,
            created_at = excluded.created_at`,
		recording, language, len(segments), string(payload), formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("save segments: %w", err)
	}
	return nil
}

// LoadSegments returns the checkpointed segments for a recording and
// language. The boolean is false when no checkpoint exists.
func (s *Store) LoadSegments(ctx context.Context, recording, language string) ([]transcript.Segment, bool, error) {
	ctx = orBackground(ctx)
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT segments_json FROM segment_checkpoints WHERE recording = ? AND language = ?`,
		recording, language,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load segments: %w", err)
	}
	var segments []transcript.Segment
	if err := json.Unmarshal([]byte(payload), &segments); err != nil {
		return nil, false, fmt.Errorf("decode segments: %w", err)
	}
	return segments, true, nil
}

// SaveDraft stores a finished draft with its rendered markdown.
func (s *Store) SaveDraft(ctx context.Context, d draft.Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if _, err := s.exec(ctx,
		`INSERT INTO drafts (run_id, draft_id, recording, draft_json, markdown, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id) DO UPDATE SET
            draft_id = excluded.draft_id,
            draft_json = excluded.draft_json,
            markdown = excluded.markdown`,
		d.RunID, d.ID, d.Recording, string(payload), draft.RenderMarkdown(d), formatTime(d.Metadata.GeneratedAt),
	); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// GetDraft loads the draft produced by runID. A missing draft returns nil, nil.
func (s *Store) GetDraft(ctx context.Context, runID string) (*draft.Draft, error) {
	ctx = orBackground(ctx)
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT draft_json FROM drafts WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	var d draft.Draft
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &d, nil
}

// DeleteDraft removes the draft stored for runID. Deleting a missing draft is
// not an error.
func (s *Store) DeleteDraft(ctx context.Context, runID string) error {
	if _, err := s.exec(ctx, `DELETE FROM drafts WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
