package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateRun inserts a new run together with any log entries it already carries.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return errors.New("create run: id required")
	}
	ctx = orBackground(ctx)
	return whileBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin create run: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.Recording,
			run.RecordingRef,
			nullableString(run.Title),
			string(run.Status),
			nullableString(run.Stage),
			run.Progress,
			nullableString(run.ErrorKind),
			nullableString(run.ErrorMessage),
			nullableString(run.RequestJSON),
			nullableString(run.DraftID),
			formatTime(run.CreatedAt),
			formatTime(run.UpdatedAt),
			nullableTime(run.CompletedAt),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, entry := range run.Log {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_logs (run_id, ts, level, message) VALUES (?, ?, ?, ?)`,
				run.ID, formatTime(entry.Timestamp), entry.Level, entry.Message,
			); err != nil {
				return fmt.Errorf("insert run log: %w", err)
			}
		}
		return tx.Commit()
	})
}

// SaveRun persists the mutable run columns. Log entries are written separately
// through AppendLog.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("save run: nil run")
	}
	res, err := s.exec(ctx,
		`UPDATE runs SET
            title = ?, status = ?, stage = ?, progress = ?, error_kind = ?, error_message = ?,
            request_json = ?, draft_id = ?, updated_at = ?, completed_at = ?
        WHERE id = ?`,
		nullableString(run.Title),
		string(run.Status),
		nullableString(run.Stage),
		run.Progress,
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		nullableString(run.RequestJSON),
		nullableString(run.DraftID),
		formatTime(run.UpdatedAt),
		nullableTime(run.CompletedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: not found", run.ID)
	}
	return nil
}

// AppendLog adds one entry to a run's log trail.
func (s *Store) AppendLog(ctx context.Context, runID string, entry LogEntry) error {
	if _, err := s.exec(ctx,
		`INSERT INTO run_logs (run_id, ts, level, message) VALUES (?, ?, ?, ?)`,
		runID, formatTime(entry.Timestamp), entry.Level, entry.Message,
	); err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}

// GetRun fetches a run and its log trail. A missing run returns nil, nil.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx = orBackground(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	logs, err := s.runLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Log = logs
	return run, nil
}

// FindActiveByRecording returns the newest run for recording that has not
// failed, so a resubmission can reuse it. Returns nil, nil when none exists.
func (s *Store) FindActiveByRecording(ctx context.Context, recording string) (*Run, error) {
	ctx = orBackground(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE recording = ? AND status != ? ORDER BY created_at DESC LIMIT 1`,
		recording, string(StatusFailed),
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find run by recording: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status. Logs are
// not loaded. A limit <= 0 returns every match.
func (s *Store) ListRuns(ctx context.Context, limit int, statuses ...Status) ([]*Run, error) {
	ctx = orBackground(ctx)
	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) runLogs(ctx context.Context, runID string) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, level, message FROM run_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run logs: %w", err)
	}
	defer rows.Close()

	logs := []LogEntry{}
	for rows.Next() {
		var (
			tsRaw string
			entry LogEntry
		)
		if err := rows.Scan(&tsRaw, &entry.Level, &entry.Message); err != nil {
			return nil, fmt.Errorf("scan run log: %w", err)
		}
		if ts, err := parseTimeString(tsRaw); err == nil {
			entry.Timestamp = ts
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
