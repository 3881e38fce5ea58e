// Package staging reclaims disk space under staging_dir: downloaded
// recordings from earlier runs and WhisperX work directories left behind
// by a crashed process.
package staging

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"echopress/internal/logging"
)

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes top-level staging entries older than maxAge. Entries
// whose name is listed in keep are left alone.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, keep []string, logger *slog.Logger) CleanResult {
	cutoff := time.Now().Add(-maxAge)
	return sweep(ctx, stagingDir, logger, "stale", func(entry fs.DirEntry, info fs.FileInfo) bool {
		if slices.Contains(keep, entry.Name()) {
			return false
		}
		return info.ModTime().Before(cutoff)
	})
}

// CleanOrphaned removes every directory under workDir matching pattern. It
// must only run while no transcription is in flight.
func CleanOrphaned(ctx context.Context, workDir, pattern string, logger *slog.Logger) CleanResult {
	return sweep(ctx, workDir, logger, "orphaned", func(entry fs.DirEntry, _ fs.FileInfo) bool {
		if !entry.IsDir() {
			return false
		}
		matched, err := filepath.Match(pattern, entry.Name())
		return err == nil && matched
	})
}

func sweep(ctx context.Context, dir string, logger *slog.Logger, reason string, remove func(fs.DirEntry, fs.FileInfo) bool) CleanResult {
	result := CleanResult{}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return result
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !remove(entry, info) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove staging entry",
					logging.String("path", path),
					logging.String("reason", reason),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed staging entry",
				logging.String("path", path),
				logging.String("reason", reason),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}
	return result
}

// Usage summarizes what staging_dir currently holds.
type Usage struct {
	Entries int
	Bytes   int64
}

// MeasureUsage counts top-level entries and their total size. A missing
// directory reports zero usage.
func MeasureUsage(stagingDir string) (Usage, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return Usage{}, nil
	}
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Usage{}, nil
		}
		return Usage{}, err
	}
	usage := Usage{Entries: len(entries)}
	for _, entry := range entries {
		usage.Bytes += treeSize(filepath.Join(stagingDir, entry.Name()))
	}
	return usage, nil
}

func treeSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}
