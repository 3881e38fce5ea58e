package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"echopress/internal/config"
	"echopress/internal/logging"
	"echopress/internal/media/ffprobe"
	"echopress/internal/services"
	"echopress/internal/textutil"
)

const stageName = "validation"

// Audio is a resolved, locally readable recording.
type Audio struct {
	Ref        string `json:"ref"`
	Path       string `json:"path"`
	Format     string `json:"format"`
	SizeBytes  int64  `json:"size_bytes"`
	Downloaded bool   `json:"downloaded"`
	// Duration is zero when no probe is configured or the probe failed.
	Duration time.Duration `json:"duration,omitempty"`
	// Language is the container's language tag, if any.
	Language string `json:"language,omitempty"`
}

// Resolver turns recording references into Audio.
type Resolver struct {
	stagingDir string
	allowed    func(ext string) bool
	httpClient *http.Client
	probe      string
	logger     *slog.Logger
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithHTTPClient overrides the client used for remote downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithProbe inspects every resolved recording with the given ffprobe binary.
func WithProbe(binary string) Option {
	return func(r *Resolver) {
		r.probe = strings.TrimSpace(binary)
	}
}

// NewResolver builds a resolver from the staging directory and allowed formats.
func NewResolver(cfg *config.Config, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Resolver{
		stagingDir: cfg.Paths.StagingDir,
		allowed:    cfg.FormatAllowed,
		httpClient: &http.Client{Timeout: 30 * time.Minute},
		logger:     logging.NewComponentLogger(logger, "recording"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Identity returns the canonical key a reference is tracked under. Local
// paths become absolute and cleaned; URLs are returned trimmed.
func Identity(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		if u.Scheme == "file" {
			return filepath.Clean(u.Path)
		}
		return ref
	}
	if abs, err := config.ExpandPath(ref); err == nil {
		return abs
	}
	return filepath.Clean(ref)
}

// DisplayTitle derives a human title from the reference's file name.
func DisplayTitle(ref string) string {
	base := path.Base(filepath.ToSlash(strings.TrimSpace(ref)))
	if u, err := url.Parse(ref); err == nil && u.Path != "" && u.Scheme != "" {
		base = path.Base(u.Path)
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" || base == "/" {
		return "Untitled Recording"
	}
	return cases.Title(language.English, cases.NoLower).String(base)
}

// Resolve validates ref and returns a locally readable file. With a probe
// configured, files without an audio stream are rejected.
func (r *Resolver) Resolve(ctx context.Context, ref string) (Audio, error) {
	audio, err := r.resolve(ctx, ref)
	if err != nil || r.probe == "" {
		return audio, err
	}
	return r.inspect(ctx, audio)
}

// inspect treats probe failures as soft: transcription reports unreadable
// audio with a better error than ffprobe does.
func (r *Resolver) inspect(ctx context.Context, audio Audio) (Audio, error) {
	result, err := ffprobe.Inspect(ctx, r.probe, audio.Path)
	if err != nil {
		if ctx.Err() != nil {
			return Audio{}, services.Classify(stageName, "probe", ctx.Err())
		}
		logging.WarnWithContext(r.logger, "recording probe failed", "recording_probe_failed",
			logging.String("path", audio.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install ffprobe or unset ECHOPRESS_FFPROBE"),
			logging.String(logging.FieldImpact, "recording length is unknown until transcription"),
		)
		return audio, nil
	}
	if len(result.AudioStreams()) == 0 {
		return Audio{}, services.Wrap(services.ErrInput, stageName, "probe", fmt.Sprintf("%s has no audio stream", filepath.Base(audio.Path)), nil)
	}
	audio.Duration = result.Duration()
	audio.Language = result.Language()
	return audio, nil
}

func (r *Resolver) resolve(ctx context.Context, ref string) (Audio, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Audio{}, services.Wrap(services.ErrInput, stageName, "resolve", "recording reference is empty", nil)
	}
	u, err := url.Parse(ref)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return r.download(ctx, ref, u)
		case "file":
			return r.local(ref, u.Path)
		}
	}
	return r.local(ref, ref)
}

func (r *Resolver) local(ref, p string) (Audio, error) {
	expanded, err := config.ExpandPath(p)
	if err != nil {
		return Audio{}, services.Wrap(services.ErrInput, stageName, "resolve", "expand path", err)
	}
	format, err := r.checkFormat(expanded)
	if err != nil {
		return Audio{}, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return Audio{}, services.Wrap(services.ErrInput, stageName, "resolve", "recording not readable", err)
	}
	if !info.Mode().IsRegular() {
		return Audio{}, services.Wrap(services.ErrInput, stageName, "resolve", fmt.Sprintf("%s is not a regular file", expanded), nil)
	}
	if info.Size() == 0 {
		return Audio{}, services.Wrap(services.ErrInput, stageName, "resolve", fmt.Sprintf("%s is empty", expanded), nil)
	}
	return Audio{Ref: ref, Path: expanded, Format: format, SizeBytes: info.Size()}, nil
}

func (r *Resolver) download(ctx context.Context, ref string, u *url.URL) (Audio, error) {
	format, err := r.checkFormat(u.Path)
	if err != nil {
		return Audio{}, err
	}
	if strings.TrimSpace(r.stagingDir) == "" {
		return Audio{}, services.Wrap(services.ErrConfiguration, stageName, "download", "staging_dir not configured", nil)
	}
	if err := os.MkdirAll(r.stagingDir, 0o755); err != nil {
		return Audio{}, services.Wrap(services.ErrConfiguration, stageName, "download", "create staging dir", err)
	}
	name := textutil.Slug(u.Host+"_"+strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))) + "." + format
	target := filepath.Join(r.stagingDir, name)
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		r.logger.Debug("reusing staged download", logging.String("path", target))
		return Audio{Ref: ref, Path: target, Format: format, SizeBytes: info.Size(), Downloaded: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return Audio{}, services.Wrap(services.ErrInput, stageName, "download", "build request", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Audio{}, services.Classify(stageName, "download", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return Audio{}, services.Wrap(services.ErrInput, stageName, "download", "recording not found at "+ref, nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Audio{}, services.Wrap(services.ErrProviderFailure, stageName, "download", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	tmp, err := os.CreateTemp(r.stagingDir, ".download-*")
	if err != nil {
		return Audio{}, services.Wrap(services.ErrConfiguration, stageName, "download", "create temp file", err)
	}
	tmpName := tmp.Name()
	size, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return Audio{}, services.Classify(stageName, "download", err)
	}
	if size == 0 {
		_ = os.Remove(tmpName)
		return Audio{}, services.Wrap(services.ErrInput, stageName, "download", "downloaded recording is empty", nil)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return Audio{}, services.Wrap(services.ErrConfiguration, stageName, "download", "stage download", err)
	}
	r.logger.Info("recording downloaded",
		logging.String(logging.FieldEventType, "recording_downloaded"),
		logging.String("url", ref),
		logging.String("path", target),
		logging.Int64("size_bytes", size),
	)
	return Audio{Ref: ref, Path: target, Format: format, SizeBytes: size, Downloaded: true}, nil
}

func (r *Resolver) checkFormat(p string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filepath.ToSlash(p)), "."))
	if ext == "" {
		return "", services.Wrap(services.ErrInput, stageName, "resolve", "recording has no file extension", nil)
	}
	if r.allowed != nil && !r.allowed(ext) {
		return "", services.Wrap(services.ErrInput, stageName, "resolve", fmt.Sprintf("unsupported audio format %q", ext), nil)
	}
	return ext, nil
}
