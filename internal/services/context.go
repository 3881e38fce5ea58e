package services

import "context"

type contextKey int

const (
	runIDKey contextKey = iota
	recordingKey
	stageKey
	requestIDKey
)

// withValue leaves ctx untouched for a blank value so an outer annotation is
// never masked by an empty one.
func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithRunID tags ctx with the run being processed.
func WithRunID(ctx context.Context, id string) context.Context {
	return withValue(ctx, runIDKey, id)
}

func RunIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, runIDKey) }

// WithRecording tags ctx with the recording identity the run works on.
func WithRecording(ctx context.Context, recording string) context.Context {
	return withValue(ctx, recordingKey, recording)
}

func RecordingFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, recordingKey) }

// WithStage tags ctx with the pipeline stage currently executing.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, stageKey) }

// WithRequestID tags ctx with the correlation id of an API or IPC request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return valueOf(ctx, requestIDKey) }
