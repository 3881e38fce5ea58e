// Package logstream prints daemon logs for the CLI, preferring the HTTP
// stream and falling back to tailing the log file over IPC.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"echopress/internal/apiclient"
	"echopress/internal/ipc"
	"echopress/internal/logging"
)

// ErrFiltersRequireAPI is returned when a component filter is requested but
// only the file fallback is reachable.
var ErrFiltersRequireAPI = errors.New("component filter requires API access")

// TailClient captures the IPC log tail contract used for fallback streaming.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error)
}

// Filters narrows the stream.
type Filters struct {
	Component string
	RunID     string
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
}

const pageSize = 200

// Stream emits events from the API when available, falling back to IPC
// tailing. It reports whether anything was emitted.
func Stream(
	ctx context.Context,
	client *apiclient.Client,
	fallback TailClient,
	opts Options,
	onEvent func(logging.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, client, opts, onEvent)
	if err == nil || !apiclient.IsUnavailable(err) {
		return printed, err
	}
	if strings.TrimSpace(opts.Filters.Component) != "" {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, apiclient.ErrAPIUnavailable)
	}
	if fallback == nil {
		return false, apiclient.ErrAPIUnavailable
	}
	return streamFile(ctx, fallback, opts, onLine)
}

func streamAPI(ctx context.Context, client *apiclient.Client, opts Options, onEvent func(logging.LogEvent)) (bool, error) {
	query := apiclient.LogQuery{
		Limit:     opts.Lines,
		Tail:      true,
		Component: opts.Filters.Component,
		RunID:     opts.Filters.RunID,
	}
	if query.Limit <= 0 {
		query.Limit = pageSize
	}

	printed := false
	for {
		resp, err := client.Logs(ctx, query)
		if err != nil {
			if printed && ctx.Err() != nil {
				return printed, nil
			}
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = pageSize
		query.Tail = false
		query.Follow = true
	}
}

func streamFile(ctx context.Context, client TailClient, opts Options, onLine func(string)) (bool, error) {
	offset := int64(-1)
	limit := max(opts.Lines, 0)
	if limit == 0 {
		offset = 0
	}

	printed := false
	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     opts.Follow,
			WaitMillis: 1000,
			RunID:      opts.Filters.RunID,
		})
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return printed, errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}
