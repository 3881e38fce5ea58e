// Package apiclient talks to the daemon's HTTP API: run snapshots, the log
// stream and the server-sent run event feed.
package apiclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"echopress/internal/api"
)

// ErrAPIUnavailable is returned when no API bind is configured.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// Client is a small HTTP client for the daemon API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// LogQuery selects a page of the daemon log stream.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	RunID     string
}

// New returns a client for bind, or nil when bind is empty.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout: follow and event streams block until the caller cancels.
		http: &http.Client{},
	}, nil
}

func (c *Client) get(ctx context.Context, path string, values url.Values, accept string) (*http.Response, error) {
	if c == nil {
		return nil, ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
		if body.Error != "" {
			return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, body.Error)
		}
		return nil, fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return resp, nil
}

// Run fetches a run snapshot.
func (c *Client) Run(ctx context.Context, runID string) (api.Run, error) {
	resp, err := c.get(ctx, "/api/runs/"+url.PathEscape(runID), nil, "application/json")
	if err != nil {
		return api.Run{}, err
	}
	defer resp.Body.Close()
	var payload api.RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.Run{}, err
	}
	return payload.Run, nil
}

// Logs fetches a page of log events.
func (c *Client) Logs(ctx context.Context, q LogQuery) (api.LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if strings.TrimSpace(q.Component) != "" {
		values.Set("component", q.Component)
	}
	if strings.TrimSpace(q.RunID) != "" {
		values.Set("run_id", q.RunID)
	}
	resp, err := c.get(ctx, "/api/logs", values, "application/json")
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	defer resp.Body.Close()
	var payload api.LogStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.LogStreamResponse{}, err
	}
	return payload, nil
}

// StreamItem is one frame of a run's event stream. The first frame carries
// Snapshot; later frames carry Event.
type StreamItem struct {
	Snapshot *api.Run
	Event    *api.Event
}

// Events opens the run's server-sent event stream and calls fn for every
// frame until the stream ends, fn returns an error, or ctx is done.
func (c *Client) Events(ctx context.Context, runID string, fn func(StreamItem) error) error {
	resp, err := c.get(ctx, "/api/runs/"+url.PathEscape(runID)+"/events", nil, "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var name, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data != "" {
				item, err := decodeFrame(name, data)
				if err != nil {
					return err
				}
				if err := fn(item); err != nil {
					return err
				}
			}
			name, data = "", ""
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func decodeFrame(name, data string) (StreamItem, error) {
	if name == "snapshot" {
		var run api.Run
		if err := json.Unmarshal([]byte(data), &run); err != nil {
			return StreamItem{}, fmt.Errorf("decode snapshot: %w", err)
		}
		return StreamItem{Snapshot: &run}, nil
	}
	var evt api.Event
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return StreamItem{}, fmt.Errorf("decode %s event: %w", name, err)
	}
	return StreamItem{Event: &evt}, nil
}

// IsUnavailable reports whether err means the API could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
