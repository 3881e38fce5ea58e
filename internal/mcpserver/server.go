package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"echopress/internal/api"
	"echopress/internal/generation"
)

const (
	serverName       = "echopress"
	defaultListLimit = 20
)

// Backend is the slice of the daemon the tools need.
type Backend interface {
	Submit(req api.SubmitRequest) (*api.SubmitResponse, error)
	Poll(runID string) (*api.RunResponse, error)
	Cancel(runID string) (*api.CancelResponse, error)
	List(statuses []string, limit int) (*api.RunListResponse, error)
	Draft(runID string, markdown bool) (*api.DraftResponse, error)
}

// Tools holds the tool handlers bound to a backend.
type Tools struct {
	backend Backend
}

// New builds an MCP server with every EchoPress tool registered.
func New(backend Backend, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	t := &Tools{backend: backend}
	t.Register(s)
	return s
}

// ServeStdio serves the tools over stdin/stdout until the client disconnects.
func ServeStdio(backend Backend, version string) error {
	return server.ServeStdio(New(backend, version))
}

// Register adds the tools to s.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("submit_conversion",
		mcp.WithDescription("Start converting an audio recording into a drafted article. Resubmitting the same recording returns the existing run."),
		mcp.WithString("recording_ref", mcp.Required(), mcp.Description("Path of the recording, relative to the staging directory or absolute")),
		mcp.WithString("title", mcp.Description("Article title")),
		mcp.WithString("language", mcp.Description("Spoken language code, for example en")),
		mcp.WithString("profile", mcp.Description("Name of a saved style profile")),
		mcp.WithString("outline", mcp.Description(`Optional outline as JSON: {"title":"...","sections":[{"title":"...","description":"..."}]}`)),
		mcp.WithBoolean("force", mcp.Description("Start a new run even if the recording already completed")),
	), t.SubmitConversion)

	s.AddTool(mcp.NewTool("poll_run",
		mcp.WithDescription("Return the status, stage and progress of a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identifier returned by submit_conversion")),
		mcp.WithReadOnlyHintAnnotation(true),
	), t.PollRun)

	s.AddTool(mcp.NewTool("cancel_run",
		mcp.WithDescription("Cancel a run. The run stops after its current stage finishes."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identifier")),
	), t.CancelRun)

	s.AddTool(mcp.NewTool("get_draft",
		mcp.WithDescription("Fetch the finished article draft of a completed run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identifier")),
		mcp.WithString("format", mcp.Description("markdown (default) or json")),
		mcp.WithReadOnlyHintAnnotation(true),
	), t.GetDraft)

	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent runs, newest first."),
		mcp.WithString("status", mcp.Description("Comma-separated statuses to include, for example completed,failed")),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 20)")),
		mcp.WithReadOnlyHintAnnotation(true),
	), t.ListRuns)
}

// SubmitConversion handles submit_conversion.
func (t *Tools) SubmitConversion(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("recording_ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := api.SubmitRequest{
		RecordingRef: ref,
		Title:        request.GetString("title", ""),
		Language:     request.GetString("language", ""),
		ProfileName:  request.GetString("profile", ""),
		Force:        request.GetBool("force", false),
	}
	if raw := strings.TrimSpace(request.GetString("outline", "")); raw != "" {
		var outline generation.Outline
		if err := json.Unmarshal([]byte(raw), &outline); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("outline is not valid JSON: %v", err)), nil
		}
		req.Outline = &outline
	}
	resp, err := t.backend.Submit(req)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("submit failed", err), nil
	}
	return jsonResult(resp)
}

// PollRun handles poll_run.
func (t *Tools) PollRun(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := t.backend.Poll(runID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("poll failed", err), nil
	}
	run := resp.Run
	// The per-run log can be long; agents follow status and progress.
	run.Log = nil
	return jsonResult(run)
}

// CancelRun handles cancel_run.
func (t *Tools) CancelRun(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	resp, err := t.backend.Cancel(runID)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("cancel failed", err), nil
	}
	return jsonResult(resp)
}

// GetDraft handles get_draft.
func (t *Tools) GetDraft(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := strings.ToLower(strings.TrimSpace(request.GetString("format", "markdown")))
	switch format {
	case "", "markdown", "md":
		resp, err := t.backend.Draft(runID, true)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("draft unavailable", err), nil
		}
		return mcp.NewToolResultText(resp.Markdown), nil
	case "json":
		resp, err := t.backend.Draft(runID, false)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("draft unavailable", err), nil
		}
		return jsonResult(resp.Draft)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported format %q (use markdown or json)", format)), nil
	}
}

// ListRuns handles list_runs.
func (t *Tools) ListRuns(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var statuses []string
	for _, part := range strings.Split(request.GetString("status", ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			statuses = append(statuses, part)
		}
	}
	limit := request.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	resp, err := t.backend.List(statuses, limit)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("list failed", err), nil
	}
	for i := range resp.Runs {
		resp.Runs[i].Log = nil
	}
	return jsonResult(resp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
