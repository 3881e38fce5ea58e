package mcpserver

import (
	"echopress/internal/api"
	"echopress/internal/ipc"
)

// IPCBackend adapts the daemon IPC client to Backend.
type IPCBackend struct {
	Client *ipc.Client
}

func (b IPCBackend) Submit(req api.SubmitRequest) (*api.SubmitResponse, error) {
	return b.Client.Submit(req)
}

func (b IPCBackend) Poll(runID string) (*api.RunResponse, error) {
	return b.Client.Poll(runID)
}

func (b IPCBackend) Cancel(runID string) (*api.CancelResponse, error) {
	return b.Client.Cancel(runID)
}

func (b IPCBackend) List(statuses []string, limit int) (*api.RunListResponse, error) {
	return b.Client.List(ipc.ListRequest{Statuses: statuses, Limit: limit})
}

func (b IPCBackend) Draft(runID string, markdown bool) (*api.DraftResponse, error) {
	return b.Client.Draft(runID, markdown)
}
