// Package queueaccess gives the CLI one read path over runs whether the
// daemon is up (IPC) or down (direct SQLite reads).
package queueaccess

import (
	"context"
	"fmt"
	"strings"

	"echopress/internal/api"
	"echopress/internal/ipc"
	"echopress/internal/queue"
)

// Access reads run state regardless of IPC or direct store backing.
type Access interface {
	Get(ctx context.Context, runID string) (api.Run, error)
	List(ctx context.Context, statuses []string, limit int) ([]api.Run, error)
	Stats(ctx context.Context) (map[string]int, error)
	// Online reports whether answers come from the running daemon.
	Online() bool
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct database reads.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Get(_ context.Context, runID string) (api.Run, error) {
	resp, err := a.client.Poll(runID)
	if err != nil {
		return api.Run{}, err
	}
	return resp.Run, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string, limit int) ([]api.Run, error) {
	resp, err := a.client.List(ipc.ListRequest{Statuses: statuses, Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

func (a *ipcAccess) Stats(_ context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.Orchestrator.RunStats, nil
}

func (a *ipcAccess) Online() bool { return true }

type storeAccess struct {
	store *queue.Store
}

func (a *storeAccess) Get(ctx context.Context, runID string) (api.Run, error) {
	runID = strings.TrimSpace(runID)
	run, err := a.store.GetRun(ctx, runID)
	if err != nil {
		return api.Run{}, err
	}
	if run == nil {
		return api.Run{}, fmt.Errorf("run %s not found", runID)
	}
	return api.FromRun(run), nil
}

func (a *storeAccess) List(ctx context.Context, statuses []string, limit int) ([]api.Run, error) {
	parsed := make([]queue.Status, 0, len(statuses))
	for _, value := range statuses {
		if status, ok := queue.ParseStatus(value); ok {
			parsed = append(parsed, status)
		}
	}
	runs, err := a.store.ListRuns(ctx, limit, parsed...)
	if err != nil {
		return nil, err
	}
	return api.FromRuns(runs), nil
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out, nil
}

func (a *storeAccess) Online() bool { return false }
