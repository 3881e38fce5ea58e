package logstream_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"echopress/internal/apiclient"
	"echopress/internal/ipc"
	"echopress/internal/logging"
	"echopress/internal/logstream"
)

type fakeTail struct {
	requests []ipc.LogTailRequest
	lines    []string
}

func (f *fakeTail) LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error) {
	f.requests = append(f.requests, req)
	return &ipc.LogTailResponse{Lines: f.lines, Offset: 42}, nil
}

func TestStreamUsesAPIWhenReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("tail") != "1" {
			t.Errorf("expected tail query, got %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"events":[{"seq":1,"msg":"run submitted"}],"next":1}`)
	}))
	defer srv.Close()

	client, _ := apiclient.New(srv.URL, "")
	fallback := &fakeTail{}
	var got []string
	printed, err := logstream.Stream(context.Background(), client, fallback, logstream.Options{Lines: 10},
		func(evt logging.LogEvent) { got = append(got, evt.Message) }, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !printed || len(got) != 1 || got[0] != "run submitted" {
		t.Fatalf("unexpected events: %v", got)
	}
	if len(fallback.requests) != 0 {
		t.Fatal("fallback should not be used when the API answers")
	}
}

func TestStreamFallsBackToFileTail(t *testing.T) {
	fallback := &fakeTail{lines: []string{"a", "b"}}
	var got []string
	printed, err := logstream.Stream(context.Background(), nil, fallback,
		logstream.Options{Lines: 5, Filters: logstream.Filters{RunID: "r1"}},
		nil, func(line string) { got = append(got, line) })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !printed || len(got) != 2 {
		t.Fatalf("unexpected lines: %v", got)
	}
	req := fallback.requests[0]
	if req.Offset != -1 || req.Limit != 5 || req.RunID != "r1" {
		t.Fatalf("unexpected tail request: %+v", req)
	}
}

func TestComponentFilterNeedsAPI(t *testing.T) {
	_, err := logstream.Stream(context.Background(), nil, &fakeTail{},
		logstream.Options{Filters: logstream.Filters{Component: "orchestrator"}}, nil, nil)
	if !errors.Is(err, logstream.ErrFiltersRequireAPI) {
		t.Fatalf("expected ErrFiltersRequireAPI, got %v", err)
	}
}
