package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"echopress/internal/logs"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "echopress.log")
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailLimit(t *testing.T) {
	path := writeLog(t,
		`{"msg":"daemon started"}`,
		`{"msg":"transcription started","run_id":"aaa"}`,
		`{"msg":"section generated","run_id":"aaa"}`,
	)
	cases := []struct {
		limit int
		want  int
	}{
		{limit: 2, want: 2},
		{limit: 10, want: 3},
	}
	for _, tc := range cases {
		result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: tc.limit})
		if err != nil {
			t.Fatalf("limit %d: %v", tc.limit, err)
		}
		if len(result.Lines) != tc.want {
			t.Fatalf("limit %d: got %#v", tc.limit, result.Lines)
		}
		if last := result.Lines[len(result.Lines)-1]; last != `{"msg":"section generated","run_id":"aaa"}` {
			t.Fatalf("limit %d: newest line should come last, got %q", tc.limit, last)
		}
		info, _ := os.Stat(path)
		if result.Offset != info.Size() {
			t.Fatalf("limit %d: offset %d, want end of file %d", tc.limit, result.Offset, info.Size())
		}
	}
}

func TestTailFollowReturnsAppendedRunLines(t *testing.T) {
	path := writeLog(t, `{"msg":"run submitted","run_id":"aaa"}`)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	first, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	type outcome struct {
		result logs.TailResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: first.Offset, Follow: true, Wait: 5 * time.Second, RunID: "aaa"})
		done <- outcome{res, err}
	}()

	time.Sleep(200 * time.Millisecond)
	appendLog(t, path, `{"msg":"run submitted","run_id":"bbb"}`)
	appendLog(t, path, `{"msg":"draft saved","run_id":"aaa"}`)

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("follow tail: %v", got.err)
		}
		if len(got.result.Lines) != 1 || got.result.Lines[0] != `{"msg":"draft saved","run_id":"aaa"}` {
			t.Fatalf("unexpected follow lines: %#v", got.result.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestTailFiltersByRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echopress.log")
	content := `{"msg":"run submitted","run_id":"aaa"}
{"msg":"run submitted","run_id":"bbb"}
{"msg":"stage completed","run_id":"aaa"}
{"msg":"daemon started"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10, RunID: "aaa"})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("expected 2 lines for run aaa, got %#v", result.Lines)
	}

	result, err = logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0, RunID: "bbb"})
	if err != nil {
		t.Fatalf("tail from start: %v", err)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("expected 1 line for run bbb, got %#v", result.Lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if result.Offset != 0 || len(result.Lines) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
