package recording_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"echopress/internal/recording"
	"echopress/internal/services"
	"echopress/internal/testsupport"
)

func TestResolveLocalFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := testsupport.WriteRecording(t, testsupport.BaseDir(cfg), "episode.MP3")
	resolver := recording.NewResolver(cfg, nil)

	audio, err := resolver.Resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if audio.Path != path || audio.Format != "mp3" || audio.SizeBytes != testsupport.RecordingBytes || audio.Downloaded {
		t.Fatalf("unexpected audio %+v", audio)
	}

	audio, err = resolver.Resolve(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("Resolve file URL: %v", err)
	}
	if audio.Path != path {
		t.Fatalf("file URL resolved to %q", audio.Path)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	video := testsupport.WriteRecording(t, base, "clip.mkv")
	empty := filepath.Join(base, "recordings", "empty.wav")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	resolver := recording.NewResolver(cfg, nil)

	cases := map[string]string{
		"empty ref":   "  ",
		"missing":     filepath.Join(base, "missing.wav"),
		"bad format":  video,
		"no ext":      filepath.Join(base, "recordings"),
		"empty audio": empty,
	}
	for name, ref := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), ref)
			if services.Kind(err) != services.KindInput {
				t.Fatalf("expected InputError, got %v", err)
			}
		})
	}
}

func TestResolveDownloadsRemoteAudio(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path == "/missing.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	resolver := recording.NewResolver(cfg, nil, recording.WithHTTPClient(server.Client()))

	audio, err := resolver.Resolve(context.Background(), server.URL+"/shows/ep1.mp3")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !audio.Downloaded || audio.SizeBytes != 2048 {
		t.Fatalf("unexpected audio %+v", audio)
	}
	if filepath.Dir(audio.Path) != cfg.Paths.StagingDir {
		t.Fatalf("download not staged: %s", audio.Path)
	}

	if _, err := resolver.Resolve(context.Background(), server.URL+"/shows/ep1.mp3"); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected staged download to be reused, hits=%d", hits)
	}

	_, err = resolver.Resolve(context.Background(), server.URL+"/missing.mp3")
	if services.Kind(err) != services.KindInput {
		t.Fatalf("expected InputError for 404, got %v", err)
	}
}

func TestIdentityAndTitle(t *testing.T) {
	if got := recording.Identity("https://cdn.example.com/a.mp3 "); got != "https://cdn.example.com/a.mp3" {
		t.Fatalf("unexpected URL identity %q", got)
	}
	if got := recording.Identity("file:///tmp/x/../a.mp3"); got != "/tmp/a.mp3" {
		t.Fatalf("unexpected file identity %q", got)
	}
	if got := recording.DisplayTitle("/audio/the_pricing-show.ep12.mp3"); got != "The Pricing Show Ep12" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := recording.DisplayTitle("https://cdn.example.com/shows/deep_dive.mp3?x=1"); got != "Deep Dive" {
		t.Fatalf("unexpected URL title %q", got)
	}
}

func writeProbe(t *testing.T, dir, script string) string {
	t.Helper()
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write probe stub: %v", err)
	}
	return stub
}

func TestResolveProbesRecording(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	path := testsupport.WriteRecording(t, base, "episode.wav")

	withAudio := writeProbe(t, t.TempDir(), `echo '{"streams":[{"codec_type":"audio","tags":{"language":"eng"}}],"format":{"duration":"90.5"}}'`)
	audio, err := recording.NewResolver(cfg, nil, recording.WithProbe(withAudio)).Resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if audio.Duration != 90500*time.Millisecond || audio.Language != "eng" {
		t.Fatalf("probe metadata missing: %+v", audio)
	}

	silent := writeProbe(t, t.TempDir(), `echo '{"streams":[{"codec_type":"video"}],"format":{}}'`)
	_, err = recording.NewResolver(cfg, nil, recording.WithProbe(silent)).Resolve(context.Background(), path)
	if services.Kind(err) != services.KindInput || !strings.Contains(err.Error(), "no audio stream") {
		t.Fatalf("expected input error for video-only file, got %v", err)
	}

	broken := writeProbe(t, t.TempDir(), "exit 1\n")
	audio, err = recording.NewResolver(cfg, nil, recording.WithProbe(broken)).Resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("probe failure should not fail resolution: %v", err)
	}
	if audio.Duration != 0 {
		t.Fatalf("expected unknown duration, got %v", audio.Duration)
	}
}
