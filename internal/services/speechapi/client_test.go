package speechapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.wav")
	if err := os.WriteFile(path, []byte("RIFF....WAVE"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestRecognizeUploadsAudio(t *testing.T) {
	var gotLanguage, gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFile = header.Filename
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"language": "en",
			"segments": []map[string]any{
				{"start": 0, "end": 2.5, "text": "hello", "confidence": 0.7},
				{"start": 2.5, "end": 4, "text": "world", "speaker": "S1"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{ASRURL: server.URL + "/"})
	got, err := client.Recognize(context.Background(), writeAudio(t), "English")
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if gotLanguage != "en" || gotFile != "talk.wav" {
		t.Fatalf("unexpected upload: language=%q file=%q", gotLanguage, gotFile)
	}
	if len(got.Segments) != 2 || got.Segments[1].Speaker != "S1" {
		t.Fatalf("unexpected segments: %+v", got.Segments)
	}
	if c := got.Segments[0].Confidence; c == nil || *c != 0.7 {
		t.Fatalf("confidence not carried: %v", c)
	}
	if got.Segments[1].Confidence != nil {
		t.Fatal("missing confidence should stay nil")
	}
}

func TestRecognizeReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{ASRURL: server.URL})
	_, err := client.Recognize(context.Background(), writeAudio(t), "")
	if err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected upstream message in error, got %v", err)
	}
}

func TestDiarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/diarize" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"segments":[{"start":0,"end":3,"speaker":"A"},{"start":3,"end":6,"speaker":"B"}],"num_speakers":2}`))
	}))
	defer server.Close()

	client := NewClient(Config{ASRURL: server.URL, DiarizationURL: server.URL})
	if !client.HasDiarizer() {
		t.Fatal("expected diarizer to be configured")
	}
	turns, err := client.Diarize(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}
	if len(turns) != 2 || turns[1].Speaker != "B" || turns[1].Start != 3 {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestMissingEndpoints(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Recognize(context.Background(), "x.wav", ""); err == nil {
		t.Fatal("expected error without asr_url")
	}
	if client.HasDiarizer() {
		t.Fatal("diarizer should be absent")
	}
}
