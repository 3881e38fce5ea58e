package services_test

import (
	"context"
	"testing"

	"echopress/internal/services"
)

func TestContextCarriesRunAnnotations(t *testing.T) {
	ctx := services.WithRequestID(context.Background(), "req-123")
	ctx = services.WithRunID(ctx, "run-42")
	ctx = services.WithRecording(ctx, "/audio/ep1.mp3")
	ctx = services.WithStage(ctx, "transcription")

	lookups := map[string]func(context.Context) (string, bool){
		"run-42":         services.RunIDFromContext,
		"/audio/ep1.mp3": services.RecordingFromContext,
		"transcription":  services.StageFromContext,
		"req-123":        services.RequestIDFromContext,
	}
	for want, lookup := range lookups {
		if got, ok := lookup(ctx); !ok || got != want {
			t.Fatalf("expected %q, got %q (%v)", want, got, ok)
		}
	}
}

func TestBlankAnnotationKeepsOuterValue(t *testing.T) {
	ctx := services.WithStage(context.Background(), "generation")
	ctx = services.WithStage(ctx, "")
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "generation" {
		t.Fatalf("blank stage should not mask generation, got %q (%v)", stage, ok)
	}
	if _, ok := services.RunIDFromContext(context.Background()); ok {
		t.Fatal("empty context should carry no run id")
	}
}
