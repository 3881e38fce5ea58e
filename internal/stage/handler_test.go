package stage

import "testing"

func TestAssessReady(t *testing.T) {
	h := Assess("transcription", Requires(true, "no segmenter configured"))
	if !h.Ready || h.Name != "transcription" || h.Detail != "" {
		t.Fatalf("unexpected ready record: %+v", h)
	}
	if h := Assess("finalization"); !h.Ready {
		t.Fatalf("stage without needs should be ready: %+v", h)
	}
}

func TestAssessJoinsUnmetNeeds(t *testing.T) {
	h := Assess("generation",
		Requires(false, "no generator configured"),
		Requires(true, "unused"),
		Requires(false, "llm api_key not configured"),
	)
	if h.Ready {
		t.Fatal("expected unready stage")
	}
	if h.Detail != "no generator configured; llm api_key not configured" {
		t.Fatalf("unexpected detail %q", h.Detail)
	}
}

func TestUnhealthy(t *testing.T) {
	h := Unhealthy("validation", "handler missing")
	if h.Ready || h.Name != "validation" || h.Detail != "handler missing" {
		t.Fatalf("unexpected record: %+v", h)
	}
}
