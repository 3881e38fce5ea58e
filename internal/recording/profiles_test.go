package recording_test

import (
	"os"
	"path/filepath"
	"testing"

	"echopress/internal/recording"
	"echopress/internal/services"
	"echopress/internal/testsupport"
)

const warmProfile = `name: Warm
tone: warm and curious
style_guide: short paragraphs
banned_terms:
  - synergy
  - game changer
outline:
  title: Pricing Lessons
  sections:
    - title: Anchors
      description: how anchors shape price perception
`

func TestProfileStoreLoad(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProfile("warm", warmProfile))
	store := recording.NewProfileStore(cfg.Paths.ProfilesDir)

	profile, err := store.Load("warm")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if profile.Name != "Warm" || profile.Tone != "warm and curious" || profile.StyleGuide != "short paragraphs" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if len(profile.BannedTerms) != 2 {
		t.Fatalf("unexpected banned terms %v", profile.BannedTerms)
	}
	if profile.Outline == nil || len(profile.Outline.Sections) != 1 {
		t.Fatalf("outline not loaded: %+v", profile.Outline)
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "warm" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestProfileStoreErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProfile("broken", "tone: ok\nvoice: unknown-key\n"))
	store := recording.NewProfileStore(cfg.Paths.ProfilesDir)

	for _, name := range []string{"missing", "../etc/passwd", "", "broken"} {
		if _, err := store.Load(name); services.Kind(err) != services.KindInput {
			t.Fatalf("Load(%q): expected InputError, got %v", name, err)
		}
	}
}

func TestLoadOutline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "outline.json")
	body := `{"title":"Given","sections":[{"title":"One","description":"first"}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write outline: %v", err)
	}
	outline, err := recording.LoadOutline(path)
	if err != nil {
		t.Fatalf("LoadOutline: %v", err)
	}
	if outline.Title != "Given" || outline.Sections[0].Description != "first" {
		t.Fatalf("unexpected outline %+v", outline)
	}

	if err := os.WriteFile(path, []byte("title: empty\n"), 0o644); err != nil {
		t.Fatalf("write outline: %v", err)
	}
	if _, err := recording.LoadOutline(path); services.Kind(err) != services.KindInput {
		t.Fatalf("expected InputError for outline without sections, got %v", err)
	}
}
