package generation

import (
	"reflect"
	"testing"
)

func TestBannedTermsIn(t *testing.T) {
	style := &Style{BannedTerms: []string{"synergy", "game changer", "Café", "  ", "SYNERGY"}}
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"case insensitive", "Real SYNERGY here", []string{"synergy"}},
		{"whole word only", "synergyless growth", nil},
		{"multi word", "a true game changer.", []string{"game changer"}},
		{"decomposed accent", "meet at the cafe\u0301 later", []string{"Café"}},
		{"several", "Synergy is a game changer", []string{"game changer", "synergy"}},
		{"clean", "nothing to see", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := style.BannedTermsIn(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("BannedTermsIn(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestNilStyle(t *testing.T) {
	var style *Style
	if !style.IsZero() {
		t.Fatal("nil style should be zero")
	}
	if got := style.BannedTermsIn("anything"); got != nil {
		t.Fatalf("expected no matches, got %v", got)
	}
	if style.voiceLine() != "" {
		t.Fatal("nil style should have no voice line")
	}
}

func TestStyleMerge(t *testing.T) {
	base := &Style{Tone: "calm", BannedTerms: []string{"hype"}}
	merged := base.Merge([]string{"Hype", "disrupt"})
	if merged.Tone != "calm" {
		t.Fatalf("tone lost: %+v", merged)
	}
	if !reflect.DeepEqual(merged.BannedTerms, []string{"hype", "disrupt"}) {
		t.Fatalf("unexpected merged terms %v", merged.BannedTerms)
	}
	if len(base.BannedTerms) != 1 {
		t.Fatal("merge mutated the receiver")
	}
}
