package textutil

import (
	"math"
	"testing"
)

func TestSimilarityNil(t *testing.T) {
	tests := []struct {
		name string
		a    *Fingerprint
		b    *Fingerprint
	}{
		{"both nil", nil, nil},
		{"a nil", nil, NewFingerprint("pricing strategy")},
		{"b nil", NewFingerprint("pricing strategy"), nil},
		{"zero norm", &Fingerprint{tokens: map[string]float64{}}, NewFingerprint("pricing strategy")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Similarity(tt.b); got != 0 {
				t.Errorf("Similarity() = %v, want 0", got)
			}
		})
	}
}

func TestSimilarityIdentical(t *testing.T) {
	text := "Founders should talk to customers before writing code"
	got := NewFingerprint(text).Similarity(NewFingerprint(text))
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Similarity(identical) = %v, want 1.0", got)
	}
}

func TestSimilarityDisjointAndPartial(t *testing.T) {
	a := NewFingerprint("pricing strategy for startups")
	b := NewFingerprint("hiring engineers remotely")
	if got := a.Similarity(b); got != 0 {
		t.Errorf("disjoint similarity = %v, want 0", got)
	}
	c := NewFingerprint("pricing experiments at startups")
	got := a.Similarity(c)
	if got <= 0 || got >= 1 {
		t.Errorf("partial similarity = %v, want between 0 and 1", got)
	}
	if a.Similarity(c) != c.Similarity(a) {
		t.Error("Similarity not symmetric")
	}
}

func TestNewFingerprintNormCalculation(t *testing.T) {
	// "pricing pricing churn" -> pricing:2, churn:1, norm sqrt(5)
	fp := NewFingerprint("pricing pricing churn")
	if fp == nil {
		t.Fatal("expected fingerprint")
	}
	if math.Abs(fp.norm-math.Sqrt(5)) > 1e-4 {
		t.Errorf("norm = %v, want %v", fp.norm, math.Sqrt(5))
	}
	if fp.TopTerm() != "pricing" {
		t.Errorf("TopTerm() = %q, want pricing", fp.TopTerm())
	}
}

func TestNewFingerprintOnlyFiller(t *testing.T) {
	if fp := NewFingerprint("yeah you know it's like, right?"); fp != nil {
		t.Errorf("expected nil fingerprint for filler, got %+v", fp)
	}
	if fp := NewFingerprint(""); fp != nil {
		t.Error("expected nil for empty text")
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple words", "Customer Churn", []string{"customer", "churn"}},
		{"filters short and stop words", "a to the quick fox", []string{"quick", "fox"}},
		{"punctuation", "Growth, retention! Pricing?", []string{"growth", "retention", "pricing"}},
		{"numbers", "q4 2024 revenue", []string{"2024", "revenue"}},
		{"unicode letters", "Café économie", []string{"café", "économie"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSmoothIDFKeepsSharedTermsPositive(t *testing.T) {
	corpus := NewCorpus()
	corpus.Add(NewFingerprint("pricing strategy"))
	corpus.Add(NewFingerprint("pricing churn"))

	raw := corpus.IDF()
	smooth := corpus.SmoothIDF()
	if raw["pricing"] != 0 {
		t.Fatalf("expected raw IDF of shared term to be 0, got %v", raw["pricing"])
	}
	if smooth["pricing"] <= 0 {
		t.Fatalf("expected smoothed IDF of shared term to be positive, got %v", smooth["pricing"])
	}
	if smooth["churn"] <= smooth["pricing"] {
		t.Fatalf("expected rarer term to weigh more: churn=%v pricing=%v", smooth["churn"], smooth["pricing"])
	}
	if corpus.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", corpus.Len())
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Episode 12: Growth!": "episode_12_growth",
		"   ":                  "unknown",
		"--":                   "unknown",
		"/tmp/show.mp3":        "tmp_show_mp3",
		"Café Économie":        "café_économie",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
