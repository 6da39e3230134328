package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/V4T54L/safewatch/internal/domain"
)

func fixedBuilder(now time.Time) *RecordBuilder {
	return NewRecordBuilder("test-model",
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { return "analysis-1" }),
	)
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func TestRecordBuilder_Build(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	started := now.Add(-1500 * time.Millisecond)

	t.Run("Scores Default And Round", func(t *testing.T) {
		verdict := &domain.Assessment{
			RiskScores: domain.RiskScores{Grooming: 0.456, CSAM: 0.999},
		}
		rec := fixedBuilder(now).Build(domain.RawScrapedPost{PostID: "p1"}, verdict, "{}", started)

		want := domain.Scores{Grooming: 0.46, Trafficking: 0, CSAM: 1, Harassment: 0}
		if rec.RiskScores != want {
			t.Errorf("scores: got %+v want %+v", rec.RiskScores, want)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		rec := fixedBuilder(now).Build(domain.RawScrapedPost{}, &domain.Assessment{}, "{}", started)

		if rec.Post.ID != UnknownPostID {
			t.Errorf("post id: got %q", rec.Post.ID)
		}
		if rec.Post.Permalink != "https://www.facebook.com/unknown" {
			t.Errorf("permalink: got %q", rec.Post.Permalink)
		}
		if rec.Post.ScrapedAt != "2024-03-01T10:30:00.000Z" || rec.Post.PublishedAt != rec.Post.ScrapedAt {
			t.Errorf("timestamps: got %q / %q", rec.Post.ScrapedAt, rec.Post.PublishedAt)
		}
		if rec.RiskLevel != domain.RiskLevelLow {
			t.Errorf("risk level: got %q", rec.RiskLevel)
		}
		if rec.Explanation != DefaultExplanation {
			t.Errorf("explanation: got %q", rec.Explanation)
		}
		if rec.RecommendedAction != domain.ActionNoAction {
			t.Errorf("action: got %q", rec.RecommendedAction)
		}
		if rec.LanguageDetected != UnknownLanguage {
			t.Errorf("language: got %q", rec.LanguageDetected)
		}
		if rec.Actors.Poster.Name != UnknownPoster {
			t.Errorf("poster: got %q", rec.Actors.Poster.Name)
		}
		if rec.FlagReason == nil || rec.KeywordsMatched == nil || rec.MatchedHashes == nil || rec.Actors.Sharers == nil {
			t.Error("expected empty, non-nil lists")
		}
		if rec.Source.Platform != PlatformFacebook || rec.Source.CollectionMethod != CollectionBrowserUse {
			t.Errorf("source: got %+v", rec.Source)
		}
		if rec.Source.ScrapeSessionID != "sess-2024-03-01T10:00Z" {
			t.Errorf("session id should fall back to the clock, got %q", rec.Source.ScrapeSessionID)
		}
		if rec.AIVersion.Model != "test-model" || rec.ModelOutputs.Model != "test-model" {
			t.Errorf("model: got %q / %q", rec.AIVersion.Model, rec.ModelOutputs.Model)
		}
		if rec.ModelOutputs.PhotoDNA.Match {
			t.Error("expected photodna match to be false")
		}
	})

	t.Run("Compliance Defaults To True", func(t *testing.T) {
		tests := []struct {
			name       string
			in         domain.ComplianceAnswer
			wantRA     bool
			wantExempt bool
		}{
			{name: "Absent", in: domain.ComplianceAnswer{}, wantRA: true, wantExempt: true},
			{name: "Explicit False", in: domain.ComplianceAnswer{RA11930: boolPtr(false), DataPrivacyExemption: boolPtr(false)}, wantRA: false, wantExempt: false},
			{name: "Mixed", in: domain.ComplianceAnswer{RA11930: boolPtr(true), DataPrivacyExemption: boolPtr(false)}, wantRA: true, wantExempt: false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := fixedBuilder(now).Build(domain.RawScrapedPost{}, &domain.Assessment{Compliance: tt.in}, "{}", started)
				if rec.Compliance.RA11930 != tt.wantRA || rec.Compliance.DataPrivacyExemption != tt.wantExempt {
					t.Errorf("got %+v", rec.Compliance)
				}
			})
		}
	})

	t.Run("Actors", func(t *testing.T) {
		post := domain.RawScrapedPost{
			PostID:          "p2",
			PosterName:      "Ana",
			PosterProfileID: "100",
			SharerName:      "Ben",
			SharerID:        "200",
		}
		verdict := &domain.Assessment{MentionedPeople: []string{"Cara"}, LocationDetected: strPtr("Manila")}
		rec := fixedBuilder(now).Build(post, verdict, "{}", started)

		if rec.Actors.Poster.ProfileURL != "https://www.facebook.com/profile.php?id=100" {
			t.Errorf("poster url: got %q", rec.Actors.Poster.ProfileURL)
		}
		if len(rec.Actors.Sharers) != 1 || rec.Actors.Sharers[0].ProfileID != "200" || rec.Actors.Sharers[0].ProfileURL != "" {
			t.Errorf("sharers: got %+v", rec.Actors.Sharers)
		}
		if len(rec.Actors.MentionedPeople) != 1 || rec.Actors.MentionedPeople[0] != "Cara" {
			t.Errorf("mentioned: got %v", rec.Actors.MentionedPeople)
		}
		if rec.LocationDetected == nil || *rec.LocationDetected != "Manila" {
			t.Errorf("location: got %v", rec.LocationDetected)
		}
	})

	t.Run("Unparsed Verdict", func(t *testing.T) {
		verdict := &domain.UnparsedVerdict{Error: "Failed to parse JSON response", RawText: "nope"}
		rec := fixedBuilder(now).Build(domain.RawScrapedPost{PostID: "p3"}, verdict, "", started)

		if !rec.Unparsed() {
			t.Fatal("expected record to be marked unparsed")
		}
		if rec.ModelOutputs.RawResponse != "nope" {
			t.Errorf("raw response: got %q", rec.ModelOutputs.RawResponse)
		}
		if rec.Flagged || rec.RiskLevel != domain.RiskLevelLow || rec.PriorityScore != 0 {
			t.Errorf("expected defaults, got flagged=%v level=%q priority=%d", rec.Flagged, rec.RiskLevel, rec.PriorityScore)
		}
	})

	t.Run("Processing Time And Signature", func(t *testing.T) {
		rec := fixedBuilder(now).Build(domain.RawScrapedPost{PostID: "p4"}, &domain.Assessment{}, "{}", started)

		if rec.ProcessingMs != 1500 {
			t.Errorf("processing ms: got %d", rec.ProcessingMs)
		}
		if len(rec.Signature) != 8 {
			t.Fatalf("signature length: got %d", len(rec.Signature))
		}
		if rec.Signature != Signature("analysis-1", "p4", 1500) {
			t.Errorf("signature mismatch: %q", rec.Signature)
		}
	})

	t.Run("Fresh IDs", func(t *testing.T) {
		b := NewRecordBuilder("")
		post := domain.RawScrapedPost{PostID: "same"}
		a := b.Build(post, &domain.Assessment{}, "{}", time.Now())
		c := b.Build(post, &domain.Assessment{}, "{}", time.Now())
		if a.AnalysisID == c.AnalysisID {
			t.Error("expected distinct analysis ids for repeated builds")
		}
		if a.AIVersion.Model != DefaultModel {
			t.Errorf("expected default model, got %q", a.AIVersion.Model)
		}
	})
}

func TestSessionID(t *testing.T) {
	fallback := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		scrapedAt string
		want      string
	}{
		{"2024-03-01T10:05:00Z", "sess-2024-03-01T10:00Z"},
		{"2024-03-01T10:55:00Z", "sess-2024-03-01T10:00Z"},
		{"2024-03-01T11:00:01Z", "sess-2024-03-01T11:00Z"},
		{"2024-03-01T12:30:00.123+02:00", "sess-2024-03-01T10:00Z"},
		{"", "sess-2030-01-01T00:00Z"},
		{"yesterday", "sess-2030-01-01T00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.scrapedAt, func(t *testing.T) {
			if got := SessionID(tt.scrapedAt, fallback); got != tt.want {
				t.Errorf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestMediaType(t *testing.T) {
	tests := map[string]string{
		"https://cdn.example.com/a.JPG":          MediaTypeImage,
		"https://cdn.example.com/a.webp?x=1&y=2": MediaTypeImage,
		"clip.mov":                               MediaTypeVideo,
		"https://cdn.example.com/v/video.webm":   MediaTypeVideo,
		"https://cdn.example.com/doc.pdf":        MediaTypeUnknown,
		"":                                       MediaTypeUnknown,
	}
	for in, want := range tests {
		if got := MediaType(in); got != want {
			t.Errorf("MediaType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHashFile(t *testing.T) {
	emptySum := sha256.Sum256(nil)
	empty := hex.EncodeToString(emptySum[:])

	dir := t.TempDir()
	p := filepath.Join(dir, "img.jpg")
	if err := os.WriteFile(p, []byte("pixels"), 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte("pixels"))

	if got := HashFile(p); got != hex.EncodeToString(sum[:]) {
		t.Errorf("existing file: got %q", got)
	}
	if got := HashFile(filepath.Join(dir, "missing.jpg")); got != empty {
		t.Errorf("missing file: got %q", got)
	}
	if got := HashFile(""); got != empty {
		t.Errorf("empty path: got %q", got)
	}
}
