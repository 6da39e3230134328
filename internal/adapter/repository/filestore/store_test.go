package filestore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/V4T54L/safewatch/internal/domain"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(filepath.Join(t.TempDir(), "analyzed_data"), logger)
}

func sampleRecord(postID string) domain.AnalysisRecord {
	loc := "Cebu, Philippines"
	return domain.AnalysisRecord{
		AnalysisID: "3f1c2a4e-0000-4000-8000-000000000001",
		Source:     domain.Source{Platform: "facebook", CollectionMethod: "browser_use", ScrapeSessionID: "sess-2024-03-01T10:00Z"},
		Post: domain.PostSnapshot{
			ID:          postID,
			Permalink:   "https://www.facebook.com/" + postID,
			ScrapedAt:   "2024-03-01T10:05:00.000Z",
			PublishedAt: "2024-03-01T09:00:00.000Z",
			FullText:    "text",
			Media:       []domain.MediaRecord{{URL: "https://cdn/x.jpg", Type: "image", HashSHA256: "e3b0"}},
		},
		Actors: domain.Actors{
			Poster:          domain.Profile{Name: "Ana", ProfileID: "1", ProfileURL: "https://www.facebook.com/profile.php?id=1"},
			Sharers:         []domain.Profile{},
			MentionedPeople: []string{"Ben"},
		},
		LanguageDetected:  "en",
		LocationDetected:  &loc,
		KeywordsMatched:   []string{"DM me"},
		RiskScores:        domain.Scores{Grooming: 0.81, Trafficking: 0.2, CSAM: 0, Harassment: 0.05},
		RiskLevel:         "critical",
		Flagged:           true,
		FlagReason:        []string{"grooming"},
		Explanation:       "explanation",
		ModelOutputs:      domain.ModelOutputs{Model: "m", RawResponse: `{"risk_level":"critical"}`},
		MatchedHashes:     []string{},
		RecommendedAction: "alert_immediate",
		PriorityScore:     92,
		Compliance:        domain.Compliance{RA11930: true, DataPrivacyExemption: true},
		AIVersion:         domain.AIVersion{Model: "m"},
		ProcessingMs:      1234,
		Signature:         "abcd1234",
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 10, 5, 30, 123000000, time.UTC) }
	rec := sampleRecord("p1")

	path, err := s.Save(context.Background(), rec)
	if err != nil {
		t.Fatalf("failed to save record: %v", err)
	}
	wantName := "analysis_p1_2024-03-01T10-05-30-123Z.json"
	if filepath.Base(path) != wantName {
		t.Errorf("file name: got %q want %q", filepath.Base(path), wantName)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "\n  \"analysis_id\"") {
		t.Error("expected indented JSON")
	}

	got, err := s.Get(context.Background(), wantName)
	if err != nil {
		t.Fatalf("failed to get record: %v", err)
	}
	if !reflect.DeepEqual(got.AnalysisRecord, rec) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got.AnalysisRecord, rec)
	}
	if got.Metadata.Filename != wantName || got.Metadata.Filesize != int64(len(raw)) {
		t.Errorf("unexpected metadata %+v", got.Metadata)
	}
}

func TestStore_SaveNeverOverwrites(t *testing.T) {
	s := setupTestStore(t)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	p1, err := s.Save(context.Background(), sampleRecord("same"))
	if err != nil {
		t.Fatal(err)
	}
	p2, err := s.Save(context.Background(), sampleRecord("same"))
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Fatalf("expected distinct paths, got %q twice", p1)
	}

	listing, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(listing.Records) != 2 {
		t.Errorf("expected 2 records, got %d", len(listing.Records))
	}
}

func TestStore_SaveSanitizesPostID(t *testing.T) {
	s := setupTestStore(t)

	path, err := s.Save(context.Background(), sampleRecord("../../etc/x"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != s.Dir() {
		t.Errorf("record escaped the store directory: %s", path)
	}
	if err := ValidateName(filepath.Base(path)); err != nil {
		t.Errorf("saved name should be readable back: %v", err)
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"analysis_p1_2024-03-01T10-05-30-123Z.json", true},
		{"../../etc/passwd", false},
		{"../secret.json", false},
		{"a..b.json", false},
		{"sub/file.json", false},
		{`sub\file.json`, false},
		{"notes.txt", false},
		{"file.JSON", false},
		{".json", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidName) {
				t.Errorf("expected ErrInvalidName, got %v", err)
			}
		})
	}
}

func TestStore_Get(t *testing.T) {
	s := setupTestStore(t)

	t.Run("Traversal Rejected Before Disk Access", func(t *testing.T) {
		// The store directory does not exist yet; a disk lookup would
		// report ErrNotFound instead.
		_, err := s.Get(context.Background(), "../../etc/passwd")
		if !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName, got %v", err)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := s.Get(context.Background(), "analysis_nope.json")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_List(t *testing.T) {
	t.Run("Missing Directory", func(t *testing.T) {
		s := setupTestStore(t)

		listing, err := s.List(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !listing.Missing || len(listing.Records) != 0 || listing.Records == nil {
			t.Errorf("expected empty, missing listing, got %+v", listing)
		}
	})

	t.Run("Skips Unreadable Documents", func(t *testing.T) {
		s := setupTestStore(t)
		if _, err := s.Save(context.Background(), sampleRecord("good")); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(s.Dir(), "broken.json"), []byte("{"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(s.Dir(), "readme.txt"), []byte("hi"), 0o644); err != nil {
			t.Fatal(err)
		}

		listing, err := s.List(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(listing.Records) != 1 || listing.Records[0].Post.ID != "good" {
			t.Fatalf("expected only the good record, got %+v", listing.Records)
		}
		if listing.Records[0].Metadata.Filesize == 0 {
			t.Error("expected file size metadata")
		}
	})
}

func TestStore_Files(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.Save(context.Background(), sampleRecord("p1")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "readme.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	listing, err := s.Files(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if listing.TotalFiles != 2 || listing.JSONFiles != 1 {
		t.Errorf("unexpected totals %d/%d", listing.TotalFiles, listing.JSONFiles)
	}

	missing, err := NewStore(filepath.Join(t.TempDir(), "none"), s.logger).Files(context.Background())
	if err != nil || !missing.Missing {
		t.Errorf("expected missing listing, got %+v %v", missing, err)
	}
}
