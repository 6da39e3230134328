package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/V4T54L/safewatch/internal/domain"
	"github.com/V4T54L/safewatch/internal/domain/mocks"
)

func TestDirectoryTail_Run(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		newTail  func(domain.EventPublisher, *slog.Logger) *DirectoryTail
		wantType string
		wantMsg  string
	}{
		{"Analysis", NewAnalysisTail, domain.EventNewAnalysis, "New analysis data available: analysis_p1.json"},
		{"Scrape", NewScrapeTail, domain.EventDataScraped, "Data scraped and saved: analysis_p1.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mocks.MockEventPublisher{}
			obs := make(chanObserver, 1)
			obs <- "/data/analysis_p1.json"
			close(obs)

			tt.newTail(pub, logger).Run(context.Background(), obs)

			if len(pub.Events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(pub.Events))
			}
			e := pub.Events[0]
			if e.Type != tt.wantType || e.Message != tt.wantMsg {
				t.Errorf("unexpected event %q %q", e.Type, e.Message)
			}
			if e.Data["filename"] != "analysis_p1.json" || e.Data["filePath"] != "/data/analysis_p1.json" {
				t.Errorf("unexpected data %v", e.Data)
			}
		})
	}
}
