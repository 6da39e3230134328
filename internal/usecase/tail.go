package usecase

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/V4T54L/safewatch/internal/domain"
)

// DirectoryTail turns file arrivals in a directory into notification events.
// The server runs one for the analysis store and one for the scraped posts.
type DirectoryTail struct {
	eventType string
	prefix    string
	publisher domain.EventPublisher
	logger    *slog.Logger
}

// NewAnalysisTail announces new records in the analysis store.
func NewAnalysisTail(publisher domain.EventPublisher, logger *slog.Logger) *DirectoryTail {
	return &DirectoryTail{
		eventType: domain.EventNewAnalysis,
		prefix:    "New analysis data available: ",
		publisher: publisher,
		logger:    logger.With("component", "analysis_tail"),
	}
}

// NewScrapeTail announces newly scraped posts.
func NewScrapeTail(publisher domain.EventPublisher, logger *slog.Logger) *DirectoryTail {
	return &DirectoryTail{
		eventType: domain.EventDataScraped,
		prefix:    "Data scraped and saved: ",
		publisher: publisher,
		logger:    logger.With("component", "scrape_tail"),
	}
}

// Run publishes one event per path until ctx ends or obs closes.
func (t *DirectoryTail) Run(ctx context.Context, obs Observer) {
	events := obs.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-events:
			if !ok {
				return
			}
			filename := filepath.Base(p)
			t.logger.Debug("file arrived", "path", p)
			t.publisher.Publish(ctx, domain.NewNotificationEvent(
				t.eventType,
				t.prefix+filename,
				map[string]any{"filename": filename, "filePath": p},
			))
		}
	}
}
