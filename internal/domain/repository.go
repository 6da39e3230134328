package domain

import "context"

// Classification is what a classifier returns for one post: the verdict plus
// the response text it was decoded from.
type Classification struct {
	Verdict     Verdict
	RawResponse string
	Model       string
}

// Classifier assesses a scraped post with an external model.
// Transport failures are returned as errors; undecodable responses are not,
// they come back as an *UnparsedVerdict.
type Classifier interface {
	Classify(ctx context.Context, post RawScrapedPost) (Classification, error)
}

// AnalysisStore persists retained analysis records.
type AnalysisStore interface {
	// Save writes the record once and returns its storage location.
	Save(ctx context.Context, record AnalysisRecord) (string, error)
}

// AnalysisIndex mirrors retained records into a queryable index.
type AnalysisIndex interface {
	Index(ctx context.Context, record AnalysisRecord, location string) error
}

// EventPublisher fans a notification out to live subscribers.
// Publishing is best effort and never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event NotificationEvent)
}

// APIKeyValidator checks credentials presented to the publish endpoint.
type APIKeyValidator interface {
	IsValid(ctx context.Context, key string) (bool, error)
}
