package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/V4T54L/safewatch/internal/domain"
)

// MockClassifier is a mock implementation of domain.Classifier for testing.
// Responses are keyed by post ID; ClassifyFunc takes precedence when set.
type MockClassifier struct {
	mu           sync.Mutex
	ClassifyFunc func(ctx context.Context, post domain.RawScrapedPost) (domain.Classification, error)
	Responses    map[string]domain.Classification
	Errors       map[string]error
	Calls        []domain.RawScrapedPost
}

func (m *MockClassifier) Classify(ctx context.Context, post domain.RawScrapedPost) (domain.Classification, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, post)
	fn := m.ClassifyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, post)
	}
	if err, ok := m.Errors[post.PostID]; ok {
		return domain.Classification{}, err
	}
	if resp, ok := m.Responses[post.PostID]; ok {
		return resp, nil
	}
	return domain.Classification{
		Verdict:     &domain.Assessment{RiskLevel: domain.RiskLevelLow},
		RawResponse: `{"risk_level":"low"}`,
		Model:       "mock-model",
	}, nil
}

// MockAnalysisStore is a mock implementation of domain.AnalysisStore.
type MockAnalysisStore struct {
	mu      sync.Mutex
	Saved   []domain.AnalysisRecord
	SaveErr error
}

func (m *MockAnalysisStore) Save(ctx context.Context, record domain.AnalysisRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return "", m.SaveErr
	}
	m.Saved = append(m.Saved, record)
	return fmt.Sprintf("/mock/analysis_%s.json", record.Post.ID), nil
}

// MockAnalysisIndex is a mock implementation of domain.AnalysisIndex.
type MockAnalysisIndex struct {
	mu        sync.Mutex
	Indexed   []domain.AnalysisRecord
	Locations []string
	IndexErr  error
}

func (m *MockAnalysisIndex) Index(ctx context.Context, record domain.AnalysisRecord, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IndexErr != nil {
		return m.IndexErr
	}
	m.Indexed = append(m.Indexed, record)
	m.Locations = append(m.Locations, location)
	return nil
}

// MockEventPublisher records published events.
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []domain.NotificationEvent
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domain.NotificationEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// Types returns the published event types in order.
func (m *MockEventPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.Events))
	for i, e := range m.Events {
		types[i] = e.Type
	}
	return types
}
