package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/V4T54L/safewatch/internal/adapter/metrics"
	"github.com/V4T54L/safewatch/internal/domain"
	"github.com/V4T54L/safewatch/internal/domain/mocks"
)

func severeClassification() domain.Classification {
	return domain.Classification{
		Verdict: &domain.Assessment{
			RiskLevel:         domain.RiskLevelCritical,
			Flagged:           true,
			PriorityScore:     90,
			RiskScores:        domain.RiskScores{CSAM: 0.95},
			RecommendedAction: domain.ActionAlertImmediate,
		},
		RawResponse: `{"risk_level":"critical"}`,
		Model:       "mock-model",
	}
}

func TestAnalyzePostUseCase_Analyze(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	builder := NewRecordBuilder("mock-model")
	policy := DefaultRetentionPolicy()

	t.Run("Retained Record Is Saved And Indexed", func(t *testing.T) {
		classifier := &mocks.MockClassifier{Responses: map[string]domain.Classification{"p1": severeClassification()}}
		store := &mocks.MockAnalysisStore{}
		index := &mocks.MockAnalysisIndex{}
		m := metrics.NewPipelineMetrics(prometheus.NewRegistry())
		uc := NewAnalyzePostUseCase(classifier, builder, policy, store, index, m, logger)

		out, err := uc.Analyze(context.Background(), domain.RawScrapedPost{PostID: "p1"})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !out.Retained() || out.Location != "/mock/analysis_p1.json" {
			t.Errorf("expected retained outcome, got %+v", out)
		}
		if len(store.Saved) != 1 {
			t.Fatalf("expected 1 saved record, got %d", len(store.Saved))
		}
		if len(index.Indexed) != 1 || index.Locations[0] != out.Location {
			t.Errorf("expected the record to be indexed at %q", out.Location)
		}
		if got := testutil.ToFloat64(m.RecordsRetained); got != 1 {
			t.Errorf("expected retained counter 1, got %v", got)
		}
	})

	t.Run("Discarded Record Is Not Persisted", func(t *testing.T) {
		classifier := &mocks.MockClassifier{}
		store := &mocks.MockAnalysisStore{}
		index := &mocks.MockAnalysisIndex{}
		uc := NewAnalyzePostUseCase(classifier, builder, policy, store, index, nil, logger)

		out, err := uc.Analyze(context.Background(), domain.RawScrapedPost{PostID: "p2"})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Retained() {
			t.Error("expected outcome to be discarded")
		}
		if out.Decision.Reason != RejectNotFlagged {
			t.Errorf("unexpected reason %q", out.Decision.Reason)
		}
		if len(store.Saved) != 0 || len(index.Indexed) != 0 {
			t.Error("discarded records must not be persisted")
		}
	})

	t.Run("Unparsed Response Is Discarded", func(t *testing.T) {
		classifier := &mocks.MockClassifier{Responses: map[string]domain.Classification{
			"p3": {Verdict: &domain.UnparsedVerdict{Error: "Failed to parse JSON response", RawText: "oops"}, RawResponse: "oops"},
		}}
		store := &mocks.MockAnalysisStore{}
		m := metrics.NewPipelineMetrics(prometheus.NewRegistry())
		uc := NewAnalyzePostUseCase(classifier, builder, policy, store, nil, m, logger)

		out, err := uc.Analyze(context.Background(), domain.RawScrapedPost{PostID: "p3"})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Decision.Reason != RejectUnparsed || len(store.Saved) != 0 {
			t.Errorf("expected unparsed rejection, got %+v", out.Decision)
		}
		if got := testutil.ToFloat64(m.ParseFailures); got != 1 {
			t.Errorf("expected parse failure counter 1, got %v", got)
		}
	})

	t.Run("Classifier Error Propagates", func(t *testing.T) {
		classifier := &mocks.MockClassifier{Errors: map[string]error{"p4": errors.New("connection refused")}}
		store := &mocks.MockAnalysisStore{}
		uc := NewAnalyzePostUseCase(classifier, builder, policy, store, nil, nil, logger)

		_, err := uc.Analyze(context.Background(), domain.RawScrapedPost{PostID: "p4"})

		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if len(store.Saved) != 0 {
			t.Error("nothing should be saved on classifier failure")
		}
	})

	t.Run("Store Error Propagates", func(t *testing.T) {
		classifier := &mocks.MockClassifier{Responses: map[string]domain.Classification{"p5": severeClassification()}}
		storeErr := errors.New("disk full")
		store := &mocks.MockAnalysisStore{SaveErr: storeErr}
		uc := NewAnalyzePostUseCase(classifier, builder, policy, store, nil, nil, logger)

		_, err := uc.Analyze(context.Background(), domain.RawScrapedPost{PostID: "p5"})

		if !errors.Is(err, storeErr) {
			t.Fatalf("expected wrapped store error, got %v", err)
		}
	})

	t.Run("Index Error Does Not Fail", func(t *testing.T) {
		classifier := &mocks.MockClassifier{Responses: map[string]domain.Classification{"p6": severeClassification()}}
		store := &mocks.MockAnalysisStore{}
		index := &mocks.MockAnalysisIndex{IndexErr: errors.New("db down")}
		m := metrics.NewPipelineMetrics(prometheus.NewRegistry())
		uc := NewAnalyzePostUseCase(classifier, builder, policy, store, index, m, logger)

		out, err := uc.Analyze(context.Background(), domain.RawScrapedPost{PostID: "p6"})

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !out.Retained() {
			t.Error("expected record to be retained despite index failure")
		}
		if got := testutil.ToFloat64(m.IndexFailures); got != 1 {
			t.Errorf("expected index failure counter 1, got %v", got)
		}
	})
}
