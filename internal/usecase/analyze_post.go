package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/V4T54L/safewatch/internal/adapter/metrics"
	"github.com/V4T54L/safewatch/internal/domain"
)

// Outcome is the result of analysing one post.
type Outcome struct {
	Record   domain.AnalysisRecord
	Decision RetentionDecision
	// Location is where the record was stored; empty when discarded.
	Location string
}

// Retained reports whether the record was written to the store.
func (o Outcome) Retained() bool {
	return o.Location != ""
}

// AnalyzePostUseCase runs one post through classify, build, retain and store.
type AnalyzePostUseCase struct {
	classifier domain.Classifier
	builder    *RecordBuilder
	policy     RetentionPolicy
	store      domain.AnalysisStore
	index      domain.AnalysisIndex
	metrics    *metrics.PipelineMetrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewAnalyzePostUseCase creates a new AnalyzePostUseCase. index and m may be nil.
func NewAnalyzePostUseCase(
	classifier domain.Classifier,
	builder *RecordBuilder,
	policy RetentionPolicy,
	store domain.AnalysisStore,
	index domain.AnalysisIndex,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
) *AnalyzePostUseCase {
	return &AnalyzePostUseCase{
		classifier: classifier,
		builder:    builder,
		policy:     policy,
		store:      store,
		index:      index,
		metrics:    m,
		logger:     logger.With("component", "analyze_post"),
		now:        time.Now,
	}
}

// Analyze classifies the post and stores the record if the retention policy
// keeps it. Classifier transport failures and store write failures are
// returned; a discarded record is a normal outcome.
func (uc *AnalyzePostUseCase) Analyze(ctx context.Context, post domain.RawScrapedPost) (Outcome, error) {
	postID := post.PostID
	if postID == "" {
		postID = UnknownPostID
	}
	uc.logger.Info("analyzing post", "post_id", postID)

	// 1. Classify
	startedAt := uc.now()
	c, err := uc.classifier.Classify(ctx, post)
	if uc.metrics != nil {
		uc.metrics.ClassifyDuration.Observe(time.Since(startedAt).Seconds())
	}
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.ClassifierFailures.Inc()
		}
		uc.logger.Error("failed to classify post", "post_id", postID, "error", err)
		return Outcome{}, fmt.Errorf("classify post %s: %w", postID, err)
	}
	if _, ok := c.Verdict.(*domain.UnparsedVerdict); ok && uc.metrics != nil {
		uc.metrics.ParseFailures.Inc()
	}

	// 2. Build the record
	record := uc.builder.Build(post, c.Verdict, c.RawResponse, startedAt)

	// 3. Retention decision
	decision := uc.policy.Evaluate(record)
	out := Outcome{Record: record, Decision: decision}
	if !decision.Retain {
		uc.logger.Info("analysis not retained",
			"post_id", postID,
			"reason", decision.Reason,
			"risk_level", record.RiskLevel,
			"priority_score", record.PriorityScore,
		)
		return out, nil
	}
	uc.logger.Info("content flagged for saving",
		"post_id", postID,
		"trafficking", decision.TraffickingRisk,
		"grooming", decision.GroomingRisk,
		"csam", decision.CSAMRisk,
		"serious_crime_phrase", decision.PhraseInReasons || decision.PhraseInText,
		"immediate_alert", decision.ImmediateAlert,
		"priority_score", record.PriorityScore,
		"risk_level", record.RiskLevel,
	)

	// 4. Persist
	location, err := uc.store.Save(ctx, record)
	if err != nil {
		uc.logger.Error("failed to save analysis", "post_id", postID, "error", err)
		return out, fmt.Errorf("save analysis for post %s: %w", postID, err)
	}
	out.Location = location
	if uc.metrics != nil {
		uc.metrics.RecordsRetained.Inc()
	}

	// 5. Mirror into the index; the file is the source of truth.
	if uc.index != nil {
		if err := uc.index.Index(ctx, record, location); err != nil {
			if uc.metrics != nil {
				uc.metrics.IndexFailures.Inc()
			}
			uc.logger.Warn("failed to index analysis", "post_id", postID, "location", location, "error", err)
		}
	}

	uc.logger.Info("analysis completed",
		"post_id", postID,
		"processing_ms", record.ProcessingMs,
		"location", location,
	)
	return out, nil
}
