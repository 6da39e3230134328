package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/safewatch/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS retained_analyses (
	analysis_id        TEXT PRIMARY KEY,
	post_id            TEXT NOT NULL,
	permalink          TEXT NOT NULL,
	scrape_session_id  TEXT NOT NULL,
	risk_level         TEXT NOT NULL,
	priority_score     INTEGER NOT NULL,
	recommended_action TEXT NOT NULL,
	grooming           DOUBLE PRECISION NOT NULL,
	trafficking        DOUBLE PRECISION NOT NULL,
	csam               DOUBLE PRECISION NOT NULL,
	harassment         DOUBLE PRECISION NOT NULL,
	flag_reason        TEXT[] NOT NULL,
	signature          TEXT NOT NULL,
	location           TEXT NOT NULL,
	indexed_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS retained_analyses_session_idx ON retained_analyses (scrape_session_id);`

// AnalysisIndex mirrors retained records into PostgreSQL so they can be
// queried by session or severity. The JSON file stays the source of truth;
// only retained records ever reach this table.
type AnalysisIndex struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAnalysisIndex creates a new PostgreSQL analysis index.
func NewAnalysisIndex(db *sql.DB, logger *slog.Logger) *AnalysisIndex {
	return &AnalysisIndex{db: db, logger: logger.With("component", "analysis_index")}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the index table if it does not exist.
func (i *AnalysisIndex) EnsureSchema(ctx context.Context) error {
	if _, err := i.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Index inserts the record. Re-indexing the same analysis id is a no-op.
func (i *AnalysisIndex) Index(ctx context.Context, record domain.AnalysisRecord, location string) error {
	query := `
		INSERT INTO retained_analyses (
			analysis_id, post_id, permalink, scrape_session_id, risk_level, priority_score,
			recommended_action, grooming, trafficking, csam, harassment, flag_reason, signature, location
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (analysis_id) DO NOTHING`

	reasons := record.FlagReason
	if reasons == nil {
		reasons = []string{}
	}

	_, err := i.db.ExecContext(ctx, query,
		record.AnalysisID,
		record.Post.ID,
		record.Post.Permalink,
		record.Source.ScrapeSessionID,
		record.RiskLevel,
		record.PriorityScore,
		record.RecommendedAction,
		record.RiskScores.Grooming,
		record.RiskScores.Trafficking,
		record.RiskScores.CSAM,
		record.RiskScores.Harassment,
		pq.Array(reasons),
		record.Signature,
		location,
	)
	if err != nil {
		return fmt.Errorf("failed to index analysis %s: %w", record.AnalysisID, err)
	}
	i.logger.Debug("indexed analysis", "analysis_id", record.AnalysisID, "post_id", record.Post.ID)
	return nil
}
