package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/safewatch/internal/adapter/metrics"
)

const notifyKeySchema = `
CREATE TABLE IF NOT EXISTS notify_api_keys (
	key_sha256 TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	is_active  BOOLEAN NOT NULL DEFAULT true,
	expires_at TIMESTAMPTZ
);`

// NotifyKeyStore answers whether a publish key may post to /api/notify.
// Only the SHA-256 digest of a key is stored or cached, so neither the
// table nor process memory holds usable keys.
type NotifyKeyStore struct {
	db      *sql.DB
	logger  *slog.Logger
	ttl     time.Duration
	metrics *metrics.NotifierMetrics

	mu      sync.Mutex
	answers map[string]keyAnswer
}

type keyAnswer struct {
	valid   bool
	expires time.Time
}

// NewNotifyKeyStore creates a key store that remembers each answer for ttl.
// m may be nil.
func NewNotifyKeyStore(db *sql.DB, logger *slog.Logger, ttl time.Duration, m *metrics.NotifierMetrics) *NotifyKeyStore {
	return &NotifyKeyStore{
		db:      db,
		logger:  logger.With("component", "notify_keys"),
		ttl:     ttl,
		metrics: m,
		answers: make(map[string]keyAnswer),
	}
}

// EnsureSchema creates the key table if it does not exist.
func (s *NotifyKeyStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, notifyKeySchema); err != nil {
		return fmt.Errorf("failed to create notify key schema: %w", err)
	}
	return nil
}

// KeyDigest is the form a key is stored under.
func KeyDigest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// IsValid reports whether key is active and unexpired. Database errors are
// returned and never remembered.
func (s *NotifyKeyStore) IsValid(ctx context.Context, key string) (bool, error) {
	digest := KeyDigest(key)
	now := time.Now()

	s.mu.Lock()
	ans, ok := s.answers[digest]
	s.mu.Unlock()
	if ok && now.Before(ans.expires) {
		s.count(true)
		return ans.valid, nil
	}
	s.count(false)

	var valid bool
	query := `SELECT EXISTS(SELECT 1 FROM notify_api_keys WHERE key_sha256 = $1 AND is_active AND (expires_at IS NULL OR expires_at > NOW()))`
	if err := s.db.QueryRowContext(ctx, query, digest).Scan(&valid); err != nil {
		s.logger.Error("failed to look up notify key", "error", err)
		return false, fmt.Errorf("failed to look up notify key: %w", err)
	}

	s.mu.Lock()
	s.answers[digest] = keyAnswer{valid: valid, expires: now.Add(s.ttl)}
	s.mu.Unlock()
	return valid, nil
}

func (s *NotifyKeyStore) count(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.APIKeyCacheHits.Inc()
	} else {
		s.metrics.APIKeyCacheMisses.Inc()
	}
}
