package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/safewatch/internal/domain"
)

// Record defaults.
const (
	DefaultModel            = "gemini-2.0-flash-exp"
	PlatformFacebook        = "facebook"
	CollectionBrowserUse    = "browser_use"
	UnknownPostID           = "unknown"
	DefaultExplanation      = "Automated analysis completed"
	UnknownLanguage         = "unknown"
	UnknownPoster           = "Unknown"
	MediaTypeImage          = "image"
	MediaTypeVideo          = "video"
	MediaTypeUnknown        = "unknown"
	facebookBaseURL         = "https://www.facebook.com/"
	facebookProfileURLStart = "https://www.facebook.com/profile.php?id="
)

var (
	imageExts = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}}
	videoExts = map[string]struct{}{".mp4": {}, ".avi": {}, ".mov": {}, ".webm": {}}
)

// RecordBuilder maps a scraped post and its verdict into an AnalysisRecord.
// Apart from the clock and the id generator it is a pure function.
type RecordBuilder struct {
	model string
	now   func() time.Time
	newID func() string
}

// RecordBuilderOption customizes a RecordBuilder.
type RecordBuilderOption func(*RecordBuilder)

// WithClock overrides the builder clock.
func WithClock(now func() time.Time) RecordBuilderOption {
	return func(b *RecordBuilder) { b.now = now }
}

// WithIDGenerator overrides analysis id generation.
func WithIDGenerator(fn func() string) RecordBuilderOption {
	return func(b *RecordBuilder) { b.newID = fn }
}

// NewRecordBuilder creates a RecordBuilder that stamps records with model.
func NewRecordBuilder(model string, opts ...RecordBuilderOption) *RecordBuilder {
	if model == "" {
		model = DefaultModel
	}
	b := &RecordBuilder{
		model: model,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles the record. startedAt is when the classifier request was
// dispatched; the difference to the builder clock becomes processing_ms.
// An *UnparsedVerdict yields a record with every verdict field defaulted and
// model_outputs.parse_error set.
func (b *RecordBuilder) Build(post domain.RawScrapedPost, verdict domain.Verdict, rawResponse string, startedAt time.Time) domain.AnalysisRecord {
	now := b.now().UTC()
	analysisID := b.newID()

	var a domain.Assessment
	var parseErr string
	switch v := verdict.(type) {
	case *domain.Assessment:
		if v != nil {
			a = *v
		}
	case *domain.UnparsedVerdict:
		parseErr = v.Error
		if rawResponse == "" {
			rawResponse = v.RawText
		}
	}

	postID := post.PostID
	if postID == "" {
		postID = UnknownPostID
	}
	permalink := post.Permalink
	if permalink == "" {
		permalink = facebookBaseURL + postID
	}
	scrapedAt := post.ScrapedAt
	if scrapedAt == "" {
		scrapedAt = now.Format(isoMillis)
	}
	publishedAt := post.PublishedAt
	if publishedAt == "" {
		publishedAt = scrapedAt
	}

	processingMs := now.Sub(startedAt).Milliseconds()
	if processingMs < 0 {
		processingMs = 0
	}

	rec := domain.AnalysisRecord{
		AnalysisID: analysisID,
		Source: domain.Source{
			Platform:         PlatformFacebook,
			CollectionMethod: CollectionBrowserUse,
			ScrapeSessionID:  SessionID(post.ScrapedAt, now),
		},
		Post: domain.PostSnapshot{
			ID:          postID,
			Permalink:   permalink,
			ScrapedAt:   scrapedAt,
			PublishedAt: publishedAt,
			FullText:    post.FullText,
			Media:       buildMedia(post.MediaURLs),
		},
		Actors: domain.Actors{
			Poster:          profile(post.PosterName, firstNonEmpty(post.PosterProfileID, post.PosterID), post.PosterProfileID, post.PosterProfileURL),
			Sharers:         []domain.Profile{},
			MentionedPeople: nonNil(a.MentionedPeople),
		},
		LanguageDetected: firstNonEmpty(a.LanguageDetected, UnknownLanguage),
		LocationDetected: nonEmptyPtr(a.LocationDetected),
		KeywordsMatched:  nonNil(a.KeywordsMatched),
		RiskScores: domain.Scores{
			Grooming:    round2(float64(a.RiskScores.Grooming)),
			Trafficking: round2(float64(a.RiskScores.Trafficking)),
			CSAM:        round2(float64(a.RiskScores.CSAM)),
			Harassment:  round2(float64(a.RiskScores.Harassment)),
		},
		RiskLevel:   firstNonEmpty(a.RiskLevel, domain.RiskLevelLow),
		Flagged:     a.Flagged,
		FlagReason:  nonNil([]string(a.FlagReason)),
		Explanation: firstNonEmpty(a.Explanation, DefaultExplanation),
		ModelOutputs: domain.ModelOutputs{
			Model:       b.model,
			RawResponse: rawResponse,
			ParseError:  parseErr,
		},
		MatchedHashes:     []string{},
		RecommendedAction: firstNonEmpty(a.RecommendedAction, domain.ActionNoAction),
		PriorityScore:     int(a.PriorityScore),
		Compliance: domain.Compliance{
			RA11930:              a.Compliance.RA11930 == nil || *a.Compliance.RA11930,
			DataPrivacyExemption: a.Compliance.DataPrivacyExemption == nil || *a.Compliance.DataPrivacyExemption,
		},
		AIVersion:    domain.AIVersion{Model: b.model},
		ProcessingMs: processingMs,
	}

	if post.IsShared() {
		rec.Actors.Sharers = append(rec.Actors.Sharers,
			profile(post.SharerName, firstNonEmpty(post.SharerProfileID, post.SharerID), post.SharerProfileID, post.SharerProfileURL))
	}

	rec.Signature = Signature(analysisID, postID, processingMs)
	return rec
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// SessionID buckets a scrape timestamp into its UTC hour, e.g.
// sess-2024-03-01T10:00Z. Missing or unparseable input falls back to fallback.
func SessionID(scrapedAt string, fallback time.Time) string {
	t, err := time.Parse(time.RFC3339Nano, scrapedAt)
	if err != nil {
		t = fallback
	}
	return "sess-" + t.UTC().Format("2006-01-02T15") + ":00Z"
}

// Signature is the first 8 hex characters of sha256(analysisID+postID+ms).
// It helps spot duplicates and accidental edits. Anyone holding the three
// inputs can recompute it, so it does not prove authenticity.
func Signature(analysisID, postID string, processingMs int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%s%d", analysisID, postID, processingMs)))
	return hex.EncodeToString(sum[:])[:8]
}

// MediaType infers image/video/unknown from the URL's file extension.
func MediaType(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if _, ok := imageExts[ext]; ok {
		return MediaTypeImage
	}
	if _, ok := videoExts[ext]; ok {
		return MediaTypeVideo
	}
	return MediaTypeUnknown
}

// HashFile returns the hex sha256 of the file at p, or of the empty input
// when p is empty or unreadable.
func HashFile(p string) string {
	var data []byte
	if p != "" {
		if b, err := os.ReadFile(p); err == nil {
			data = b
		}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func buildMedia(refs []domain.MediaRef) []domain.MediaRecord {
	out := make([]domain.MediaRecord, 0, len(refs))
	for _, m := range refs {
		u := firstNonEmpty(m.OriginalURL, m.URL)
		out = append(out, domain.MediaRecord{
			URL:        u,
			Type:       MediaType(u),
			HashSHA256: HashFile(firstNonEmpty(m.LocalPath, m.Filename)),
		})
	}
	return out
}

func profile(name, id, profileID, profileURL string) domain.Profile {
	if profileURL == "" && profileID != "" {
		profileURL = facebookProfileURLStart + profileID
	}
	return domain.Profile{
		Name:       firstNonEmpty(name, UnknownPoster),
		ProfileID:  id,
		ProfileURL: profileURL,
	}
}

func round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Round(f*100) / 100
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonEmptyPtr(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
