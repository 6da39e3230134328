package domain

// AnalysisRecord is the canonical, immutable result of analysing one post.
// It is the unit written to the analysis store.
type AnalysisRecord struct {
	AnalysisID        string       `json:"analysis_id"`
	Source            Source       `json:"source"`
	Post              PostSnapshot `json:"post"`
	Actors            Actors       `json:"actors"`
	LanguageDetected  string       `json:"language_detected"`
	LocationDetected  *string      `json:"location_detected"`
	KeywordsMatched   []string     `json:"keywords_matched"`
	RiskScores        Scores       `json:"risk_scores"`
	RiskLevel         string       `json:"risk_level"`
	Flagged           bool         `json:"flagged"`
	FlagReason        []string     `json:"flag_reason"`
	Explanation       string       `json:"explanation"`
	ModelOutputs      ModelOutputs `json:"model_outputs"`
	MatchedHashes     []string     `json:"matched_hashes"`
	RecommendedAction string       `json:"recommended_action"`
	PriorityScore     int          `json:"priority_score"`
	Compliance        Compliance   `json:"compliance"`
	AIVersion         AIVersion    `json:"ai_version"`
	ProcessingMs      int64        `json:"processing_ms"`
	Signature         string       `json:"signature"`
}

// Source describes where and how a post was collected.
type Source struct {
	Platform         string `json:"platform"`
	CollectionMethod string `json:"collection_method"`
	ScrapeSessionID  string `json:"scrape_session_id"`
}

// PostSnapshot is the copy of the scraped post kept inside a record.
type PostSnapshot struct {
	ID          string        `json:"id"`
	Permalink   string        `json:"permalink"`
	ScrapedAt   string        `json:"scraped_at"`
	PublishedAt string        `json:"published_at"`
	FullText    string        `json:"full_text"`
	Media       []MediaRecord `json:"media"`
}

// MediaRecord is a media attachment with its inferred type and content hash.
type MediaRecord struct {
	URL        string `json:"url"`
	Type       string `json:"type"`
	HashSHA256 string `json:"hash_sha256"`
}

// Actors lists the people involved in a post.
type Actors struct {
	Poster          Profile   `json:"poster"`
	Sharers         []Profile `json:"sharers"`
	MentionedPeople []string  `json:"mentioned_people"`
}

// Profile identifies a poster or sharer.
type Profile struct {
	Name       string `json:"name"`
	ProfileID  string `json:"profile_id"`
	ProfileURL string `json:"profile_url"`
}

// Scores are the risk scores rounded to two decimals.
type Scores struct {
	Grooming    float64 `json:"grooming"`
	Trafficking float64 `json:"trafficking"`
	CSAM        float64 `json:"csam"`
	Harassment  float64 `json:"harassment"`
}

// ModelOutputs keeps the classifier output verbatim for audit.
type ModelOutputs struct {
	Model       string         `json:"model"`
	RawResponse string         `json:"raw_response"`
	ParseError  string         `json:"parse_error,omitempty"`
	PhotoDNA    PhotoDNAResult `json:"photodna"`
}

// PhotoDNAResult is reserved for hash matching against known material.
type PhotoDNAResult struct {
	Match bool `json:"match"`
}

// Compliance holds the legal-basis flags attached to a record.
type Compliance struct {
	RA11930              bool `json:"ra11930"`
	DataPrivacyExemption bool `json:"data_privacy_exemption"`
}

// AIVersion records which model produced the verdict.
type AIVersion struct {
	Model string `json:"model"`
}

// Unparsed reports whether the classifier response could not be decoded.
func (r AnalysisRecord) Unparsed() bool {
	return r.ModelOutputs.ParseError != ""
}
