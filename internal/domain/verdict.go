package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Risk levels the classifier may return.
const (
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// Recommended actions the classifier may return.
const (
	ActionNoAction       = "no_action"
	ActionReview         = "review"
	ActionAlert          = "alert"
	ActionAlertImmediate = "alert_immediate"
)

// Verdict is the outcome of classifying one post. It is either a parsed
// *Assessment or an *UnparsedVerdict; callers switch on the concrete type.
type Verdict interface {
	verdict()
}

// UnparsedVerdict carries a classifier response that could not be decoded.
// It never leads to retention.
type UnparsedVerdict struct {
	Error   string `json:"error"`
	RawText string `json:"raw_response"`
}

func (*UnparsedVerdict) verdict() {}

// Assessment is the structured risk verdict returned by the classifier.
type Assessment struct {
	LanguageDetected  string           `json:"language_detected"`
	MentionedPeople   []string         `json:"mentioned_people"`
	LocationDetected  *string          `json:"location_detected"`
	KeywordsMatched   []string         `json:"keywords_matched"`
	RiskScores        RiskScores       `json:"risk_scores"`
	RiskLevel         string           `json:"risk_level"`
	Flagged           bool             `json:"flagged"`
	FlagReason        ReasonList       `json:"flag_reason"`
	Explanation       string           `json:"explanation"`
	RecommendedAction string           `json:"recommended_action"`
	PriorityScore     Priority         `json:"priority_score"`
	Compliance        ComplianceAnswer `json:"compliance"`
}

func (*Assessment) verdict() {}

// UnmarshalJSON decodes each field on its own, so a mistyped value falls
// back to its zero value instead of failing the whole assessment. Only a
// body that is not a JSON object is an error.
func (a *Assessment) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("assessment is not a JSON object")
	}

	*a = Assessment{
		LanguageDetected:  looseString(fields["language_detected"]),
		MentionedPeople:   looseList(fields["mentioned_people"]),
		LocationDetected:  looseStringPtr(fields["location_detected"]),
		KeywordsMatched:   looseList(fields["keywords_matched"]),
		RiskLevel:         looseString(fields["risk_level"]),
		Explanation:       looseString(fields["explanation"]),
		RecommendedAction: looseString(fields["recommended_action"]),
	}
	if flagged := looseBool(fields["flagged"]); flagged != nil {
		a.Flagged = *flagged
	}
	decodeLoose(fields["risk_scores"], &a.RiskScores)
	decodeLoose(fields["flag_reason"], &a.FlagReason)
	decodeLoose(fields["priority_score"], &a.PriorityScore)

	var compliance map[string]json.RawMessage
	if decodeLoose(fields["compliance"], &compliance) {
		a.Compliance = ComplianceAnswer{
			RA11930:              looseBool(compliance["ra11930"]),
			DataPrivacyExemption: looseBool(compliance["data_privacy_exemption"]),
		}
	}
	return nil
}

// RiskScores holds the four independent risk probabilities.
type RiskScores struct {
	Grooming    Score `json:"grooming"`
	Trafficking Score `json:"trafficking"`
	CSAM        Score `json:"csam"`
	Harassment  Score `json:"harassment"`
}

// ComplianceAnswer keeps the classifier's compliance flags; nil means the
// field was absent.
type ComplianceAnswer struct {
	RA11930              *bool `json:"ra11930"`
	DataPrivacyExemption *bool `json:"data_privacy_exemption"`
}

// Score is a risk score. It accepts a JSON number, a numeric string or null;
// anything else decodes to zero.
type Score float64

func (s *Score) UnmarshalJSON(b []byte) error {
	*s = Score(looseNumber(b))
	return nil
}

// Priority is the 0-100 urgency score, decoded as leniently as Score. The
// fraction is dropped, so 69.6 stays below a threshold of 70.
type Priority int

func (p *Priority) UnmarshalJSON(b []byte) error {
	*p = Priority(math.Floor(looseNumber(b)))
	return nil
}

// ReasonList is the flag_reason array. A value that is not an array decodes
// to an empty list; non-string entries are dropped.
type ReasonList []string

func (r *ReasonList) UnmarshalJSON(b []byte) error {
	var items []any
	if err := json.Unmarshal(b, &items); err != nil {
		*r = ReasonList{}
		return nil
	}
	out := make(ReasonList, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	*r = out
	return nil
}

// decodeLoose reports whether raw was present and decoded into v.
func decodeLoose(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func looseString(raw json.RawMessage) string {
	var s string
	decodeLoose(raw, &s)
	return s
}

func looseStringPtr(raw json.RawMessage) *string {
	var s *string
	if !decodeLoose(raw, &s) {
		return nil
	}
	return s
}

func looseList(raw json.RawMessage) []string {
	var r ReasonList
	if !decodeLoose(raw, &r) {
		return nil
	}
	return r
}

// looseBool accepts a JSON bool, "true"/"false" in any case, or a number
// (non-zero is true). nil means absent, null or unrecognised.
func looseBool(raw json.RawMessage) *bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var v bool
	switch raw[0] {
	case 't', 'f':
		if json.Unmarshal(raw, &v) != nil {
			return nil
		}
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil
		}
		v = parsed
	default:
		var f float64
		if json.Unmarshal(raw, &f) != nil {
			return nil
		}
		v = f != 0
	}
	return &v
}

func looseNumber(b []byte) float64 {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0
	}
	raw := string(b)
	if b[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return 0
		}
		raw = strings.TrimSpace(unquoted)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
