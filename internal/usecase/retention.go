package usecase

import (
	"strings"

	"github.com/V4T54L/safewatch/internal/domain"
)

// SeriousCrimePhrases is the closed list of phrases that mark a flag reason
// or explanation as describing a serious crime. Matching is a plain
// case-insensitive substring test.
var SeriousCrimePhrases = []string{
	"child trafficking",
	"human trafficking",
	"sexual exploitation",
	"grooming",
	"csam",
	"child abuse",
	"online sexual exploitation",
	"child sexual abuse",
	"commercial sexual exploitation",
	"child predator",
	"online predator",
	"solicitation",
	"child solicitation",
	"minor exploitation",
}

// Retention thresholds.
const (
	SeriousHarmThreshold = 0.5
	MinPriorityScore     = 70
)

// RetentionDecision explains the outcome of RetentionPolicy.Evaluate.
type RetentionDecision struct {
	Retain bool
	// Reason names the first failed criterion, empty when retained.
	Reason string

	TraffickingRisk bool
	GroomingRisk    bool
	CSAMRisk        bool
	PhraseInReasons bool
	PhraseInText    bool
	ImmediateAlert  bool
}

// Rejection reasons.
const (
	RejectUnparsed      = "classifier response could not be parsed"
	RejectNotFlagged    = "not flagged"
	RejectRiskLevel     = "risk level below high"
	RejectPriority      = "priority score below threshold"
	RejectNoSeriousHarm = "no serious harm indicator"
)

// RetentionPolicy decides which records are kept. Everything it rejects is
// discarded without being persisted anywhere.
type RetentionPolicy struct {
	Phrases     []string
	Threshold   float64
	MinPriority int
}

// DefaultRetentionPolicy returns the production policy.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		Phrases:     SeriousCrimePhrases,
		Threshold:   SeriousHarmThreshold,
		MinPriority: MinPriorityScore,
	}
}

// ShouldRetain reports whether record is severe enough to be stored.
func (p RetentionPolicy) ShouldRetain(record domain.AnalysisRecord) bool {
	return p.Evaluate(record).Retain
}

// Evaluate applies the policy. All of these must hold: the record parsed,
// is flagged, has risk level high or critical, has priority at or above
// MinPriority, and shows at least one serious harm indicator.
func (p RetentionPolicy) Evaluate(record domain.AnalysisRecord) RetentionDecision {
	if record.Unparsed() {
		return RetentionDecision{Reason: RejectUnparsed}
	}
	if !record.Flagged {
		return RetentionDecision{Reason: RejectNotFlagged}
	}
	level := strings.ToLower(record.RiskLevel)
	if level != domain.RiskLevelHigh && level != domain.RiskLevelCritical {
		return RetentionDecision{Reason: RejectRiskLevel}
	}

	d := RetentionDecision{
		TraffickingRisk: record.RiskScores.Trafficking >= p.Threshold,
		GroomingRisk:    record.RiskScores.Grooming >= p.Threshold,
		CSAMRisk:        record.RiskScores.CSAM >= p.Threshold,
		PhraseInReasons: p.containsPhrase(strings.Join(record.FlagReason, " ")),
		PhraseInText:    p.containsPhrase(record.Explanation),
		ImmediateAlert:  record.RecommendedAction == domain.ActionAlertImmediate,
	}

	if record.PriorityScore < p.MinPriority {
		d.Reason = RejectPriority
		return d
	}
	if !(d.TraffickingRisk || d.GroomingRisk || d.CSAMRisk || d.PhraseInReasons || d.PhraseInText || d.ImmediateAlert) {
		d.Reason = RejectNoSeriousHarm
		return d
	}
	d.Retain = true
	return d
}

func (p RetentionPolicy) containsPhrase(text string) bool {
	if text == "" {
		return false
	}
	text = strings.ToLower(text)
	for _, phrase := range p.Phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
