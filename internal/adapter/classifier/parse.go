package classifier

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/V4T54L/safewatch/internal/domain"
)

// ParseFailure is the error text carried by an UnparsedVerdict.
const ParseFailure = "Failed to parse JSON response"

// ParseVerdict decodes a model response into a Verdict. Markdown fences are
// stripped first. It never fails: anything that is not a JSON object comes
// back as an *domain.UnparsedVerdict holding the original text.
func ParseVerdict(text string) domain.Verdict {
	cleaned := stripFences(text)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	var probe json.RawMessage
	if err := dec.Decode(&probe); err != nil || dec.More() {
		return unparsed(text)
	}
	probe = bytes.TrimSpace(probe)
	if len(probe) == 0 || probe[0] != '{' {
		return unparsed(text)
	}

	var a domain.Assessment
	if err := json.Unmarshal(probe, &a); err != nil {
		return unparsed(text)
	}
	return &a
}

func unparsed(text string) *domain.UnparsedVerdict {
	return &domain.UnparsedVerdict{Error: ParseFailure, RawText: text}
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
