package classifier

import (
	"fmt"
	"strings"

	"github.com/V4T54L/safewatch/internal/domain"
)

const promptHeader = `You are an AI content moderator analyzing social media posts for potential risks. Analyze the following post data and return a JSON response with the specified structure.`

const promptRequirements = `ANALYSIS REQUIREMENTS:
1. Detect language of the post content
2. Identify any mentioned people/usernames in the text
3. Extract location references if any
4. Find keywords that match risk patterns
5. Calculate risk scores (0.0-1.0) for:
   - grooming: Indicators of potential child grooming behavior
   - trafficking: Signs of human trafficking or exploitation
   - csam: Child sexual abuse material indicators
   - harassment: Cyberbullying or harassment patterns
6. Determine overall risk level: "low", "medium", "high", or "critical"
7. Flag the post if any risk score > 0.5
8. Provide flag reasons and explanation
9. Recommend action: "no_action", "review", "alert", "alert_immediate"
10. Calculate priority score (0-100 based on risk levels and urgency)

RESPONSE FORMAT (JSON only, no other text):
{
  "language_detected": "en",
  "mentioned_people": ["name1", "name2"],
  "location_detected": "city, country" or null,
  "keywords_matched": ["keyword1", "keyword2"],
  "risk_scores": {
    "grooming": 0.0,
    "trafficking": 0.0,
    "csam": 0.0,
    "harassment": 0.0
  },
  "risk_level": "low|medium|high|critical",
  "flagged": false,
  "flag_reason": [],
  "explanation": "Brief explanation of the analysis",
  "recommended_action": "no_action|review|alert|alert_immediate",
  "priority_score": 0,
  "compliance": {
    "ra11930": true,
    "data_privacy_exemption": false
  }
}

Focus on detecting patterns like:
- Requests for private contact ("PM me", "DM me")
- Age-related terms with suspicious context
- Offers of money/gifts to young people
- Sexual language combined with youth references
- Trafficking indicators (transport, control, exploitation)
- Harassment or threatening language
`

// BuildPrompt renders the instruction sent to the model for one post.
// The output depends only on the post.
func BuildPrompt(post domain.RawScrapedPost) string {
	text := post.FullText
	if text == "" {
		text = "No text content"
	}
	poster := post.PosterName
	if poster == "" {
		poster = "Unknown"
	}
	posted := post.PublishedAt
	if posted == "" {
		posted = "Unknown time"
	}
	shared := "No"
	if post.IsShared() {
		shared = fmt.Sprintf("Yes (shared by %s)", post.SharerName)
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(promptHeader)
	b.WriteString("\n\nPOST DATA:\n")
	fmt.Fprintf(&b, "- Text: \"%s\"\n", text)
	fmt.Fprintf(&b, "- Poster: %s\n", poster)
	b.WriteString("- Platform: Facebook\n")
	fmt.Fprintf(&b, "- Posted: %s\n", posted)
	fmt.Fprintf(&b, "- Media Count: %d\n", len(post.MediaURLs))
	fmt.Fprintf(&b, "- Is Shared Post: %s\n\n", shared)
	b.WriteString(promptRequirements)
	return b.String()
}
