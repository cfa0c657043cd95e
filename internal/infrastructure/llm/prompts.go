package llm

import (
	"fmt"
	"strings"

	"ConferenceScanner/internal/domain"
)

const (
	extractionTextLimit = 4000
	relevanceTextLimit  = 1500
	relevanceMaxTokens  = 120

	extractionSystemPrompt = "You extract structured data from conference announcements. Always respond with valid JSON only, no markdown fences."
	relevanceSystemPrompt  = "You classify academic conference relevance. Respond with valid JSON only."
)

func extractionPrompt(title, pageText string, year int) string {
	return fmt.Sprintf(`Extract the following fields from this conference announcement page.
Return a JSON object with exactly these keys. Use empty string "" if a field is not found.

- "submission_deadline": The submission/paper deadline as a human-readable string (e.g. "March 30, %[1]d"). If the deadline has passed, is "expired", "closed", "TBA", or similar non-date text, return empty string ""
- "deadline_date": The submission deadline as an ISO date YYYY-MM-DD (e.g. "%[1]d-03-30"). If the year is missing, assume %[1]d. If the deadline has passed or is not a real date, return empty string ""
- "conference_dates": When the conference takes place (e.g. "September 4-5, %[1]d")
- "location": Where the conference is held (city, country, or institution)
- "keynote_speakers": Names of keynote/invited/plenary speakers, comma-separated
- "description": A 1-2 sentence summary of what the conference is about
- "topics": Broad research fields (max 25 words total). Use short general category names like "labor economics, development, trade" - not specific paper titles or session names

Conference title: %[2]s

Page text:
%[3]s`, year, title, clip(pageText, extractionTextLimit))
}

func relevancePrompt(title, pageText string, filter domain.TopicFilter) string {
	var criteria strings.Builder
	if filter.Include != "" {
		fmt.Fprintf(&criteria, "Topics to INCLUDE: %s\n", filter.Include)
	}
	if filter.Exclude != "" {
		fmt.Fprintf(&criteria, "Topics to EXCLUDE: %s\n", filter.Exclude)
	}

	return fmt.Sprintf(`Decide if this academic conference is relevant for a researcher based on the topic filters below.
Return a JSON object: {"relevant": true/false, "reason": "<1 sentence explanation>", "detected_topics": "<comma-separated topics you identified>"}

%s
Rules:
- A conference is relevant if ANY of its topics or sessions broadly falls into at least one include topic. It does NOT need to be the primary focus - even partial overlap is enough.
- A conference is NOT relevant only if its focus is clearly and specifically on an exclude topic, with no meaningful overlap with include topics.
  For example: a conference on "AI in finance" or "machine learning for asset pricing" is a FINANCE conference, not a machine-learning conference - exclude it.
- Broad conferences that accept submissions from many fields (including the include topics) ARE relevant - include them.
- When in doubt, include the conference.

Conference title: %s

Page text (excerpt):
%s`, criteria.String(), title, clip(pageText, relevanceTextLimit))
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
