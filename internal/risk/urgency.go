package risk

import "strings"

// Urgency is the coarse classification of free-text notes used to flag
// inbound messages that mention an emergency the structured fields
// cannot capture.
type Urgency string

const (
	UrgencyNormal   Urgency = "Normal"
	UrgencyHigh     Urgency = "High"
	UrgencyCritical Urgency = "Critical"
)

var (
	criticalKeywords = []string{"cholera", "dead", "dying", "outbreak", "emergency", "blood", "severe", "critical"}
	highKeywords     = []string{"sick", "vomit", "diarrhea", "broken", "leak", "contaminated", "urgent", "fail"}
)

// NoteUrgency scans free text for emergency keywords. Purely heuristic;
// it never downgrades anything, only flags text for human attention.
func NoteUrgency(text string) Urgency {
	lower := strings.ToLower(text)

	for _, k := range criticalKeywords {
		if strings.Contains(lower, k) {
			return UrgencyCritical
		}
	}
	for _, k := range highKeywords {
		if strings.Contains(lower, k) {
			return UrgencyHigh
		}
	}
	return UrgencyNormal
}
