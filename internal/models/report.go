package models

import "time"

// Priority is the discrete urgency class derived from a risk score.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// RiskAssessment is the output of the risk classifier: a clamped score,
// the priority it maps to, and one human-readable line per triggered rule
// in evaluation order.
type RiskAssessment struct {
	Score     int      `json:"score"`
	Priority  Priority `json:"priority"`
	Reasoning []string `json:"reasoning"`
}

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	StatusPending      ReportStatus = "Pending"
	StatusAcknowledged ReportStatus = "Acknowledged"
	StatusInProgress   ReportStatus = "InProgress"
	StatusResolved     ReportStatus = "Resolved"
	StatusArchived     ReportStatus = "Archived"
)

// Active reports whether the status still counts for duplicate detection
// and live risk aggregation. Resolved and Archived are both terminal.
func (s ReportStatus) Active() bool {
	return s != StatusResolved && s != StatusArchived
}

var statusRank = map[ReportStatus]int{
	StatusPending:      0,
	StatusAcknowledged: 1,
	StatusInProgress:   2,
	StatusResolved:     3,
}

// CanAdvanceTo reports whether an NGO status edit from s to next is a
// forward move within Pending -> Acknowledged -> InProgress -> Resolved.
// Archived is never reachable through status edits.
func (s ReportStatus) CanAdvanceTo(next ReportStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// Nudge is one escalation entry on a report.
type Nudge struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is a stored facility report: the observation, its assessment, and
// the lifecycle bookkeeping around it. At most one report per facility key
// should be active at a time; that invariant is enforced by the
// reconciliation layer, not the store.
type Report struct {
	ID          string         `json:"id"`
	Kind        FacilityKind   `json:"kind"`
	Zone        string         `json:"zone"`
	FacilityID  string         `json:"facility_id"`
	Status      ReportStatus   `json:"status"`
	Observation Observation    `json:"observation"`
	Assessment  RiskAssessment `json:"assessment"`
	Nudges      []Nudge        `json:"nudges,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Key returns the facility key of the report.
func (r *Report) Key() FacilityKey {
	return FacilityKey{Zone: r.Zone, FacilityID: r.FacilityID, Kind: r.Kind}
}

// Reminder is one "remember to submit your daily log" entry on a
// volunteer profile. Same shape as a report nudge, different target.
type Reminder struct {
	SenderID  string    `json:"sender_id"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Volunteer is the slice of a user profile the reminder flow needs.
type Volunteer struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Reminders []Reminder `json:"reminders,omitempty"`
}
