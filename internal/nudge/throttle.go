// Package nudge rate-limits escalation actions: one nudge per user per
// report per calendar day. The same rule, pointed at a volunteer profile
// instead of a report, throttles the NGO "remind volunteer" flow.
package nudge

import (
	"errors"
	"time"

	"github.com/humanitylink/go-wash-reports/internal/models"
)

// ErrThrottled marks a rejected nudge. It is an expected outcome the
// caller must distinguish from success, not a failure.
var ErrThrottled = errors.New("already nudged today")

// CanNudge reports whether userID may nudge a report with the given
// escalation history at time now: true iff no prior entry from the same
// user falls on the same calendar day.
func CanNudge(history []models.Nudge, userID string, now time.Time) bool {
	for _, n := range history {
		if n.UserID == userID && sameDay(n.Timestamp, now) {
			return false
		}
	}
	return true
}

// Apply appends a nudge entry if the throttle allows it and returns the
// extended history. A throttled nudge returns the history unchanged with
// ErrThrottled.
func Apply(history []models.Nudge, userID string, now time.Time) ([]models.Nudge, error) {
	if !CanNudge(history, userID, now) {
		return history, ErrThrottled
	}
	return append(history, models.Nudge{UserID: userID, Timestamp: now}), nil
}

// CanRemind is the volunteer-reminder variant of CanNudge.
func CanRemind(history []models.Reminder, senderID string, now time.Time) bool {
	for _, r := range history {
		if r.SenderID == senderID && sameDay(r.Timestamp, now) {
			return false
		}
	}
	return true
}

// Remind appends a reminder entry under the same one-per-sender-per-day
// rule.
func Remind(history []models.Reminder, senderID, message string, now time.Time) ([]models.Reminder, error) {
	if !CanRemind(history, senderID, now) {
		return history, ErrThrottled
	}
	return append(history, models.Reminder{SenderID: senderID, Message: message, Timestamp: now}), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
