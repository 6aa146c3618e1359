package repository

import (
	"context"
	"errors"

	"github.com/humanitylink/go-wash-reports/internal/models"
)

// ErrNotFound is returned when a report or volunteer id does not exist.
var ErrNotFound = errors.New("not found")

type Filter struct {
	Limit       int
	Zone        string
	Kind        *models.FacilityKind
	Status      *models.ReportStatus
	MinPriority *models.Priority // >= this priority (e.g. HIGH includes HIGH and CRITICAL)
	ActiveOnly  bool             // exclude Resolved and Archived
}

// ReportPatch is a partial update. Nil fields are left untouched.
type ReportPatch struct {
	Status      *models.ReportStatus
	Observation *models.Observation
	Assessment  *models.RiskAssessment
}

// ReportStore is the narrow persistence surface the reconciliation layer
// needs. Writes are assumed at-least-once with eventual read visibility;
// there is no atomicity across a check-then-write sequence.
type ReportStore interface {
	Create(ctx context.Context, r *models.Report) error
	Update(ctx context.Context, id string, patch ReportPatch) error
	Get(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, opts Filter) ([]models.Report, error)
	// FindActive returns the unresolved report for a facility key, or nil
	// when every report for the key is Resolved or Archived.
	FindActive(ctx context.Context, key models.FacilityKey) (*models.Report, error)
	SetNudges(ctx context.Context, id string, nudges []models.Nudge) error
}

// VolunteerStore holds the slice of user profiles the reminder flow
// touches.
type VolunteerStore interface {
	GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error)
	PutVolunteer(ctx context.Context, v *models.Volunteer) error
}
