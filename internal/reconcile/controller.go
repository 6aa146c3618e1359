// Package reconcile enforces the one-active-report-per-facility rule.
// Every submission is checked against the store for an existing
// unresolved report on the same (zone, facility, kind) key; a conflict is
// surfaced to the caller as an explicit choice between updating the
// existing report, archiving it in favor of a new one, or escalating it.
//
// The check-then-write sequence is not atomic: two devices submitting
// the same facility at the same moment can both see no conflict and both
// create a report. That race is an accepted consequence of the
// intermittent-connectivity field conditions this runs under.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/humanitylink/go-wash-reports/internal/models"
	"github.com/humanitylink/go-wash-reports/internal/nudge"
	"github.com/humanitylink/go-wash-reports/internal/repository"
	"github.com/humanitylink/go-wash-reports/internal/risk"
)

var (
	// ErrInvalidObservation rejects submissions missing the kind or the
	// functional-state gate. Everything else is the form's concern.
	ErrInvalidObservation = errors.New("observation missing kind or functional state")

	// ErrInvalidTransition rejects status edits that move backwards or
	// target Archived.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Controller struct {
	store repository.ReportStore
	now   func() time.Time
	newID func() string
}

func NewController(store repository.ReportStore) *Controller {
	return &Controller{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Outcome is the result of a submission: exactly one of Report (created)
// or Conflict (existing active report, caller picks a resolution) is set.
type Outcome struct {
	Report   *models.Report `json:"report,omitempty"`
	Conflict *models.Report `json:"conflict,omitempty"`
}

// Check looks for an active report on the facility key. Returns nil when
// every report for the key is Resolved or Archived.
func (c *Controller) Check(ctx context.Context, key models.FacilityKey) (*models.Report, error) {
	return c.store.FindActive(ctx, key)
}

// Build classifies an observation and assembles the report that would be
// created for it. Pure apart from id and clock.
func (c *Controller) Build(obs *models.Observation) (*models.Report, error) {
	if !obs.Kind.Valid() || !obs.Functional.Valid() {
		return nil, ErrInvalidObservation
	}

	assessment := risk.Classify(obs.Kind, obs)

	status := models.StatusPending
	if assessment.Priority == models.PriorityCritical {
		status = models.StatusInProgress
	}

	return &models.Report{
		ID:          c.newID(),
		Kind:        obs.Kind,
		Zone:        obs.Zone,
		FacilityID:  obs.FacilityID,
		Status:      status,
		Observation: *obs,
		Assessment:  assessment,
		Nudges:      []models.Nudge{},
		CreatedAt:   c.now(),
	}, nil
}

// Create persists a built report.
func (c *Controller) Create(ctx context.Context, r *models.Report) error {
	return c.store.Create(ctx, r)
}

// Submit runs the full path: duplicate check, then classify and create.
// A conflict is not an error; the caller chooses a resolution.
func (c *Controller) Submit(ctx context.Context, obs *models.Observation) (Outcome, error) {
	report, err := c.Build(obs)
	if err != nil {
		return Outcome{}, err
	}

	existing, err := c.Check(ctx, obs.Key())
	if err != nil {
		return Outcome{}, fmt.Errorf("duplicate check failed: %w", err)
	}
	if existing != nil {
		return Outcome{Conflict: existing}, nil
	}

	if err := c.store.Create(ctx, report); err != nil {
		return Outcome{}, fmt.Errorf("creating report: %w", err)
	}
	return Outcome{Report: report}, nil
}

// UpdateExisting resolves a conflict by replacing the live report's data:
// the old observation and assessment are preserved as an archived
// snapshot under a fresh id, then the live report is overwritten in
// place and its status re-derived from the new priority.
func (c *Controller) UpdateExisting(ctx context.Context, existingID string, obs *models.Observation) (*models.Report, error) {
	existing, err := c.store.Get(ctx, existingID)
	if err != nil {
		return nil, fmt.Errorf("loading existing report: %w", err)
	}

	replacement, err := c.Build(obs)
	if err != nil {
		return nil, err
	}

	snapshot := *existing
	snapshot.ID = c.newID()
	snapshot.Status = models.StatusArchived
	if err := c.store.Create(ctx, &snapshot); err != nil {
		return nil, fmt.Errorf("archiving snapshot: %w", err)
	}

	patch := repository.ReportPatch{
		Status:      &replacement.Status,
		Observation: obs,
		Assessment:  &replacement.Assessment,
	}
	if err := c.store.Update(ctx, existingID, patch); err != nil {
		return nil, fmt.Errorf("overwriting report: %w", err)
	}

	updated := *existing
	updated.Status = replacement.Status
	updated.Observation = *obs
	updated.Assessment = replacement.Assessment
	return &updated, nil
}

// SubmitNew resolves a conflict by retiring the old report (Archived) and
// creating a brand-new one for the fresh observation.
func (c *Controller) SubmitNew(ctx context.Context, existingID string, obs *models.Observation) (*models.Report, error) {
	report, err := c.Build(obs)
	if err != nil {
		return nil, err
	}

	archived := models.StatusArchived
	if err := c.store.Update(ctx, existingID, repository.ReportPatch{Status: &archived}); err != nil {
		return nil, fmt.Errorf("archiving existing report: %w", err)
	}

	if err := c.store.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}
	return report, nil
}

// Escalate resolves a conflict (or a plain "raise attention" action) by
// nudging the existing report. Returns nudge.ErrThrottled when the user
// already nudged it today; the caller must report that as a rejection,
// not a success.
func (c *Controller) Escalate(ctx context.Context, reportID, userID string) error {
	report, err := c.store.Get(ctx, reportID)
	if err != nil {
		return fmt.Errorf("loading report: %w", err)
	}

	nudges, err := nudge.Apply(report.Nudges, userID, c.now())
	if err != nil {
		return err
	}

	if err := c.store.SetNudges(ctx, reportID, nudges); err != nil {
		return fmt.Errorf("saving nudge: %w", err)
	}
	return nil
}

// AdvanceStatus applies an NGO status edit. Only forward moves within
// Pending -> Acknowledged -> InProgress -> Resolved are allowed.
func (c *Controller) AdvanceStatus(ctx context.Context, id string, next models.ReportStatus) error {
	report, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading report: %w", err)
	}

	if !report.Status.CanAdvanceTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, report.Status, next)
	}

	return c.store.Update(ctx, id, repository.ReportPatch{Status: &next})
}
