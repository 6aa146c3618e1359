package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/humanitylink/go-wash-reports/internal/models"
	"github.com/humanitylink/go-wash-reports/internal/nudge"
	"github.com/humanitylink/go-wash-reports/internal/repository"
)

// memStore implements repository.ReportStore in memory for testing.
type memStore struct {
	reports map[string]*models.Report
	order   []string
	failAll bool
}

func newMemStore() *memStore {
	return &memStore{reports: make(map[string]*models.Report)}
}

var errStoreDown = errors.New("store unreachable")

func (m *memStore) Create(ctx context.Context, r *models.Report) error {
	if m.failAll {
		return errStoreDown
	}
	cp := *r
	m.reports[r.ID] = &cp
	m.order = append(m.order, r.ID)
	return nil
}

func (m *memStore) Update(ctx context.Context, id string, patch repository.ReportPatch) error {
	if m.failAll {
		return errStoreDown
	}
	r, ok := m.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Status != nil {
		r.Status = *patch.Status
	}
	if patch.Observation != nil {
		r.Observation = *patch.Observation
	}
	if patch.Assessment != nil {
		r.Assessment = *patch.Assessment
	}
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (*models.Report, error) {
	if m.failAll {
		return nil, errStoreDown
	}
	r, ok := m.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) List(ctx context.Context, opts repository.Filter) ([]models.Report, error) {
	var out []models.Report
	for _, id := range m.order {
		out = append(out, *m.reports[id])
	}
	return out, nil
}

func (m *memStore) FindActive(ctx context.Context, key models.FacilityKey) (*models.Report, error) {
	if m.failAll {
		return nil, errStoreDown
	}
	for _, id := range m.order {
		r := m.reports[id]
		if r.Key() == key && r.Status.Active() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) SetNudges(ctx context.Context, id string, nudges []models.Nudge) error {
	if m.failAll {
		return errStoreDown
	}
	r, ok := m.reports[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Nudges = nudges
	return nil
}

func testController(store repository.ReportStore) *Controller {
	c := NewController(store)
	n := 0
	c.newID = func() string {
		n++
		return string(rune('a' + n - 1))
	}
	return c
}

func brokenToilet(zone, facility string) *models.Observation {
	return &models.Observation{
		Kind:       models.FacilityToilet,
		Zone:       zone,
		FacilityID: facility,
		Functional: models.FunctionalNo,
		Toilet: &models.ToiletDetails{
			ReasonsUnusable: []models.ToiletFailure{models.ToiletCollapsed},
		},
	}
}

func limitedToilet(zone, facility string) *models.Observation {
	return &models.Observation{
		Kind:       models.FacilityToilet,
		Zone:       zone,
		FacilityID: facility,
		Functional: models.FunctionalLimited,
	}
}

func TestSubmit_NoActiveReportCreates(t *testing.T) {
	store := newMemStore()
	c := testController(store)
	ctx := context.Background()

	outcome, err := c.Submit(ctx, limitedToilet("Zone A", "Toilet Block 1"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if outcome.Conflict != nil {
		t.Fatalf("unexpected conflict: %+v", outcome.Conflict)
	}
	if outcome.Report == nil {
		t.Fatal("expected a created report")
	}
	// base 25 -> MEDIUM -> Pending
	if outcome.Report.Status != models.StatusPending {
		t.Errorf("status = %s, want Pending", outcome.Report.Status)
	}
	if len(store.reports) != 1 {
		t.Errorf("expected 1 stored report, got %d", len(store.reports))
	}
}

func TestSubmit_CriticalStartsInProgress(t *testing.T) {
	store := newMemStore()
	c := testController(store)

	obs := brokenToilet("Zone A", "Toilet Block 1")
	obs.UsersPerDay = models.Usage100Plus

	outcome, err := c.Submit(context.Background(), obs)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if outcome.Report.Assessment.Priority != models.PriorityCritical {
		t.Fatalf("expected CRITICAL, got %s", outcome.Report.Assessment.Priority)
	}
	if outcome.Report.Status != models.StatusInProgress {
		t.Errorf("status = %s, want InProgress", outcome.Report.Status)
	}
}

func TestSubmit_MissingGateRejected(t *testing.T) {
	c := testController(newMemStore())

	_, err := c.Submit(context.Background(), &models.Observation{
		Kind: models.FacilityToilet,
		Zone: "Zone A",
	})
	if !errors.Is(err, ErrInvalidObservation) {
		t.Fatalf("expected ErrInvalidObservation, got %v", err)
	}
}

func TestSubmit_DuplicateSurfacesConflict(t *testing.T) {
	store := newMemStore()
	c := testController(store)
	ctx := context.Background()

	first, err := c.Submit(ctx, limitedToilet("Zone A", "Toilet Block 1"))
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	second, err := c.Submit(ctx, brokenToilet("Zone A", "Toilet Block 1"))
	if err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}
	if second.Report != nil {
		t.Error("conflicting submit must not create a report")
	}
	if second.Conflict == nil || second.Conflict.ID != first.Report.ID {
		t.Fatalf("expected conflict with %s, got %+v", first.Report.ID, second.Conflict)
	}

	// A different facility is not a conflict.
	other, err := c.Submit(ctx, limitedToilet("Zone A", "Toilet Block 2"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if other.Conflict != nil {
		t.Error("different facility key must not conflict")
	}
}

func TestSubmit_ResolvedReportDoesNotConflict(t *testing.T) {
	store := newMemStore()
	c := testController(store)
	ctx := context.Background()

	first, _ := c.Submit(ctx, limitedToilet("Zone A", "Toilet Block 1"))

	// Walk the first report to Resolved.
	if err := c.AdvanceStatus(ctx, first.Report.ID, models.StatusResolved); err != nil {
		t.Fatalf("AdvanceStatus failed: %v", err)
	}

	third, err := c.Submit(ctx, limitedToilet("Zone A", "Toilet Block 1"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if third.Conflict != nil {
		t.Fatal("resolved report must not trigger reconciliation")
	}
	if third.Report == nil {
		t.Fatal("expected an independent fresh report")
	}
}

func TestUpdateExisting_ArchivesSnapshotAndOverwrites(t *testing.T) {
	store := newMemStore()
	c := testController(store)
	ctx := context.Background()

	first, _ := c.Submit(ctx, limitedToilet("Zone A", "Toilet Block 1"))
	originalID := first.Report.ID

	newObs := brokenToilet("Zone A", "Toilet Block 1")
	newObs.UsersPerDay = models.Usage100Plus

	updated, err := c.UpdateExisting(ctx, originalID, newObs)
	if err != nil {
		t.Fatalf("UpdateExisting failed: %v", err)
	}

	// Live report keeps its id, carries the new data, re-derived status.
	if updated.ID != originalID {
		t.Errorf("live report id changed: %s", updated.ID)
	}
	if updated.Status != models.StatusInProgress {
		t.Errorf("status = %s, want InProgress for CRITICAL", updated.Status)
	}

	live, _ := store.Get(ctx, originalID)
	if live.Observation.Functional != models.FunctionalNo {
		t.Errorf("observation not overwritten: %+v", live.Observation)
	}

	// Old data survives as an archived snapshot under a new id.
	var snapshot *models.Report
	for _, r := range store.reports {
		if r.ID != originalID && r.Status == models.StatusArchived {
			snapshot = r
		}
	}
	if snapshot == nil {
		t.Fatal("expected an archived snapshot")
	}
	if snapshot.Observation.Functional != models.FunctionalLimited {
		t.Errorf("snapshot carries wrong observation: %+v", snapshot.Observation)
	}

	// The archived snapshot must not count as active.
	active, _ := c.Check(ctx, newObs.Key())
	if active == nil || active.ID != originalID {
		t.Errorf("active report = %+v, want live %s", active, originalID)
	}
}

func TestSubmitNew_ArchivesOldCreatesFresh(t *testing.T) {
	store := newMemStore()
	c := testController(store)
	ctx := context.Background()

	first, _ := c.Submit(ctx, limitedToilet("Zone A", "Toilet Block 1"))

	fresh, err := c.SubmitNew(ctx, first.Report.ID, brokenToilet("Zone A", "Toilet Block 1"))
	if err != nil {
		t.Fatalf("SubmitNew failed: %v", err)
	}
	if fresh.ID == first.Report.ID {
		t.Error("expected a brand-new report id")
	}

	old, _ := store.Get(ctx, first.Report.ID)
	if old.Status != models.StatusArchived {
		t.Errorf("old report status = %s, want Archived", old.Status)
	}

	active, _ := c.Check(ctx, fresh.Key())
	if active == nil || active.ID != fresh.ID {
		t.Errorf("active report = %+v, want %s", active, fresh.ID)
	}
}

func TestEscalate_ThrottledPerUserPerDay(t *testing.T) {
	store := newMemStore()
	c := testController(store)
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	first, _ := c.Submit(ctx, limitedToilet("Zone A", "Toilet Block 1"))
	id := first.Report.ID

	if err := c.Escalate(ctx, id, "user-1"); err != nil {
		t.Fatalf("first escalate failed: %v", err)
	}

	err := c.Escalate(ctx, id, "user-1")
	if !errors.Is(err, nudge.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}

	got, _ := store.Get(ctx, id)
	if len(got.Nudges) != 1 {
		t.Errorf("expected 1 nudge, got %d", len(got.Nudges))
	}

	// Next day the same user may nudge again.
	now = now.AddDate(0, 0, 1)
	if err := c.Escalate(ctx, id, "user-1"); err != nil {
		t.Fatalf("next-day escalate failed: %v", err)
	}
	got, _ = store.Get(ctx, id)
	if len(got.Nudges) != 2 {
		t.Errorf("expected 2 nudges, got %d", len(got.Nudges))
	}
}

func TestAdvanceStatus_ForwardOnly(t *testing.T) {
	store := newMemStore()
	c := testController(store)
	ctx := context.Background()

	first, _ := c.Submit(ctx, limitedToilet("Zone A", "Toilet Block 1"))
	id := first.Report.ID

	if err := c.AdvanceStatus(ctx, id, models.StatusInProgress); err != nil {
		t.Fatalf("forward move failed: %v", err)
	}

	// Backwards is rejected.
	err := c.AdvanceStatus(ctx, id, models.StatusPending)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Archived is not reachable through status edits.
	err = c.AdvanceStatus(ctx, id, models.StatusArchived)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for Archived, got %v", err)
	}

	if err := c.AdvanceStatus(ctx, id, models.StatusResolved); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// Resolved is terminal.
	err = c.AdvanceStatus(ctx, id, models.StatusResolved)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from Resolved, got %v", err)
	}
}

func TestSubmit_StoreFailurePropagates(t *testing.T) {
	store := newMemStore()
	store.failAll = true
	c := testController(store)

	_, err := c.Submit(context.Background(), limitedToilet("Zone A", "Toilet Block 1"))
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
}
