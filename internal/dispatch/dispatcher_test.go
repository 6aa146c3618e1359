package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/humanitylink/go-wash-reports/internal/models"
	"github.com/humanitylink/go-wash-reports/internal/reconcile"
	"github.com/humanitylink/go-wash-reports/internal/repository"
	"github.com/humanitylink/go-wash-reports/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// flakyStore is an in-memory store whose writes can be forced to fail.
type flakyStore struct {
	mu       sync.Mutex
	reports  map[string]*models.Report
	failNext int // fail this many calls before recovering
}

func newFlakyStore() *flakyStore {
	return &flakyStore{reports: make(map[string]*models.Report)}
}

var errUnreachable = errors.New("store unreachable")

func (s *flakyStore) failing() bool {
	if s.failNext > 0 {
		s.failNext--
		return true
	}
	return false
}

func (s *flakyStore) Create(ctx context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing() {
		return errUnreachable
	}
	cp := *r
	s.reports[r.ID] = &cp
	return nil
}

func (s *flakyStore) Update(ctx context.Context, id string, patch repository.ReportPatch) error {
	return nil
}

func (s *flakyStore) Get(ctx context.Context, id string) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *flakyStore) List(ctx context.Context, opts repository.Filter) ([]models.Report, error) {
	return nil, nil
}

func (s *flakyStore) FindActive(ctx context.Context, key models.FacilityKey) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing() {
		return nil, errUnreachable
	}
	for _, r := range s.reports {
		if r.Key() == key && r.Status.Active() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *flakyStore) SetNudges(ctx context.Context, id string, nudges []models.Nudge) error {
	return nil
}

func (s *flakyStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	to   []string
	err  error
}

func (r *recordingSender) Send(ctx context.Context, to, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.to = append(r.to, to)
	r.sent = append(r.sent, body)
	return nil
}

func (r *recordingSender) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func testObservation() *models.Observation {
	return &models.Observation{
		Kind:       models.FacilityToilet,
		Zone:       "Zone A",
		FacilityID: "Toilet Block 1",
		Functional: models.FunctionalLimited,
	}
}

func setupDispatcher(t *testing.T, store repository.ReportStore, sender MessageSender) (*Dispatcher, func()) {
	pool := worker.NewPool(1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	d := NewDispatcher(reconcile.NewController(store), sender, pool, 200*time.Millisecond, "5551234")

	return d, func() {
		cancel()
		pool.Stop()
	}
}

func TestSubmit_OnlinePath(t *testing.T) {
	store := newFlakyStore()
	sender := &recordingSender{}
	d, stop := setupDispatcher(t, store, sender)
	defer stop()

	res, err := d.Submit(context.Background(), testObservation())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Offline() {
		t.Fatalf("expected online delivery, got fallback %q", res.Fallback)
	}
	if res.Report == nil || store.count() != 1 {
		t.Errorf("report not stored: %+v", res)
	}
	if len(sender.messages()) != 0 {
		t.Errorf("no SMS expected on the online path, got %v", sender.messages())
	}
}

func TestSubmit_ConflictShortCircuits(t *testing.T) {
	store := newFlakyStore()
	sender := &recordingSender{}
	d, stop := setupDispatcher(t, store, sender)
	defer stop()

	ctx := context.Background()
	first, err := d.Submit(ctx, testObservation())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	second, err := d.Submit(ctx, testObservation())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if second.Conflict == nil || second.Conflict.ID != first.Report.ID {
		t.Fatalf("expected conflict with %s, got %+v", first.Report.ID, second)
	}
	if store.count() != 1 {
		t.Errorf("conflicting submit must not write, got %d reports", store.count())
	}
}

func TestSubmit_StoreDownFallsBackToSMS(t *testing.T) {
	store := newFlakyStore()
	store.failNext = 1 // duplicate check fails, store treated as down
	sender := &recordingSender{}
	d, stop := setupDispatcher(t, store, sender)
	defer stop()

	res, err := d.Submit(context.Background(), testObservation())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Offline() {
		t.Fatal("expected fallback outcome")
	}
	if res.Fallback != "WASH ZA T1 101110-" {
		t.Errorf("fallback message = %q", res.Fallback)
	}

	msgs := sender.messages()
	if len(msgs) != 1 || msgs[0] != res.Fallback {
		t.Errorf("sender got %v, want the fallback message", msgs)
	}

	// The deferred write retries once and lands after recovery.
	deadline := time.After(2 * time.Second)
	for store.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("deferred write never landed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSubmit_SenderFailureStillReturnsFallback(t *testing.T) {
	store := newFlakyStore()
	store.failNext = 2
	sender := &recordingSender{err: errors.New("no radio")}
	d, stop := setupDispatcher(t, store, sender)
	defer stop()

	res, err := d.Submit(context.Background(), testObservation())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Offline() {
		t.Fatal("expected fallback outcome even when the radio is down")
	}
}
