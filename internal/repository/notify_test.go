package repository

import (
	"context"
	"testing"
	"time"

	"github.com/humanitylink/go-wash-reports/internal/models"
	"github.com/humanitylink/go-wash-reports/internal/stream"
)

func setupNotifyingStore(t *testing.T) (*NotifyingStore, chan stream.Event) {
	t.Helper()
	db := setupTestDB(t)
	feed := stream.NewBroadcaster()
	t.Cleanup(feed.Close)

	store := NewNotifyingStore(db, feed)
	id, ch := store.Subscribe()
	t.Cleanup(func() { store.Unsubscribe(id) })
	return store, ch
}

func waitEvent(t *testing.T, ch chan stream.Event) stream.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
		return stream.Event{}
	}
}

func TestNotifyingStore_CreateBroadcasts(t *testing.T) {
	store, ch := setupNotifyingStore(t)
	ctx := context.Background()

	r := testReport("n1", "Zone A", "Toilet Block 1", models.StatusPending, 40)
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ev := waitEvent(t, ch)
	if ev.Kind != stream.ChangeCreated {
		t.Errorf("expected created event, got %s", ev.Kind)
	}
	if ev.Report.ID != "n1" {
		t.Errorf("expected report n1, got %s", ev.Report.ID)
	}
}

func TestNotifyingStore_UpdateBroadcastsFreshState(t *testing.T) {
	store, ch := setupNotifyingStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, testReport("n1", "Zone A", "Toilet Block 1", models.StatusPending, 40)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitEvent(t, ch) // drain the created event

	status := models.StatusAcknowledged
	if err := store.Update(ctx, "n1", ReportPatch{Status: &status}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	ev := waitEvent(t, ch)
	if ev.Kind != stream.ChangeUpdated {
		t.Errorf("expected updated event, got %s", ev.Kind)
	}
	if ev.Report.Status != models.StatusAcknowledged {
		t.Errorf("expected event to carry the new status, got %s", ev.Report.Status)
	}
}

func TestNotifyingStore_SetNudgesBroadcasts(t *testing.T) {
	store, ch := setupNotifyingStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, testReport("n1", "Zone A", "Toilet Block 1", models.StatusPending, 40)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitEvent(t, ch)

	nudges := []models.Nudge{{UserID: "u1", Timestamp: time.Now()}}
	if err := store.SetNudges(ctx, "n1", nudges); err != nil {
		t.Fatalf("SetNudges failed: %v", err)
	}

	ev := waitEvent(t, ch)
	if ev.Kind != stream.ChangeUpdated {
		t.Errorf("expected updated event, got %s", ev.Kind)
	}
	if len(ev.Report.Nudges) != 1 {
		t.Errorf("expected 1 nudge on event report, got %d", len(ev.Report.Nudges))
	}
}
