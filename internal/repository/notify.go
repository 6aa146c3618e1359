package repository

import (
	"context"
	"log/slog"

	"github.com/humanitylink/go-wash-reports/internal/models"
	"github.com/humanitylink/go-wash-reports/internal/stream"
)

// NotifyingStore decorates a ReportStore with live change notifications,
// giving callers the create/update/get/subscribe surface in one place.
type NotifyingStore struct {
	ReportStore
	feed *stream.Broadcaster
}

func NewNotifyingStore(inner ReportStore, feed *stream.Broadcaster) *NotifyingStore {
	return &NotifyingStore{ReportStore: inner, feed: feed}
}

func (s *NotifyingStore) Create(ctx context.Context, r *models.Report) error {
	if err := s.ReportStore.Create(ctx, r); err != nil {
		return err
	}
	s.feed.Broadcast(stream.Event{Kind: stream.ChangeCreated, Report: r})
	return nil
}

func (s *NotifyingStore) Update(ctx context.Context, id string, patch ReportPatch) error {
	if err := s.ReportStore.Update(ctx, id, patch); err != nil {
		return err
	}
	s.notifyUpdated(ctx, id)
	return nil
}

func (s *NotifyingStore) SetNudges(ctx context.Context, id string, nudges []models.Nudge) error {
	if err := s.ReportStore.SetNudges(ctx, id, nudges); err != nil {
		return err
	}
	s.notifyUpdated(ctx, id)
	return nil
}

func (s *NotifyingStore) notifyUpdated(ctx context.Context, id string) {
	r, err := s.ReportStore.Get(ctx, id)
	if err != nil {
		// The write went through; a missed notification is not a failure.
		slog.Warn("could not load report for change notification", "id", id, "error", err)
		return
	}
	s.feed.Broadcast(stream.Event{Kind: stream.ChangeUpdated, Report: r})
}

// Subscribe opens a live stream of report changes. The caller must
// Unsubscribe with the returned id when done.
func (s *NotifyingStore) Subscribe() (uint64, chan stream.Event) {
	return s.feed.Subscribe()
}

// Unsubscribe closes the stream registered under id.
func (s *NotifyingStore) Unsubscribe(id uint64) {
	s.feed.Unsubscribe(id)
}
