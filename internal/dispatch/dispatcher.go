// Package dispatch drives a submission through the online path and falls
// back to the compact SMS channel when the store cannot be reached in
// time. The synchronous write gets one attempt bounded by a fixed
// timeout, no backoff; on expiry the observation is encoded for
// out-of-band delivery and the original write is retried once in the
// background.
//
// If that delayed write later succeeds after the SMS copy was already
// sent, both may land: the receiving side's duplicate check folds the
// pair into the normal conflict flow, and nothing else reconciles them.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/humanitylink/go-wash-reports/internal/models"
	"github.com/humanitylink/go-wash-reports/internal/reconcile"
	"github.com/humanitylink/go-wash-reports/internal/smscodec"
	"github.com/humanitylink/go-wash-reports/internal/worker"
)

// MessageSender delivers a compact message over the out-of-band channel
// (the device SMS radio in the field app). Implementations live outside
// the core.
type MessageSender interface {
	Send(ctx context.Context, to, body string) error
}

// Result describes where a submission ended up. Exactly one of the three
// shapes holds:
//   - Report set, Fallback empty: stored online.
//   - Conflict set: an active report exists, caller picks a resolution.
//   - Report and Fallback set: the store was unreachable; the compact
//     message was dispatched and the write queued for a background retry.
type Result struct {
	Report   *models.Report `json:"report,omitempty"`
	Conflict *models.Report `json:"conflict,omitempty"`
	Fallback string         `json:"fallback,omitempty"`
}

// Offline reports whether the submission took the fallback path.
func (r Result) Offline() bool { return r.Fallback != "" }

type Dispatcher struct {
	ctrl    *reconcile.Controller
	sender  MessageSender
	pool    *worker.Pool
	timeout time.Duration
	gateway string
}

func NewDispatcher(ctrl *reconcile.Controller, sender MessageSender, pool *worker.Pool, timeout time.Duration, gateway string) *Dispatcher {
	return &Dispatcher{
		ctrl:    ctrl,
		sender:  sender,
		pool:    pool,
		timeout: timeout,
		gateway: gateway,
	}
}

// Submit attempts the online path within the allotted window and falls
// back to the SMS channel on timeout or store failure. The fallback is a
// defined outcome, not an error.
func (d *Dispatcher) Submit(ctx context.Context, obs *models.Observation) (Result, error) {
	report, err := d.ctrl.Build(obs)
	if err != nil {
		return Result{}, err
	}

	writeCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	existing, err := d.ctrl.Check(writeCtx, obs.Key())
	if err != nil {
		// Store unreachable: the duplicate check is impossible, so the
		// receiving side has to run it when the message arrives.
		return d.fallback(ctx, report), nil
	}
	if existing != nil {
		return Result{Conflict: existing}, nil
	}

	if err := d.ctrl.Create(writeCtx, report); err != nil {
		return d.fallback(ctx, report), nil
	}
	return Result{Report: report}, nil
}

func (d *Dispatcher) fallback(ctx context.Context, report *models.Report) Result {
	msg := smscodec.Encode(&report.Observation)

	if err := d.sender.Send(ctx, d.gateway, msg); err != nil {
		slog.Error("fallback message send failed", "facility", report.FacilityID, "error", err)
	} else {
		slog.Info("submission dispatched via fallback channel", "facility", report.FacilityID, "to", d.gateway)
	}

	// One async retry of the original write, then give up.
	d.pool.Submit(func(ctx context.Context) error {
		if err := d.ctrl.Create(ctx, report); err != nil {
			slog.Warn("deferred report write failed", "id", report.ID, "error", err)
			return err
		}
		slog.Info("deferred report write succeeded", "id", report.ID)
		return nil
	})

	return Result{Report: report, Fallback: msg}
}
