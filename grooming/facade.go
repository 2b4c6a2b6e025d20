/*
facade.go - Operator-facing quick and bulk actions

PURPOSE:
  Translates the agenda UI's shortcuts (finish, finish-and-paid, cancel,
  mark-paid, reschedule, bulk status change) into engine transitions.
  This is the layer that knows about subscriptions and the mark-paid
  precondition; the engine underneath allows any -> any.

BUSINESS RULES ENFORCED HERE:
  - mark_paid requires the appointment to be exactly finished (no
    pending -> paid shortcut)
  - a subscription-linked appointment may never hold finished_paid
  - authorization is a single injected predicate, not per-operation
    role checks

BULK SEMANTICS:
  BulkUpdateStatus is a best-effort loop: each id is independent, per-id
  failures (not found, no-op) never abort the batch, and the return
  value counts appointments actually changed.

RESCHEDULING:
  QuickReschedule is not a status change and skips the engine, but it
  reuses the same optimistic version counter and leaves a rescheduled
  audit entry with the old/new date-time pairs.

SEE ALSO:
  - engine.go: ApplyTransition, observer fan-out
  - types.go: Authorizer
*/
package grooming

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// QUICK ACTIONS
// =============================================================================

type QuickAction string

const (
	ActionFinish        QuickAction = "finish"
	ActionFinishAndPaid QuickAction = "finish_and_paid"
	ActionCancel        QuickAction = "cancel"
	ActionMarkPaid      QuickAction = "mark_paid"
)

// Facade orchestrates operator shortcuts on top of the engine.
type Facade struct {
	Engine       *Engine
	Appointments AppointmentStore
	Audit        AuditLog
	Authorize    Authorizer // nil allows everything

	Now func() time.Time
}

func NewFacade(engine *Engine, store Store, authorize Authorizer) *Facade {
	return &Facade{
		Engine:       engine,
		Appointments: store,
		Audit:        store,
		Authorize:    authorize,
		Now:          time.Now,
	}
}

// QuickAction applies one operator shortcut. Returns the new version.
func (f *Facade) QuickAction(ctx context.Context, id AppointmentID, action QuickAction, actor string) (int64, error) {
	if err := f.authorize(actor, string(action)); err != nil {
		return 0, err
	}

	appt, err := f.Appointments.GetAppointment(ctx, id)
	if err != nil {
		return 0, err
	}

	target, err := f.resolveAction(appt, action)
	if err != nil {
		return 0, err
	}

	return f.Engine.ApplyTransition(ctx, id, target, appt.Version, actor)
}

// SetStatus applies a caller-versioned transition to an explicit status.
// This backs the manual status dropdown: the client names the target and
// the version it last saw. The subscription restriction applies here the
// same as on the quick-action path; the engine underneath stays
// unrestricted.
func (f *Facade) SetStatus(ctx context.Context, id AppointmentID, status AppointmentStatus, version int64, actor string) (int64, error) {
	if err := f.authorize(actor, "update_status"); err != nil {
		return 0, err
	}

	if status == StatusFinishedPaid {
		appt, err := f.Appointments.GetAppointment(ctx, id)
		if err != nil {
			return 0, err
		}
		if appt.SubscriptionLinked() {
			return 0, &BusinessRuleError{
				Rule:   "subscription_no_finished_paid",
				Detail: "subscription appointments settle through their plan",
			}
		}
	}

	return f.Engine.ApplyTransition(ctx, id, status, version, actor)
}

// resolveAction maps an action tag to a target status and enforces the
// facade-level business rules. Rejections happen before any mutation.
func (f *Facade) resolveAction(appt Appointment, action QuickAction) (AppointmentStatus, error) {
	var target AppointmentStatus
	switch action {
	case ActionFinish:
		target = StatusFinished
	case ActionFinishAndPaid:
		target = StatusFinishedPaid
	case ActionCancel:
		target = StatusCanceled
	case ActionMarkPaid:
		if appt.Status != StatusFinished {
			return "", &BusinessRuleError{
				Rule:   "mark_paid_requires_finished",
				Detail: fmt.Sprintf("appointment %d is %s", appt.ID, appt.Status),
			}
		}
		target = StatusFinishedPaid
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	if target == StatusFinishedPaid && appt.SubscriptionLinked() {
		return "", &BusinessRuleError{
			Rule:   "subscription_no_finished_paid",
			Detail: "subscription appointments settle through their plan",
		}
	}
	return target, nil
}

// =============================================================================
// BULK ACTIONS
// =============================================================================

// BulkUpdateStatus applies the transition independently to each id and
// returns the count of appointments actually changed. Best effort: no
// partial atomicity across the batch.
func (f *Facade) BulkUpdateStatus(ctx context.Context, ids []AppointmentID, status AppointmentStatus, actor string) (int, error) {
	if err := f.authorize(actor, "bulk_update_status"); err != nil {
		return 0, err
	}
	if !status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	changed := 0
	for _, id := range ids {
		appt, err := f.Appointments.GetAppointment(ctx, id)
		if err != nil {
			continue // not found: skip, don't abort
		}
		if appt.Status == status {
			continue // no-op: not counted as changed
		}
		if status == StatusFinishedPaid && appt.SubscriptionLinked() {
			continue
		}
		if _, err := f.Engine.ApplyTransition(ctx, id, status, appt.Version, actor); err != nil {
			continue
		}
		changed++
	}
	return changed, nil
}

// =============================================================================
// RESCHEDULING
// =============================================================================

// QuickReschedule moves an appointment to a new date/time. Not a status
// change: it bypasses the engine but bumps the same version counter and
// records a rescheduled audit entry. A zero version means the caller did
// not track one and the current version is used; otherwise a stale
// version is rejected like any other conflicting write.
func (f *Facade) QuickReschedule(ctx context.Context, id AppointmentID, newDate time.Time, newTime string, version int64, actor string) (int64, error) {
	if err := f.authorize(actor, "reschedule"); err != nil {
		return 0, err
	}

	appt, err := f.Appointments.GetAppointment(ctx, id)
	if err != nil {
		return 0, err
	}
	if version == 0 {
		version = appt.Version
	}

	newVersion, err := f.Appointments.UpdateAppointmentSchedule(ctx, id, version, newDate, newTime)
	if err != nil {
		return 0, err
	}

	const layout = "2006-01-02"
	if err := f.Audit.AppendAudit(ctx, AuditEntry{
		ID:            uuid.NewString(),
		Timestamp:     f.now(),
		Actor:         actor,
		Action:        AuditRescheduled,
		AppointmentID: id,
		FromValue:     appt.Date.Format(layout) + " " + appt.Time,
		ToValue:       newDate.Format(layout) + " " + newTime,
		Metadata: map[string]string{
			"old_date": appt.Date.Format(layout),
			"old_time": appt.Time,
			"new_date": newDate.Format(layout),
			"new_time": newTime,
		},
	}); err != nil {
		return newVersion, err
	}

	return newVersion, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (f *Facade) authorize(actor, action string) error {
	if f.Authorize == nil {
		return nil
	}
	return f.Authorize(actor, action)
}

func (f *Facade) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}
