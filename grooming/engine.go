/*
engine.go - Appointment status transition engine

PURPOSE:
  Validates and applies appointment status changes under optimistic
  concurrency control, then fans the change out to observers.

TRANSITION MODEL:
  The state set is flat: {pending, finished, finished_paid, canceled},
  and the engine permits any -> any transition. Business restrictions
  (subscriptions never hold finished_paid, mark_paid requires finished)
  are enforced by the facade, which knows about subscriptions; the
  engine does not.

CONCURRENCY:
  No locks. The caller passes the version it last observed; if the
  stored version differs the transition is rejected with a
  VersionConflictError and nothing is written. The status write and the
  version increment are a single atomic store operation, so no observer
  ever sees one without the other.

OBSERVER ORDER:
  Observers run synchronously, in registration order, within the same
  request as the mutation. Registration order is fixed at wiring time:
  audit log first, then ledger synchronizer. By the time ApplyTransition
  returns, the audit trail and the ledger are both consistent.

SEE ALSO:
  - facade.go: Operator-facing orchestration on top of this engine
  - sync.go: The ledger-side observer
  - audit.go: The audit-side observer
*/
package grooming

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// OBSERVERS
// =============================================================================

// StatusObserver consumes status-changed events. Observers must not call
// back into ApplyTransition for the same event (the synchronizer writes
// the ledger side directly to avoid re-trigger loops).
type StatusObserver interface {
	HandleStatusChanged(ctx context.Context, event StatusChanged) error
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies appointment status transitions.
type Engine struct {
	Appointments AppointmentStore
	Observers    []StatusObserver

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewEngine creates an engine with observers in fan-out order.
func NewEngine(appointments AppointmentStore, observers ...StatusObserver) *Engine {
	return &Engine{
		Appointments: appointments,
		Observers:    observers,
		Now:          time.Now,
	}
}

// ApplyTransition moves an appointment to newStatus if the caller's
// expectedVersion matches the stored version.
//
// On success it returns the new version so the caller can continue
// optimistic editing. On rejection (ErrNotFound, ErrInvalidStatus,
// ErrVersionConflict) stored state is untouched and no event is emitted.
func (e *Engine) ApplyTransition(
	ctx context.Context,
	id AppointmentID,
	newStatus AppointmentStatus,
	expectedVersion int64,
	actor string,
) (int64, error) {
	if !newStatus.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	// Read current state. The store normalizes legacy version 0 to 1, so
	// expectedVersion compares against a value >= 1 for all records.
	current, err := e.Appointments.GetAppointment(ctx, id)
	if err != nil {
		return 0, err
	}

	if current.Version != expectedVersion {
		return 0, &VersionConflictError{
			AppointmentID: id,
			Expected:      expectedVersion,
			Actual:        current.Version,
		}
	}

	// Atomic status+version write. The store re-checks the version, so a
	// writer that slipped in between our read and this call is still
	// rejected cleanly.
	newVersion, err := e.Appointments.UpdateAppointmentStatus(ctx, id, expectedVersion, newStatus)
	if err != nil {
		return 0, err
	}

	event := StatusChanged{
		AppointmentID: id,
		OldStatus:     current.Status,
		NewStatus:     newStatus,
		Actor:         actor,
		At:            e.now(),
	}
	for _, obs := range e.Observers {
		if err := obs.HandleStatusChanged(ctx, event); err != nil {
			return newVersion, fmt.Errorf("status change applied but propagation failed: %w", err)
		}
	}

	return newVersion, nil
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
