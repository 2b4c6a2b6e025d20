/*
audit.go - Audit trail observer

PURPOSE:
  Records every accepted status transition in the audit log. Registered
  as the FIRST engine observer so the trail is written before the ledger
  synchronizer runs; if ledger propagation fails mid-request, the audit
  entry still explains what was attempted.

  Other audit actions (partial_add, loyalty_credit, rescheduled,
  manual_create) are appended directly by the component performing the
  mutation; only status_change flows through this observer.

SEE ALSO:
  - store.go: AuditEntry, AuditLog, action tags
  - engine.go: Observer ordering
*/
package grooming

import (
	"context"

	"github.com/google/uuid"
)

// AuditObserver appends a status_change entry for every transition.
type AuditObserver struct {
	Audit AuditLog
}

func NewAuditObserver(audit AuditLog) *AuditObserver {
	return &AuditObserver{Audit: audit}
}

func (o *AuditObserver) HandleStatusChanged(ctx context.Context, ev StatusChanged) error {
	return o.Audit.AppendAudit(ctx, AuditEntry{
		ID:            uuid.NewString(),
		Timestamp:     ev.At,
		Actor:         ev.Actor,
		Action:        AuditStatusChange,
		AppointmentID: ev.AppointmentID,
		FromValue:     string(ev.OldStatus),
		ToValue:       string(ev.NewStatus),
	})
}
