/*
sync.go - Appointment <-> ledger synchronizer

PURPOSE:
  Keeps an appointment's status and its owned ledger transaction in
  lock-step. Propagation is event-triggered, never read-triggered, and
  runs within the same request as the mutation that caused it.

FORWARD DIRECTION (appointment -> ledger), on every status change:
  finished_paid -> transaction paid
  finished      -> transaction open   (serviced but not yet settled)
  canceled      -> transaction canceled, only if one already exists
  pending       -> no ledger effect

  The first transition into finished/finished_paid with no existing
  transaction materializes one: value from the pricing collaborator's
  total-at-booking, category "Service", kind revenue, date from the
  appointment (fallback: today), description from service names and pet
  name. Afterwards the same transaction is updated in place; exactly one
  active transaction per appointment.

REVERSE DIRECTION (ledger -> appointment):
  Manual ledger edits and partial-payment settlement push back:
  paid -> finished_paid (subscription appointments are left untouched),
  canceled -> canceled, open -> finished.

LOOP GUARD:
  Each direction performs the other side's write DIRECTLY against the
  store instead of re-emitting the event type it is handling. A ledger
  write caused by a status change can therefore never re-trigger the
  status-change path, and vice versa.

SEE ALSO:
  - payments.go: Settlement recomputation calls back into this file
  - engine.go: Emits the forward-direction events
*/
package grooming

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SYNCHRONIZER
// =============================================================================

// Synchronizer enforces the appointment/ledger consistency rules.
type Synchronizer struct {
	Appointments AppointmentStore
	Ledger       LedgerStore
	Audit        AuditLog
	Pricing      Pricing
	Notifier     PaidNotifier // optional

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewSynchronizer(store Store, pricing Pricing, notifier PaidNotifier) *Synchronizer {
	return &Synchronizer{
		Appointments: store,
		Ledger:       store,
		Audit:        store,
		Pricing:      pricing,
		Notifier:     notifier,
		Now:          time.Now,
	}
}

// =============================================================================
// FORWARD DIRECTION - Appointment status change drives the ledger
// =============================================================================

// HandleStatusChanged implements StatusObserver.
func (s *Synchronizer) HandleStatusChanged(ctx context.Context, ev StatusChanged) error {
	switch ev.NewStatus {
	case StatusPending:
		// An appointment not yet serviced has no settlement implication.
		// If no transaction exists, none is created.
		return nil

	case StatusCanceled:
		tx, ok, err := s.Ledger.TransactionByAppointment(ctx, ev.AppointmentID)
		if err != nil {
			return err
		}
		if !ok {
			// Canceling never creates a transaction.
			return nil
		}
		if tx.Status == TxCanceled {
			return nil
		}
		return s.Ledger.SetTransactionStatus(ctx, tx.ID, TxCanceled)

	case StatusFinished, StatusFinishedPaid:
		target := TxOpen
		if ev.NewStatus == StatusFinishedPaid {
			target = TxPaid
		}
		return s.projectToLedger(ctx, ev.AppointmentID, target)

	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, ev.NewStatus)
	}
}

// projectToLedger creates or updates the appointment's owned transaction
// so its status becomes target. Emits BookingPaid exactly once per
// transition into paid.
func (s *Synchronizer) projectToLedger(ctx context.Context, id AppointmentID, target TransactionStatus) error {
	appt, err := s.Appointments.GetAppointment(ctx, id)
	if err != nil {
		return err
	}

	tx, ok, err := s.Ledger.TransactionByAppointment(ctx, id)
	if err != nil {
		return err
	}

	wasPaid := ok && tx.Status == TxPaid

	if !ok {
		tx, err = s.materializeTransaction(ctx, appt, target)
		if err != nil {
			return err
		}
	} else {
		// Update in place, never duplicate: exactly one active
		// transaction per appointment.
		tx.Status = target
		tx.Date = transactionDate(appt, s.now())
		tx.Description = describeAppointment(appt)
		if total, err := s.Pricing.TotalAtBooking(ctx, appt.ID); err == nil && total > 0 {
			tx.Value = total
		}
		if err := s.Ledger.UpdateTransaction(ctx, tx); err != nil {
			return err
		}
	}

	if target == TxPaid && !wasPaid && s.Notifier != nil {
		s.Notifier.BookingPaid(BookingPaid{
			AppointmentID: id,
			ClientID:      appt.ClientID,
			Amount:        tx.Value,
		})
	}
	return nil
}

// materializeTransaction creates the ledger record on the first transition
// into finished/finished_paid.
func (s *Synchronizer) materializeTransaction(ctx context.Context, appt Appointment, status TransactionStatus) (Transaction, error) {
	total, err := s.Pricing.TotalAtBooking(ctx, appt.ID)
	if err != nil {
		return Transaction{}, fmt.Errorf("pricing lookup for appointment %d: %w", appt.ID, err)
	}

	tx := Transaction{
		ClientID:      appt.ClientID,
		AppointmentID: appt.ID,
		Date:          transactionDate(appt, s.now()),
		Value:         total,
		Category:      "Service",
		Kind:          KindRevenue,
		Status:        status,
		Description:   describeAppointment(appt),
		CreatedAt:     s.now(),
	}

	id, err := s.Ledger.InsertTransaction(ctx, tx)
	if err != nil {
		return Transaction{}, err
	}
	tx.ID = id
	return tx, nil
}

// =============================================================================
// REVERSE DIRECTION - Ledger edits drive the appointment
// =============================================================================

// ApplyLedgerStatus handles a manual status edit from the finance UI and
// propagates it to the owning appointment, if any.
func (s *Synchronizer) ApplyLedgerStatus(ctx context.Context, id TransactionID, newStatus TransactionStatus, actor string) (Transaction, error) {
	if !newStatus.Valid() {
		return Transaction{}, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	tx, err := s.Ledger.GetTransaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	if tx.Status == newStatus {
		return tx, nil
	}

	if err := s.Ledger.SetTransactionStatus(ctx, id, newStatus); err != nil {
		return Transaction{}, err
	}
	tx.Status = newStatus

	if tx.AppointmentID != 0 {
		if err := s.pushToAppointment(ctx, tx, actor); err != nil {
			return tx, err
		}
	}
	return tx, nil
}

// pushToAppointment writes the appointment side directly through the
// store. Deliberately NOT routed through Engine.ApplyTransition: that
// would re-emit a status-changed event and loop back into this file.
func (s *Synchronizer) pushToAppointment(ctx context.Context, tx Transaction, actor string) error {
	appt, err := s.Appointments.GetAppointment(ctx, tx.AppointmentID)
	if err != nil {
		if IsNotFound(err) {
			// Appointment already removed by an admin cascade; the
			// transaction stands on its own.
			return nil
		}
		return err
	}

	var target AppointmentStatus
	switch tx.Status {
	case TxPaid:
		if appt.SubscriptionLinked() {
			// Subscriptions settle through a different channel; the
			// appointment side is left untouched.
			return nil
		}
		target = StatusFinishedPaid
	case TxCanceled:
		target = StatusCanceled
	default:
		target = StatusFinished
	}

	if appt.Status == target {
		return nil
	}

	if _, err := s.Appointments.UpdateAppointmentStatus(ctx, appt.ID, appt.Version, target); err != nil {
		return err
	}

	return s.Audit.AppendAudit(ctx, AuditEntry{
		ID:            uuid.NewString(),
		Timestamp:     s.now(),
		Actor:         actor,
		Action:        AuditStatusChange,
		AppointmentID: appt.ID,
		TransactionID: tx.ID,
		FromValue:     string(appt.Status),
		ToValue:       string(target),
		Metadata:      map[string]string{"source": "ledger"},
	})
}

// =============================================================================
// SETTLEMENT - Called by the payment service after posting/deleting partials
// =============================================================================

// Settled reports whether the accumulated sum settles the transaction
// value within the one-minor-unit tolerance.
func Settled(value, sum int64) bool {
	return sum >= value-SettlementTolerance
}

// ReconcileSettlement aligns the transaction status with the given
// partials sum: settled -> paid, otherwise -> open (demoting a paid
// transaction whose installments no longer cover it). The appointment
// side cascades through the reverse-direction rules.
func (s *Synchronizer) ReconcileSettlement(ctx context.Context, tx Transaction, sum int64, actor string) (TransactionStatus, error) {
	target := TxOpen
	if Settled(tx.Value, sum) {
		target = TxPaid
	}
	if tx.Status == target {
		return target, nil
	}
	if _, err := s.ApplyLedgerStatus(ctx, tx.ID, target, actor); err != nil {
		return tx.Status, err
	}
	return target, nil
}

// =============================================================================
// STORED PRICING - Default Pricing backed by the appointment record
// =============================================================================

// StoredPricing reads the total the booking collaborator pre-computed and
// saved on the appointment. Swappable for a live pricing service.
type StoredPricing struct {
	Appointments AppointmentStore
}

func (p StoredPricing) TotalAtBooking(ctx context.Context, id AppointmentID) (int64, error) {
	appt, err := p.Appointments.GetAppointment(ctx, id)
	if err != nil {
		return 0, err
	}
	return appt.BookedTotal, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func transactionDate(appt Appointment, fallback time.Time) time.Time {
	if appt.Date.IsZero() {
		return fallback
	}
	return appt.Date
}

// describeAppointment assembles the transaction description from the
// collaborator-provided display strings, e.g. "Bath + Trim - Rex".
func describeAppointment(appt Appointment) string {
	services := strings.Join(appt.ServiceNames, " + ")
	switch {
	case services == "" && appt.PetName == "":
		return "Service"
	case services == "":
		return "Service - " + appt.PetName
	case appt.PetName == "":
		return services
	default:
		return services + " - " + appt.PetName
	}
}

func (s *Synchronizer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
