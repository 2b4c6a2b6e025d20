/*
store.go - Persistence interfaces for appointments, ledger, and audit trail

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage; the
  domain code never sees SQL.

KEY INTERFACES:
  AppointmentStore: Appointment records with atomic version-checked writes
  LedgerStore:      Transactions and partial payments
  AuditLog:         Append-only record of every accepted mutation
  Store:            All three, for wiring convenience

OPTIMISTIC CONCURRENCY CONTRACT:
  UpdateAppointmentStatus and UpdateAppointmentSchedule are atomic
  compare-and-swap operations: the status/date write and the version
  increment land together or not at all, and a stale expected version
  yields ErrVersionConflict without touching stored state.

LEGACY VERSION COERCION:
  Records persisted before versioning carry version 0. GetAppointment
  normalizes this to 1 so every caller observes version >= 1; the
  fallback lives here and nowhere else.

PARTIAL-PAYMENT CAP:
  InsertPartialCapped validates the sum-of-installments cap and inserts
  in one atomic step, closing the stale-sum race between concurrent
  submissions against the same transaction.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - grooming/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: Uses AppointmentStore
  - sync.go, payments.go: Use LedgerStore
*/
package grooming

import (
	"context"
	"time"
)

// =============================================================================
// APPOINTMENT STORE
// =============================================================================

// AppointmentStore persists appointment records.
type AppointmentStore interface {
	// GetAppointment returns the record with its version normalized to >= 1.
	// Returns ErrNotFound if the id does not exist.
	GetAppointment(ctx context.Context, id AppointmentID) (Appointment, error)

	// PutAppointment creates or replaces a record. Used by the booking
	// collaborator and test fixtures; a zero Version is persisted as 1.
	PutAppointment(ctx context.Context, a Appointment) error

	// UpdateAppointmentStatus atomically sets status and increments version,
	// but only if the stored version equals expectedVersion. Returns the new
	// version, or ErrVersionConflict / ErrNotFound without any write.
	UpdateAppointmentStatus(ctx context.Context, id AppointmentID, expectedVersion int64, status AppointmentStatus) (int64, error)

	// UpdateAppointmentSchedule atomically sets date/time and increments
	// version under the same compare-and-swap discipline.
	UpdateAppointmentSchedule(ctx context.Context, id AppointmentID, expectedVersion int64, date time.Time, timeOfDay string) (int64, error)

	// AppointmentsByDate returns all appointments on a calendar date,
	// ordered by time-of-day. Read-only; used by the reminder cron.
	AppointmentsByDate(ctx context.Context, date time.Time) ([]Appointment, error)
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// TransactionFilter narrows ListTransactions. Nil fields match everything.
type TransactionFilter struct {
	From   *time.Time
	To     *time.Time
	Status *TransactionStatus
	Kind   *TransactionKind
}

// LedgerStore persists ledger transactions and their partial payments.
type LedgerStore interface {
	// GetTransaction returns ErrNotFound if the id does not exist.
	GetTransaction(ctx context.Context, id TransactionID) (Transaction, error)

	// TransactionByAppointment returns the transaction actively owning the
	// appointment, if any. At most one exists at a time.
	TransactionByAppointment(ctx context.Context, id AppointmentID) (Transaction, bool, error)

	// InsertTransaction persists a new transaction and returns its id.
	InsertTransaction(ctx context.Context, tx Transaction) (TransactionID, error)

	// UpdateTransaction replaces the stored fields of tx.ID.
	UpdateTransaction(ctx context.Context, tx Transaction) error

	// SetTransactionStatus updates only the status field.
	SetTransactionStatus(ctx context.Context, id TransactionID, status TransactionStatus) error

	// ListTransactions returns transactions matching the filter, ordered by
	// date then id.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)

	// DeleteTransactionByAppointment removes the owning transaction and its
	// partial payments. Only the external appointment-deletion cascade calls
	// this; the core itself never deletes ledger records.
	DeleteTransactionByAppointment(ctx context.Context, id AppointmentID) error

	// GetPartial returns ErrNotFound if the id does not exist.
	GetPartial(ctx context.Context, id PartialPaymentID) (PartialPayment, error)

	// InsertPartialCapped atomically checks that the existing sum of
	// partials plus p.Value does not exceed cap, then inserts. On breach it
	// returns (0, currentSum, ErrExceedsRemainingBalance) with no write.
	// On success it returns the new id and the new sum including p.
	InsertPartialCapped(ctx context.Context, p PartialPayment, cap int64) (PartialPaymentID, int64, error)

	// DeletePartial removes one installment.
	DeletePartial(ctx context.Context, id PartialPaymentID) error

	// PartialsByTransaction returns installments ordered by date then id.
	PartialsByTransaction(ctx context.Context, id TransactionID) ([]PartialPayment, error)

	// SumPartials returns the sum of installment values in minor units.
	SumPartials(ctx context.Context, id TransactionID) (int64, error)
}

// =============================================================================
// AUDIT LOG - Append-only, successful mutations only
// =============================================================================

type AuditAction string

const (
	AuditStatusChange  AuditAction = "status_change"
	AuditManualCreate  AuditAction = "manual_create"
	AuditPartialAdd    AuditAction = "partial_add"
	AuditLoyaltyCredit AuditAction = "loyalty_credit"
	AuditRescheduled   AuditAction = "rescheduled"
)

// HistoryFeedLimit caps the per-appointment history feed at the most
// recent entries. Older entries may be pruned from the feed but remain
// in the log.
const HistoryFeedLimit = 50

// AuditEntry records who did what when. Never mutated or deleted.
type AuditEntry struct {
	ID            string // uuid
	Timestamp     time.Time
	Actor         string
	Action        AuditAction
	AppointmentID AppointmentID // 0 when not appointment-scoped
	TransactionID TransactionID // 0 when not transaction-scoped
	FromValue     string
	ToValue       string
	Metadata      map[string]string
}

// AuditFilter narrows Query. Nil/zero fields match everything.
type AuditFilter struct {
	AppointmentID AppointmentID
	TransactionID TransactionID
	Actor         string
	Actions       []AuditAction
	From          *time.Time
	To            *time.Time
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error)

	// AppointmentHistory returns the most recent HistoryFeedLimit entries
	// for an appointment, newest first.
	AppointmentHistory(ctx context.Context, id AppointmentID) ([]AuditEntry, error)
}

// =============================================================================
// COMBINED STORE - For wiring
// =============================================================================

// Store is the full persistence surface the engine is wired against.
type Store interface {
	AppointmentStore
	LedgerStore
	AuditLog
}
