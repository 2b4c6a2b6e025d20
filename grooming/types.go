/*
Package grooming provides the appointment/ledger core of the shop engine.

PURPOSE:
  This package contains the domain types and algorithms that keep an
  appointment's lifecycle status consistent with its financial-ledger
  transaction: the status transition engine, the ledger synchronizer,
  partial-payment settlement, the audit trail, and the operator facade.

KEY CONCEPTS IN THIS FILE (types.go):
  - Appointment: A booked grooming visit with an optimistic version counter
  - Transaction: A financial-ledger record, optionally owning an appointment
  - PartialPayment: An installment posted against a transaction
  - Events: StatusChanged and BookingPaid, fanned out to observers

DESIGN PRINCIPLES:
  1. Exact money: every value is an int64 number of cents (see money package)
  2. Optimistic concurrency: no locks; a version counter detects conflicts
  3. One owner: at most one active transaction per appointment
  4. Auditability: every accepted mutation leaves an audit entry

STATUS MODEL:
  Appointments: pending -> finished -> finished_paid, or canceled.
  The engine itself allows any -> any; business restrictions (e.g.
  subscriptions never settle through finished_paid) live in the facade.
  Ledger: open / paid / canceled, kept in lock-step by the synchronizer.

SEE ALSO:
  - engine.go: Status transitions with optimistic concurrency
  - sync.go: Appointment <-> ledger propagation rules
  - payments.go: Partial-payment accumulation and settlement
  - facade.go: Operator quick/bulk actions
*/
package grooming

import (
	"context"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AppointmentID int64
type TransactionID int64
type PartialPaymentID int64

// =============================================================================
// APPOINTMENT - A booked grooming visit
// =============================================================================

type AppointmentStatus string

const (
	StatusPending      AppointmentStatus = "pending"       // Booked, not yet serviced
	StatusFinished     AppointmentStatus = "finished"      // Serviced, not yet settled
	StatusFinishedPaid AppointmentStatus = "finished_paid" // Serviced and settled
	StatusCanceled     AppointmentStatus = "canceled"
)

// Valid reports whether s is one of the four enumerated statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusFinished, StatusFinishedPaid, StatusCanceled:
		return true
	}
	return false
}

// Appointment is the durable record mutated by the transition engine.
//
// Version starts at 1 on first persistence and increases by exactly 1 on
// every accepted mutation. Legacy records with a missing/zero version are
// normalized to 1 by the store's read accessor, never by callers.
type Appointment struct {
	ID      AppointmentID
	Date    time.Time // calendar date of service
	Time    string    // local time-of-day, e.g. "14:30"
	Status  AppointmentStatus
	Version int64

	ClientID   int64
	PetIDs     []int64
	ServiceIDs []int64
	GroomerIDs []int64

	// Display strings provided by the booking collaborator at creation,
	// used when materializing the ledger transaction's description.
	PetName      string
	ServiceNames []string

	// BookedTotal is the pre-computed total at booking in minor units,
	// supplied by the pricing collaborator when the booking is confirmed.
	// The core never computes service pricing itself.
	BookedTotal int64

	// SubscriptionID is non-zero when the appointment belongs to a
	// recurring plan. Subscription appointments settle through a separate
	// channel and may never hold finished_paid.
	SubscriptionID int64

	CreatedAt time.Time
}

func (a Appointment) SubscriptionLinked() bool { return a.SubscriptionID != 0 }

// =============================================================================
// LEDGER TRANSACTION - Financial record, optionally owning an appointment
// =============================================================================

type TransactionStatus string

const (
	TxOpen     TransactionStatus = "open"
	TxPaid     TransactionStatus = "paid"
	TxCanceled TransactionStatus = "canceled"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TxOpen, TxPaid, TxCanceled:
		return true
	}
	return false
}

type TransactionKind string

const (
	KindRevenue TransactionKind = "revenue"
	KindExpense TransactionKind = "expense"
)

// Transaction is a financial-ledger record. When AppointmentID is non-zero
// this transaction actively owns that appointment: there is at most one
// such transaction per appointment at any time.
type Transaction struct {
	ID            TransactionID
	ClientID      int64         // 0 when not linked to a client
	AppointmentID AppointmentID // 0 when not linked to an appointment
	Date          time.Time
	Value         int64 // minor units (cents)
	Category      string
	Kind          TransactionKind
	Status        TransactionStatus
	Description   string

	// Recurring marks transactions that repeat monthly. Modeled as a field
	// on the owning record rather than a separately-addressed option map.
	Recurring bool

	CreatedAt time.Time
}

// =============================================================================
// PARTIAL PAYMENT - Installment posted against a transaction
// =============================================================================

type PaymentMethod string

const (
	MethodPix           PaymentMethod = "pix"
	MethodCard          PaymentMethod = "card"
	MethodCash          PaymentMethod = "cash"
	MethodOther         PaymentMethod = "other"
	MethodLoyaltyCredit PaymentMethod = "loyalty_credit"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodPix, MethodCard, MethodCash, MethodOther, MethodLoyaltyCredit:
		return true
	}
	return false
}

type PartialPayment struct {
	ID            PartialPaymentID
	TransactionID TransactionID
	Date          time.Time
	Value         int64 // minor units (cents)
	Method        PaymentMethod
	CreatedAt     time.Time
}

// SettlementTolerance is the rounding slack, in minor units, allowed when
// comparing the sum of partial payments against the transaction total.
const SettlementTolerance int64 = 1

// =============================================================================
// EVENTS - Fanned out synchronously by the engine
// =============================================================================

// StatusChanged is emitted after every accepted appointment transition.
// Observers run in a fixed order: audit log first, then ledger synchronizer.
type StatusChanged struct {
	AppointmentID AppointmentID
	OldStatus     AppointmentStatus
	NewStatus     AppointmentStatus
	Actor         string
	At            time.Time
}

// BookingPaid is emitted when an appointment's transaction settles through
// the forward sync path. Consumed by the loyalty/rewards collaborator.
type BookingPaid struct {
	AppointmentID AppointmentID
	ClientID      int64
	Amount        int64 // minor units (cents)
}

// =============================================================================
// COLLABORATORS - Out-of-core dependencies the engine calls into
// =============================================================================

// Pricing provides the pre-computed total-at-booking for an appointment.
// The core never computes service pricing itself.
type Pricing interface {
	TotalAtBooking(ctx context.Context, appointmentID AppointmentID) (int64, error)
}

// PricingFunc adapts a function to the Pricing interface.
type PricingFunc func(context.Context, AppointmentID) (int64, error)

func (f PricingFunc) TotalAtBooking(ctx context.Context, id AppointmentID) (int64, error) {
	return f(ctx, id)
}

// PaidNotifier receives BookingPaid events (loyalty, rewards, messaging).
type PaidNotifier interface {
	BookingPaid(event BookingPaid)
}

// Authorizer is the single permission predicate injected into the facade.
// A nil Authorizer allows everything.
type Authorizer func(actor string, action string) error
