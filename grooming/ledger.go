/*
ledger.go - Manual finance-side operations

PURPOSE:
  The finance UI's entry points: creating transactions by hand (revenue
  or expense, linked to an appointment or free-standing) and editing a
  transaction's status directly. Status edits delegate to the
  synchronizer so the owning appointment follows the reverse-direction
  rules.

SEE ALSO:
  - sync.go: ApplyLedgerStatus (reverse-direction propagation)
  - payments.go: Installments against these transactions
*/
package grooming

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/grooming-engine/money"
)

// LedgerService handles manual ledger mutations from the finance UI.
type LedgerService struct {
	Ledger LedgerStore
	Sync   *Synchronizer
	Audit  AuditLog

	Now func() time.Time
}

func NewLedgerService(store Store, sync *Synchronizer) *LedgerService {
	return &LedgerService{
		Ledger: store,
		Sync:   sync,
		Audit:  store,
		Now:    time.Now,
	}
}

// CreateTransactionInput is the inbound contract for manual creation.
type CreateTransactionInput struct {
	ClientID      int64
	AppointmentID AppointmentID
	Date          time.Time
	Value         string // localized decimal text
	Category      string
	Kind          TransactionKind
	Status        TransactionStatus
	Description   string
	Recurring     bool
}

// CreateTransaction records a manually-entered transaction. If it links
// to an appointment that already has an owner, the request is rejected:
// exactly one active transaction per appointment.
func (ls *LedgerService) CreateTransaction(ctx context.Context, in CreateTransactionInput, actor string) (Transaction, error) {
	if in.Kind != KindRevenue && in.Kind != KindExpense {
		return Transaction{}, fmt.Errorf("%w: transaction kind %q", ErrInvalidStatus, in.Kind)
	}
	status := in.Status
	if status == "" {
		status = TxOpen
	}
	if !status.Valid() {
		return Transaction{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	if in.AppointmentID != 0 {
		if _, ok, err := ls.Ledger.TransactionByAppointment(ctx, in.AppointmentID); err != nil {
			return Transaction{}, err
		} else if ok {
			return Transaction{}, &BusinessRuleError{
				Rule:   "one_transaction_per_appointment",
				Detail: fmt.Sprintf("appointment %d already has an owning transaction", in.AppointmentID),
			}
		}
	}

	date := in.Date
	if date.IsZero() {
		date = ls.now()
	}

	tx := Transaction{
		ClientID:      in.ClientID,
		AppointmentID: in.AppointmentID,
		Date:          date,
		Value:         money.Parse(in.Value),
		Category:      in.Category,
		Kind:          in.Kind,
		Status:        status,
		Description:   in.Description,
		Recurring:     in.Recurring,
		CreatedAt:     ls.now(),
	}

	id, err := ls.Ledger.InsertTransaction(ctx, tx)
	if err != nil {
		return Transaction{}, err
	}
	tx.ID = id

	if err := ls.Audit.AppendAudit(ctx, AuditEntry{
		ID:            uuid.NewString(),
		Timestamp:     ls.now(),
		Actor:         actor,
		Action:        AuditManualCreate,
		AppointmentID: tx.AppointmentID,
		TransactionID: tx.ID,
		ToValue:       money.Format(tx.Value),
		Metadata:      map[string]string{"kind": string(tx.Kind), "category": tx.Category},
	}); err != nil {
		return tx, err
	}

	// A transaction created already-settled (or canceled) still drives
	// the owning appointment through the reverse rules.
	if tx.AppointmentID != 0 && status != TxOpen {
		if err := ls.Sync.pushToAppointment(ctx, tx, actor); err != nil {
			return tx, err
		}
	}

	return tx, nil
}

// SetStatus applies a manual status edit, cascading to the appointment.
func (ls *LedgerService) SetStatus(ctx context.Context, id TransactionID, status TransactionStatus, actor string) (Transaction, error) {
	return ls.Sync.ApplyLedgerStatus(ctx, id, status, actor)
}

// List returns transactions matching the filter.
func (ls *LedgerService) List(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	return ls.Ledger.ListTransactions(ctx, f)
}

func (ls *LedgerService) now() time.Time {
	if ls.Now != nil {
		return ls.Now()
	}
	return time.Now()
}
