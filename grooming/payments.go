/*
payments.go - Partial-payment accumulation and settlement

PURPOSE:
  Posts installments against a ledger transaction, enforces the
  sum-of-installments cap, and recomputes settlement after every
  insert or delete.

CAP INVARIANT:
  sum(partials) may never exceed the transaction value by more than
  one minor unit. The check and the insert are a single atomic store
  operation (InsertPartialCapped), so concurrent submissions against
  the same transaction cannot both pass a stale sum check.

SETTLEMENT:
  After an insert: sum >= value (within tolerance) flips the
  transaction to paid, cascading finished_paid to the appointment via
  the synchronizer's reverse rules. After a delete: a sum that no
  longer covers the value forces the transaction back to open even if
  it had been paid, cascading finished to the appointment.

LOYALTY CREDIT:
  A registration may carry an optional loyalty-credit amount. It is
  posted as a second installment with method loyalty_credit and its own
  audit entry, so the rewards collaborator's contribution stays visible
  in the transaction's installment list.

SEE ALSO:
  - sync.go: ReconcileSettlement, reverse-direction cascade
  - money: Operator input arrives as localized decimal text
*/
package grooming

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/grooming-engine/money"
)

// =============================================================================
// PAYMENT SERVICE
// =============================================================================

// PaymentService registers and deletes partial payments.
type PaymentService struct {
	Ledger LedgerStore
	Sync   *Synchronizer
	Audit  AuditLog

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewPaymentService(store Store, sync *Synchronizer) *PaymentService {
	return &PaymentService{
		Ledger: store,
		Sync:   sync,
		Audit:  store,
		Now:    time.Now,
	}
}

// RegisterPartialInput is the inbound contract for posting an installment.
type RegisterPartialInput struct {
	TransactionID TransactionID
	Date          time.Time
	Value         string        // localized decimal text, parsed by the money codec
	Method        PaymentMethod
	LoyaltyCredit int64 // optional extra installment in minor units
}

// PaymentResult carries the recomputed figures after a mutation.
type PaymentResult struct {
	PaymentID        PartialPaymentID
	LoyaltyPaymentID PartialPaymentID // 0 when no loyalty credit was applied
	Status           TransactionStatus
	Total            int64 // transaction value, minor units
	Paid             int64 // sum of installments, minor units
	Remaining        int64 // max(Total-Paid, 0), minor units
}

// RegisterPartial posts an installment (plus an optional loyalty-credit
// installment) and recomputes settlement.
//
// Rejections (ErrNotFound, ErrInvalidAction, ErrBusinessRule,
// ErrExceedsRemainingBalance) leave no partial state behind.
func (ps *PaymentService) RegisterPartial(ctx context.Context, in RegisterPartialInput, actor string) (PaymentResult, error) {
	if !in.Method.Valid() {
		return PaymentResult{}, fmt.Errorf("%w: payment method %q", ErrInvalidAction, in.Method)
	}

	value := money.Parse(in.Value)
	if value < 0 || in.LoyaltyCredit < 0 {
		return PaymentResult{}, &BusinessRuleError{Rule: "negative_payment", Detail: "installment values must be positive"}
	}
	if value == 0 && in.LoyaltyCredit == 0 {
		return PaymentResult{}, &BusinessRuleError{Rule: "empty_payment", Detail: "nothing to register"}
	}

	tx, err := ps.Ledger.GetTransaction(ctx, in.TransactionID)
	if err != nil {
		return PaymentResult{}, err
	}

	limit := tx.Value + SettlementTolerance
	date := in.Date
	if date.IsZero() {
		date = ps.now()
	}

	// Pre-check the combined amount so a two-installment registration is
	// rejected whole instead of landing half.
	paid, err := ps.Ledger.SumPartials(ctx, in.TransactionID)
	if err != nil {
		return PaymentResult{}, err
	}
	if paid+value+in.LoyaltyCredit > limit {
		return PaymentResult{}, ps.exceedsBalance(tx, paid, value+in.LoyaltyCredit)
	}

	var paymentID, loyaltyID PartialPaymentID
	sum := paid

	if value > 0 {
		paymentID, sum, err = ps.insertAudited(ctx, PartialPayment{
			TransactionID: in.TransactionID,
			Date:          date,
			Value:         value,
			Method:        in.Method,
			CreatedAt:     ps.now(),
		}, limit, tx, actor, AuditPartialAdd)
		if err != nil {
			return PaymentResult{}, err
		}
	}

	if in.LoyaltyCredit > 0 {
		loyaltyID, sum, err = ps.insertAudited(ctx, PartialPayment{
			TransactionID: in.TransactionID,
			Date:          date,
			Value:         in.LoyaltyCredit,
			Method:        MethodLoyaltyCredit,
			CreatedAt:     ps.now(),
		}, limit, tx, actor, AuditLoyaltyCredit)
		if err != nil {
			// The first installment landed but the loyalty leg lost a
			// race. Compensate so the rejection leaves no partial state.
			if paymentID != 0 {
				_ = ps.Ledger.DeletePartial(ctx, paymentID)
			}
			return PaymentResult{}, err
		}
	}

	status, err := ps.Sync.ReconcileSettlement(ctx, tx, sum, actor)
	if err != nil {
		return PaymentResult{}, err
	}

	return result(tx, paymentID, loyaltyID, status, sum), nil
}

// DeletePartial removes one installment and re-evaluates settlement: if
// the remaining sum no longer covers the value, the transaction reverts
// to open even if it had been paid.
func (ps *PaymentService) DeletePartial(ctx context.Context, id PartialPaymentID, actor string) (PaymentResult, error) {
	p, err := ps.Ledger.GetPartial(ctx, id)
	if err != nil {
		return PaymentResult{}, err
	}

	tx, err := ps.Ledger.GetTransaction(ctx, p.TransactionID)
	if err != nil {
		return PaymentResult{}, err
	}

	if err := ps.Ledger.DeletePartial(ctx, id); err != nil {
		return PaymentResult{}, err
	}

	sum, err := ps.Ledger.SumPartials(ctx, p.TransactionID)
	if err != nil {
		return PaymentResult{}, err
	}

	status, err := ps.Sync.ReconcileSettlement(ctx, tx, sum, actor)
	if err != nil {
		return PaymentResult{}, err
	}

	return result(tx, 0, 0, status, sum), nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (ps *PaymentService) insertAudited(
	ctx context.Context,
	p PartialPayment,
	limit int64,
	tx Transaction,
	actor string,
	action AuditAction,
) (PartialPaymentID, int64, error) {
	id, sum, err := ps.Ledger.InsertPartialCapped(ctx, p, limit)
	if err != nil {
		if errors.Is(err, ErrExceedsRemainingBalance) {
			return 0, 0, ps.exceedsBalance(tx, sum, p.Value)
		}
		return 0, 0, err
	}

	if err := ps.Audit.AppendAudit(ctx, AuditEntry{
		ID:            uuid.NewString(),
		Timestamp:     ps.now(),
		Actor:         actor,
		Action:        action,
		AppointmentID: tx.AppointmentID,
		TransactionID: tx.ID,
		ToValue:       money.Format(p.Value),
		Metadata:      map[string]string{"method": string(p.Method)},
	}); err != nil {
		return 0, 0, err
	}
	return id, sum, nil
}

func (ps *PaymentService) exceedsBalance(tx Transaction, paid, attempted int64) error {
	remaining := tx.Value - paid
	if remaining < 0 {
		remaining = 0
	}
	return &ExceedsBalanceError{
		TransactionID: tx.ID,
		Total:         tx.Value,
		Paid:          paid,
		Remaining:     remaining,
		Attempted:     attempted,
	}
}

func result(tx Transaction, paymentID, loyaltyID PartialPaymentID, status TransactionStatus, sum int64) PaymentResult {
	remaining := tx.Value - sum
	if remaining < 0 {
		remaining = 0
	}
	return PaymentResult{
		PaymentID:        paymentID,
		LoyaltyPaymentID: loyaltyID,
		Status:           status,
		Total:            tx.Value,
		Paid:             sum,
		Remaining:        remaining,
	}
}

func (ps *PaymentService) now() time.Time {
	if ps.Now != nil {
		return ps.Now()
	}
	return time.Now()
}
