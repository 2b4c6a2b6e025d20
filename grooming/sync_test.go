package grooming_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/grooming-engine/grooming"
)

// =============================================================================
// FORWARD DIRECTION - Appointment status drives the ledger
// =============================================================================

func TestForwardSync_FinishedPaid_MaterializesPaidTransaction(t *testing.T) {
	// GIVEN: A pending appointment with a booked total of 129,90
	// WHEN: It transitions to finished_paid
	// THEN: A paid revenue transaction appears with the booked value and
	//       a description derived from the services and pet name

	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 10, ClientID: 3})

	_, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinishedPaid, appt.Version, "alice")
	require.NoError(t, err)

	tx, ok, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, grooming.TxPaid, tx.Status)
	assert.Equal(t, grooming.KindRevenue, tx.Kind)
	assert.Equal(t, "Service", tx.Category)
	assert.Equal(t, int64(12990), tx.Value)
	assert.Equal(t, int64(3), tx.ClientID)
	assert.Equal(t, "Bath + Trim - Rex", tx.Description)
	assert.Equal(t, appt.Date.Format("2006-01-02"), tx.Date.Format("2006-01-02"))
}

func TestForwardSync_Finished_MaterializesOpenTransaction(t *testing.T) {
	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 11})

	_, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)

	tx, ok, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, grooming.TxOpen, tx.Status)
}

func TestForwardSync_NeverDuplicatesTransaction(t *testing.T) {
	// GIVEN: An appointment already projected to the ledger as open
	// WHEN: It later transitions to finished_paid
	// THEN: The same transaction is updated in place, not duplicated

	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 12})

	v, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)
	first, _, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)

	_, err = w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinishedPaid, v, "alice")
	require.NoError(t, err)

	txs, err := w.Store.ListTransactions(ctx, grooming.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 1, "exactly one active transaction per appointment")
	assert.Equal(t, first.ID, txs[0].ID)
	assert.Equal(t, grooming.TxPaid, txs[0].Status)
}

func TestForwardSync_CancelWithoutTransaction_CreatesNothing(t *testing.T) {
	// Canceling a never-serviced appointment has no settlement implication.
	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 13})

	_, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusCanceled, appt.Version, "alice")
	require.NoError(t, err)

	_, ok, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.False(t, ok, "cancel must never create a transaction")
}

func TestForwardSync_CancelWithTransaction_CancelsIt(t *testing.T) {
	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 14})

	v, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)

	_, err = w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusCanceled, v, "alice")
	require.NoError(t, err)

	tx, ok, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, grooming.TxCanceled, tx.Status)
}

func TestForwardSync_RevertToPending_LeavesLedgerAlone(t *testing.T) {
	// GIVEN: A finished appointment with an open transaction
	// WHEN: An operator reverts it to pending
	// THEN: The transaction keeps its current status untouched

	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 15})

	v, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)

	_, err = w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusPending, v, "alice")
	require.NoError(t, err)

	tx, ok, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, grooming.TxOpen, tx.Status)
}

// =============================================================================
// PAID NOTIFICATION TESTS
// =============================================================================

func TestBookingPaid_EmittedOncePerSettlement(t *testing.T) {
	// GIVEN: An appointment whose transaction settles to paid
	// WHEN: Further transitions keep the transaction paid
	// THEN: BookingPaid fires exactly once

	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 16, ClientID: 8})

	v, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinishedPaid, appt.Version, "alice")
	require.NoError(t, err)
	require.Len(t, w.Notifier.events, 1)
	assert.Equal(t, appt.ID, w.Notifier.events[0].AppointmentID)
	assert.Equal(t, int64(8), w.Notifier.events[0].ClientID)
	assert.Equal(t, int64(12990), w.Notifier.events[0].Amount)

	// Re-applying the same status keeps the transaction paid; no repeat.
	_, err = w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinishedPaid, v, "alice")
	require.NoError(t, err)
	assert.Len(t, w.Notifier.events, 1, "already-paid transactions must not re-notify")
}

// =============================================================================
// REVERSE DIRECTION - Ledger edits drive the appointment
// =============================================================================

func TestReverseSync_PaidTransaction_MarksAppointmentPaid(t *testing.T) {
	// GIVEN: A finished appointment with an open transaction
	// WHEN: The finance UI marks the transaction paid
	// THEN: The appointment becomes finished_paid with a bumped version
	//       and a ledger-sourced audit entry

	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 20})

	_, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)
	tx, _, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)

	_, err = w.Sync.ApplyLedgerStatus(ctx, tx.ID, grooming.TxPaid, "carol")
	require.NoError(t, err)

	got, err := w.Store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, grooming.StatusFinishedPaid, got.Status)
	assert.Equal(t, int64(3), got.Version, "reverse push bumps the same version counter")

	entries, err := w.Store.AppointmentHistory(ctx, appt.ID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "ledger", entries[0].Metadata["source"])
	assert.Equal(t, "carol", entries[0].Actor)
}

func TestReverseSync_CanceledTransaction_CancelsAppointment(t *testing.T) {
	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 21})

	_, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)
	tx, _, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)

	_, err = w.Sync.ApplyLedgerStatus(ctx, tx.ID, grooming.TxCanceled, "carol")
	require.NoError(t, err)

	got, err := w.Store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, grooming.StatusCanceled, got.Status)
}

func TestReverseSync_SubscriptionAppointment_PaidLeavesItUntouched(t *testing.T) {
	// Subscription appointments settle through their plan: marking the
	// transaction paid must never push them to finished_paid.

	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 22, SubscriptionID: 5})

	_, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)
	tx, _, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)

	_, err = w.Sync.ApplyLedgerStatus(ctx, tx.ID, grooming.TxPaid, "carol")
	require.NoError(t, err)

	got, err := w.Store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, grooming.StatusFinished, got.Status)
	assert.Equal(t, int64(2), got.Version, "no write on the appointment side")
}

func TestReverseSync_SameStatus_NoOp(t *testing.T) {
	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 23})

	_, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)
	tx, _, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)

	before, err := w.Store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)

	_, err = w.Sync.ApplyLedgerStatus(ctx, tx.ID, grooming.TxOpen, "carol")
	require.NoError(t, err)

	after, err := w.Store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
}

// =============================================================================
// SETTLEMENT PREDICATE
// =============================================================================

func TestSettled_Tolerance(t *testing.T) {
	assert.True(t, grooming.Settled(10000, 10000))
	assert.True(t, grooming.Settled(10000, 9999), "one cent under still settles")
	assert.False(t, grooming.Settled(10000, 9998))
	assert.True(t, grooming.Settled(0, 0))
}
