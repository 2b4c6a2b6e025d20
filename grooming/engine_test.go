package grooming_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/grooming-engine/grooming"
	"github.com/warp/grooming-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP - Shared by all tests in this package
// =============================================================================

// paidRecorder captures BookingPaid events for assertions.
type paidRecorder struct {
	events []grooming.BookingPaid
}

func (r *paidRecorder) BookingPaid(ev grooming.BookingPaid) {
	r.events = append(r.events, ev)
}

// wiring bundles the fully-connected engine the way the API layer wires it:
// audit observer first, then the ledger synchronizer.
type wiring struct {
	Store    *sqlite.Store
	Engine   *grooming.Engine
	Sync     *grooming.Synchronizer
	Facade   *grooming.Facade
	Ledger   *grooming.LedgerService
	Payments *grooming.PaymentService
	Notifier *paidRecorder
}

func newWiring(t *testing.T) *wiring {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	notifier := &paidRecorder{}
	sync := grooming.NewSynchronizer(store, grooming.StoredPricing{Appointments: store}, notifier)
	engine := grooming.NewEngine(store,
		grooming.NewAuditObserver(store),
		sync,
	)

	return &wiring{
		Store:    store,
		Engine:   engine,
		Sync:     sync,
		Facade:   grooming.NewFacade(engine, store, nil),
		Ledger:   grooming.NewLedgerService(store, sync),
		Payments: grooming.NewPaymentService(store, sync),
		Notifier: notifier,
	}
}

func seedAppointment(t *testing.T, s *sqlite.Store, a grooming.Appointment) grooming.Appointment {
	t.Helper()

	if a.Date.IsZero() {
		a.Date = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	}
	if a.Time == "" {
		a.Time = "14:30"
	}
	if a.Status == "" {
		a.Status = grooming.StatusPending
	}
	if a.PetName == "" {
		a.PetName = "Rex"
	}
	if a.ServiceNames == nil {
		a.ServiceNames = []string{"Bath", "Trim"}
	}
	if a.BookedTotal == 0 {
		a.BookedTotal = 12990
	}
	require.NoError(t, s.PutAppointment(context.Background(), a))

	got, err := s.GetAppointment(context.Background(), a.ID)
	require.NoError(t, err)
	return got
}

// =============================================================================
// TRANSITION + VERSION TESTS
// =============================================================================

func TestApplyTransition_IncrementsVersion(t *testing.T) {
	// GIVEN: A pending appointment at version 1
	// WHEN: Transitioning to finished with the matching version
	// THEN: Status is updated and version becomes 2

	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 1, ClientID: 7})

	newVersion, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), newVersion)

	got, err := w.Store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, grooming.StatusFinished, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestApplyTransition_StaleVersion_RejectedWithoutWrite(t *testing.T) {
	// GIVEN: An appointment another operator already advanced to version 2
	// WHEN: A stale client submits version 1
	// THEN: The write is rejected with a conflict and nothing changed

	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 2})

	_, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)

	_, err = w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusCanceled, appt.Version, "bob")
	assert.True(t, grooming.IsConflict(err), "stale version should conflict, got %v", err)

	var conflict *grooming.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.Expected)
	assert.Equal(t, int64(2), conflict.Actual)

	got, err := w.Store.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, grooming.StatusFinished, got.Status, "rejected write must not land")
	assert.Equal(t, int64(2), got.Version)
}

func TestApplyTransition_UnknownStatus_Rejected(t *testing.T) {
	w := newWiring(t)
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 3})

	_, err := w.Engine.ApplyTransition(context.Background(), appt.ID, "done", appt.Version, "alice")
	assert.ErrorIs(t, err, grooming.ErrInvalidStatus)
}

func TestApplyTransition_MissingAppointment(t *testing.T) {
	w := newWiring(t)

	_, err := w.Engine.ApplyTransition(context.Background(), 999, grooming.StatusFinished, 1, "alice")
	assert.True(t, grooming.IsNotFound(err))
}

func TestGetAppointment_LegacyVersionZero_ReadsAsOne(t *testing.T) {
	// GIVEN: A record written before versioning existed (version 0)
	// WHEN: Reading it back
	// THEN: The version is normalized to 1 so optimistic editing works

	w := newWiring(t)
	ctx := context.Background()

	legacy := grooming.Appointment{
		ID:      4,
		Date:    time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		Time:    "09:00",
		Status:  grooming.StatusPending,
		Version: 0,
	}
	require.NoError(t, w.Store.PutAppointment(ctx, legacy))

	got, err := w.Store.GetAppointment(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	// And the coerced version is accepted for a transition.
	newVersion, err := w.Engine.ApplyTransition(ctx, legacy.ID, grooming.StatusFinished, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), newVersion)
}

// =============================================================================
// OBSERVER FAN-OUT TESTS
// =============================================================================

func TestApplyTransition_WritesAuditBeforeProjection(t *testing.T) {
	// GIVEN: The standard wiring (audit observer, then synchronizer)
	// WHEN: An appointment finishes
	// THEN: Both the audit entry and the ledger transaction exist

	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 5, ClientID: 9})

	_, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version, "alice")
	require.NoError(t, err)

	entries, err := w.Store.AppointmentHistory(ctx, appt.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, grooming.AuditStatusChange, entries[0].Action)
	assert.Equal(t, "alice", entries[0].Actor)
	assert.Equal(t, string(grooming.StatusPending), entries[0].FromValue)
	assert.Equal(t, string(grooming.StatusFinished), entries[0].ToValue)

	_, ok, err := w.Store.TransactionByAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, ok, "synchronizer should have materialized a transaction")
}

func TestApplyTransition_RejectedTransition_LeavesNoAudit(t *testing.T) {
	w := newWiring(t)
	ctx := context.Background()
	appt := seedAppointment(t, w.Store, grooming.Appointment{ID: 6})

	_, err := w.Engine.ApplyTransition(ctx, appt.ID, grooming.StatusFinished, appt.Version+5, "alice")
	require.Error(t, err)

	entries, err := w.Store.AppointmentHistory(ctx, appt.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected mutations never reach the audit log")
}
