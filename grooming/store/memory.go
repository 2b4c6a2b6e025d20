// Package store provides an in-memory Store implementation (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/grooming-engine/grooming"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	appointments map[grooming.AppointmentID]grooming.Appointment
	transactions map[grooming.TransactionID]grooming.Transaction
	partials     map[grooming.PartialPaymentID]grooming.PartialPayment
	audit        []grooming.AuditEntry

	nextTxID      int64
	nextPartialID int64
}

func NewMemory() *Memory {
	return &Memory{
		appointments: make(map[grooming.AppointmentID]grooming.Appointment),
		transactions: make(map[grooming.TransactionID]grooming.Transaction),
		partials:     make(map[grooming.PartialPaymentID]grooming.PartialPayment),
	}
}

var _ grooming.Store = (*Memory)(nil)

// =============================================================================
// APPOINTMENTS
// =============================================================================

func (m *Memory) GetAppointment(_ context.Context, id grooming.AppointmentID) (grooming.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.appointments[id]
	if !ok {
		return grooming.Appointment{}, grooming.ErrNotFound
	}
	// Legacy records carry version 0; callers always observe >= 1.
	if a.Version < 1 {
		a.Version = 1
	}
	return a, nil
}

func (m *Memory) PutAppointment(_ context.Context, a grooming.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.Version < 1 {
		a.Version = 1
	}
	m.appointments[a.ID] = a
	return nil
}

func (m *Memory) UpdateAppointmentStatus(_ context.Context, id grooming.AppointmentID, expectedVersion int64, status grooming.AppointmentStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return 0, grooming.ErrNotFound
	}
	if a.Version < 1 {
		a.Version = 1
	}
	if a.Version != expectedVersion {
		return 0, &grooming.VersionConflictError{AppointmentID: id, Expected: expectedVersion, Actual: a.Version}
	}

	a.Status = status
	a.Version++
	m.appointments[id] = a
	return a.Version, nil
}

func (m *Memory) UpdateAppointmentSchedule(_ context.Context, id grooming.AppointmentID, expectedVersion int64, date time.Time, timeOfDay string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return 0, grooming.ErrNotFound
	}
	if a.Version < 1 {
		a.Version = 1
	}
	if a.Version != expectedVersion {
		return 0, &grooming.VersionConflictError{AppointmentID: id, Expected: expectedVersion, Actual: a.Version}
	}

	a.Date = date
	a.Time = timeOfDay
	a.Version++
	m.appointments[id] = a
	return a.Version, nil
}

func (m *Memory) AppointmentsByDate(_ context.Context, date time.Time) ([]grooming.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	y, mo, d := date.Date()
	var result []grooming.Appointment
	for _, a := range m.appointments {
		ay, am, ad := a.Date.Date()
		if ay == y && am == mo && ad == d {
			if a.Version < 1 {
				a.Version = 1
			}
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Time != result[j].Time {
			return result[i].Time < result[j].Time
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// LEDGER TRANSACTIONS
// =============================================================================

func (m *Memory) GetTransaction(_ context.Context, id grooming.TransactionID) (grooming.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[id]
	if !ok {
		return grooming.Transaction{}, grooming.ErrNotFound
	}
	return tx, nil
}

func (m *Memory) TransactionByAppointment(_ context.Context, id grooming.AppointmentID) (grooming.Transaction, bool, error) {
	if id == 0 {
		return grooming.Transaction{}, false, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var best grooming.Transaction
	found := false
	for _, tx := range m.transactions {
		if tx.AppointmentID == id && (!found || tx.ID < best.ID) {
			best = tx
			found = true
		}
	}
	return best, found, nil
}

func (m *Memory) InsertTransaction(_ context.Context, tx grooming.Transaction) (grooming.TransactionID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTxID++
	tx.ID = grooming.TransactionID(m.nextTxID)
	m.transactions[tx.ID] = tx
	return tx.ID, nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx grooming.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[tx.ID]; !ok {
		return grooming.ErrNotFound
	}
	m.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) SetTransactionStatus(_ context.Context, id grooming.TransactionID, status grooming.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return grooming.ErrNotFound
	}
	tx.Status = status
	m.transactions[id] = tx
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, f grooming.TransactionFilter) ([]grooming.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []grooming.Transaction
	for _, tx := range m.transactions {
		if f.From != nil && tx.Date.Before(*f.From) {
			continue
		}
		if f.To != nil && tx.Date.After(*f.To) {
			continue
		}
		if f.Status != nil && tx.Status != *f.Status {
			continue
		}
		if f.Kind != nil && tx.Kind != *f.Kind {
			continue
		}
		result = append(result, tx)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) DeleteTransactionByAppointment(_ context.Context, id grooming.AppointmentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for txID, tx := range m.transactions {
		if tx.AppointmentID != id {
			continue
		}
		for pID, p := range m.partials {
			if p.TransactionID == txID {
				delete(m.partials, pID)
			}
		}
		delete(m.transactions, txID)
	}
	return nil
}

// =============================================================================
// PARTIAL PAYMENTS
// =============================================================================

func (m *Memory) GetPartial(_ context.Context, id grooming.PartialPaymentID) (grooming.PartialPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.partials[id]
	if !ok {
		return grooming.PartialPayment{}, grooming.ErrNotFound
	}
	return p, nil
}

func (m *Memory) InsertPartialCapped(_ context.Context, p grooming.PartialPayment, limit int64) (grooming.PartialPaymentID, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check and insert under one lock: concurrent submissions cannot
	// both pass against a stale sum.
	sum := m.sumLocked(p.TransactionID)
	if sum+p.Value > limit {
		return 0, sum, grooming.ErrExceedsRemainingBalance
	}

	m.nextPartialID++
	p.ID = grooming.PartialPaymentID(m.nextPartialID)
	m.partials[p.ID] = p
	return p.ID, sum + p.Value, nil
}

func (m *Memory) DeletePartial(_ context.Context, id grooming.PartialPaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.partials[id]; !ok {
		return grooming.ErrNotFound
	}
	delete(m.partials, id)
	return nil
}

func (m *Memory) PartialsByTransaction(_ context.Context, id grooming.TransactionID) ([]grooming.PartialPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []grooming.PartialPayment
	for _, p := range m.partials {
		if p.TransactionID == id {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) SumPartials(_ context.Context, id grooming.TransactionID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumLocked(id), nil
}

func (m *Memory) sumLocked(id grooming.TransactionID) int64 {
	var sum int64
	for _, p := range m.partials {
		if p.TransactionID == id {
			sum += p.Value
		}
	}
	return sum
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry grooming.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, f grooming.AuditFilter) ([]grooming.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []grooming.AuditEntry
	for _, e := range m.audit {
		if f.AppointmentID != 0 && e.AppointmentID != f.AppointmentID {
			continue
		}
		if f.TransactionID != 0 && e.TransactionID != f.TransactionID {
			continue
		}
		if f.Actor != "" && e.Actor != f.Actor {
			continue
		}
		if len(f.Actions) > 0 && !containsAction(f.Actions, e.Action) {
			continue
		}
		if f.From != nil && e.Timestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && e.Timestamp.After(*f.To) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *Memory) AppointmentHistory(_ context.Context, id grooming.AppointmentID) ([]grooming.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []grooming.AuditEntry
	for i := len(m.audit) - 1; i >= 0 && len(result) < grooming.HistoryFeedLimit; i-- {
		if m.audit[i].AppointmentID == id {
			result = append(result, m.audit[i])
		}
	}
	return result, nil
}

func containsAction(actions []grooming.AuditAction, a grooming.AuditAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
