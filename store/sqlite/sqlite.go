/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the full grooming.Store surface (appointments, ledger
  transactions, partial payments, audit log) using SQLite. In production
  the same patterns apply to PostgreSQL - only minor dialect differences.

KEY TABLES:
  appointments:     Status, optimistic version counter, schedule, links
  transactions:     Financial ledger, optionally owning an appointment
  partial_payments: Installments, many-to-one against transactions
  audit_log:        Append-only trail of accepted mutations

OPTIMISTIC CONCURRENCY:
  Status and schedule updates are single UPDATE statements guarded by
  the expected version, so the status write and the version increment
  land atomically. Legacy rows with version 0 are coerced to 1 inside
  the SQL, mirroring the read accessor.

MONEY:
  All monetary columns are INTEGER minor units (cents). There is no
  floating-point money anywhere in the schema.

INDEXES:
  - idx_transactions_appointment: Owner lookup (hot path for sync)
  - idx_transactions_date_status: Finance UI listing
  - idx_partials_transaction:     Settlement sums
  - idx_audit_appointment_ts:     History feed

CONCURRENCY:
  Uses sync.Mutex for thread-safety plus WAL mode. The partial-payment
  cap check runs inside a database transaction under the mutex, so the
  check-and-insert is atomic.

USAGE:
  store, err := sqlite.New("./data/grooming.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - grooming/store.go: Interface definitions and contracts
  - grooming/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/grooming-engine/grooming"
)

const (
	dateLayout = "2006-01-02"
	tsLayout   = time.RFC3339
)

// Store implements grooming.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var _ grooming.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A second pooled connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Appointments (optimistic version counter)
	CREATE TABLE IF NOT EXISTS appointments (
		id INTEGER PRIMARY KEY,
		date TEXT NOT NULL,
		time TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		version INTEGER NOT NULL DEFAULT 1,
		client_id INTEGER NOT NULL DEFAULT 0,
		pet_ids_json TEXT,
		service_ids_json TEXT,
		groomer_ids_json TEXT,
		pet_name TEXT NOT NULL DEFAULT '',
		service_names_json TEXT,
		subscription_id INTEGER NOT NULL DEFAULT 0,
		booked_total INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_appointments_date
		ON appointments(date);

	-- Ledger transactions (money in INTEGER minor units)
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL DEFAULT 0,
		appointment_id INTEGER NOT NULL DEFAULT 0,
		date TEXT NOT NULL,
		value INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		description TEXT NOT NULL DEFAULT '',
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	-- Owner lookup: at most one active transaction per appointment
	CREATE INDEX IF NOT EXISTS idx_transactions_appointment
		ON transactions(appointment_id) WHERE appointment_id != 0;
	CREATE INDEX IF NOT EXISTS idx_transactions_date_status
		ON transactions(date, status);

	-- Partial payments (installments)
	CREATE TABLE IF NOT EXISTS partial_payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		value INTEGER NOT NULL,
		method TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (transaction_id) REFERENCES transactions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_partials_transaction
		ON partial_payments(transaction_id);

	-- Audit log (append-only; no UPDATE or DELETE statements exist)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		appointment_id INTEGER NOT NULL DEFAULT 0,
		transaction_id INTEGER NOT NULL DEFAULT 0,
		from_value TEXT,
		to_value TEXT,
		metadata_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_appointment_ts
		ON audit_log(appointment_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_transaction_ts
		ON audit_log(transaction_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// APPOINTMENT STORE (grooming.AppointmentStore interface)
// =============================================================================

const appointmentColumns = `id, date, time, status, version, client_id,
	pet_ids_json, service_ids_json, groomer_ids_json, pet_name,
	service_names_json, subscription_id, booked_total, created_at`

func (s *Store) GetAppointment(ctx context.Context, id grooming.AppointmentID) (grooming.Appointment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	return scanAppointment(row)
}

func (s *Store) PutAppointment(ctx context.Context, a grooming.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Version < 1 {
		a.Version = 1
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO appointments
		(id, date, time, status, version, client_id, pet_ids_json,
		 service_ids_json, groomer_ids_json, pet_name, service_names_json,
		 subscription_id, booked_total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Date.Format(dateLayout),
		a.Time,
		a.Status,
		a.Version,
		a.ClientID,
		marshalJSON(a.PetIDs),
		marshalJSON(a.ServiceIDs),
		marshalJSON(a.GroomerIDs),
		a.PetName,
		marshalJSON(a.ServiceNames),
		a.SubscriptionID,
		a.BookedTotal,
		createdAt.Format(tsLayout),
	)
	return err
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, id grooming.AppointmentID, expectedVersion int64, status grooming.AppointmentStatus) (int64, error) {
	return s.casUpdate(ctx, id, expectedVersion,
		`UPDATE appointments
		 SET status = ?,
		     version = (CASE WHEN version < 1 THEN 1 ELSE version END) + 1
		 WHERE id = ?
		   AND (CASE WHEN version < 1 THEN 1 ELSE version END) = ?`,
		status, id, expectedVersion)
}

func (s *Store) UpdateAppointmentSchedule(ctx context.Context, id grooming.AppointmentID, expectedVersion int64, date time.Time, timeOfDay string) (int64, error) {
	return s.casUpdate(ctx, id, expectedVersion,
		`UPDATE appointments
		 SET date = ?, time = ?,
		     version = (CASE WHEN version < 1 THEN 1 ELSE version END) + 1
		 WHERE id = ?
		   AND (CASE WHEN version < 1 THEN 1 ELSE version END) = ?`,
		date.Format(dateLayout), timeOfDay, id, expectedVersion)
}

// casUpdate runs a version-guarded UPDATE. The guard and the increment
// are one statement, so status and version always move together.
func (s *Store) casUpdate(ctx context.Context, id grooming.AppointmentID, expectedVersion int64, query string, args ...any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 1 {
		return expectedVersion + 1, nil
	}

	// No row matched: either the record is missing or the version moved.
	var actual int64
	err = s.db.QueryRowContext(ctx,
		`SELECT CASE WHEN version < 1 THEN 1 ELSE version END FROM appointments WHERE id = ?`,
		id).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, grooming.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return 0, &grooming.VersionConflictError{AppointmentID: id, Expected: expectedVersion, Actual: actual}
}

func (s *Store) AppointmentsByDate(ctx context.Context, date time.Time) ([]grooming.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE date = ? ORDER BY time, id`,
		date.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []grooming.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (grooming.Appointment, error) {
	var a grooming.Appointment
	var date, createdAt string
	var petIDs, serviceIDs, groomerIDs, serviceNames sql.NullString

	err := row.Scan(&a.ID, &date, &a.Time, &a.Status, &a.Version, &a.ClientID,
		&petIDs, &serviceIDs, &groomerIDs, &a.PetName, &serviceNames,
		&a.SubscriptionID, &a.BookedTotal, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return grooming.Appointment{}, grooming.ErrNotFound
	}
	if err != nil {
		return grooming.Appointment{}, err
	}

	a.Date, _ = time.Parse(dateLayout, date)
	a.CreatedAt, _ = time.Parse(tsLayout, createdAt)
	unmarshalJSON(petIDs, &a.PetIDs)
	unmarshalJSON(serviceIDs, &a.ServiceIDs)
	unmarshalJSON(groomerIDs, &a.GroomerIDs)
	unmarshalJSON(serviceNames, &a.ServiceNames)

	// Centralized legacy coercion: callers always observe version >= 1.
	if a.Version < 1 {
		a.Version = 1
	}
	return a, nil
}

// =============================================================================
// LEDGER STORE (grooming.LedgerStore interface)
// =============================================================================

const transactionColumns = `id, client_id, appointment_id, date, value,
	category, kind, status, description, recurring, created_at`

func (s *Store) GetTransaction(ctx context.Context, id grooming.TransactionID) (grooming.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

func (s *Store) TransactionByAppointment(ctx context.Context, id grooming.AppointmentID) (grooming.Transaction, bool, error) {
	if id == 0 {
		return grooming.Transaction{}, false, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE appointment_id = ? ORDER BY id LIMIT 1`, id)
	tx, err := scanTransaction(row)
	if grooming.IsNotFound(err) {
		return grooming.Transaction{}, false, nil
	}
	if err != nil {
		return grooming.Transaction{}, false, err
	}
	return tx, true, nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx grooming.Transaction) (grooming.TransactionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
		(client_id, appointment_id, date, value, category, kind, status,
		 description, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ClientID,
		tx.AppointmentID,
		tx.Date.Format(dateLayout),
		tx.Value,
		tx.Category,
		tx.Kind,
		tx.Status,
		tx.Description,
		tx.Recurring,
		createdAt.Format(tsLayout),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return grooming.TransactionID(id), nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx grooming.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET client_id = ?, appointment_id = ?, date = ?, value = ?,
		    category = ?, kind = ?, status = ?, description = ?, recurring = ?
		WHERE id = ?`,
		tx.ClientID,
		tx.AppointmentID,
		tx.Date.Format(dateLayout),
		tx.Value,
		tx.Category,
		tx.Kind,
		tx.Status,
		tx.Description,
		tx.Recurring,
		tx.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) SetTransactionStatus(ctx context.Context, id grooming.TransactionID, status grooming.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListTransactions(ctx context.Context, f grooming.TransactionFilter) ([]grooming.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	if f.From != nil {
		query += ` AND date >= ?`
		args = append(args, f.From.Format(dateLayout))
	}
	if f.To != nil {
		query += ` AND date <= ?`
		args = append(args, f.To.Format(dateLayout))
	}
	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, *f.Status)
	}
	if f.Kind != nil {
		query += ` AND kind = ?`
		args = append(args, *f.Kind)
	}
	query += ` ORDER BY date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []grooming.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func (s *Store) DeleteTransactionByAppointment(ctx context.Context, id grooming.AppointmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx, `
		DELETE FROM partial_payments WHERE transaction_id IN
		(SELECT id FROM transactions WHERE appointment_id = ?)`, id); err != nil {
		return err
	}
	if _, err := dbTx.ExecContext(ctx,
		`DELETE FROM transactions WHERE appointment_id = ?`, id); err != nil {
		return err
	}
	return dbTx.Commit()
}

func scanTransaction(row rowScanner) (grooming.Transaction, error) {
	var tx grooming.Transaction
	var date, createdAt string

	err := row.Scan(&tx.ID, &tx.ClientID, &tx.AppointmentID, &date, &tx.Value,
		&tx.Category, &tx.Kind, &tx.Status, &tx.Description, &tx.Recurring,
		&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return grooming.Transaction{}, grooming.ErrNotFound
	}
	if err != nil {
		return grooming.Transaction{}, err
	}

	tx.Date, _ = time.Parse(dateLayout, date)
	tx.CreatedAt, _ = time.Parse(tsLayout, createdAt)
	return tx, nil
}

// =============================================================================
// PARTIAL PAYMENTS
// =============================================================================

func (s *Store) GetPartial(ctx context.Context, id grooming.PartialPaymentID) (grooming.PartialPayment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, transaction_id, date, value, method, created_at
		 FROM partial_payments WHERE id = ?`, id)
	return scanPartial(row)
}

// InsertPartialCapped validates the installment cap and inserts inside a
// single database transaction: concurrent submissions for the same
// transaction cannot both pass against a stale sum.
func (s *Store) InsertPartialCapped(ctx context.Context, p grooming.PartialPayment, limit int64) (grooming.PartialPaymentID, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer dbTx.Rollback()

	var sum int64
	if err := dbTx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(value), 0) FROM partial_payments WHERE transaction_id = ?`,
		p.TransactionID).Scan(&sum); err != nil {
		return 0, 0, err
	}
	if sum+p.Value > limit {
		return 0, sum, grooming.ErrExceedsRemainingBalance
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := dbTx.ExecContext(ctx, `
		INSERT INTO partial_payments (transaction_id, date, value, method, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.TransactionID,
		p.Date.Format(dateLayout),
		p.Value,
		p.Method,
		createdAt.Format(tsLayout),
	)
	if err != nil {
		return 0, 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, 0, err
	}
	if err := dbTx.Commit(); err != nil {
		return 0, 0, err
	}
	return grooming.PartialPaymentID(id), sum + p.Value, nil
}

func (s *Store) DeletePartial(ctx context.Context, id grooming.PartialPaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM partial_payments WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) PartialsByTransaction(ctx context.Context, id grooming.TransactionID) ([]grooming.PartialPayment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, transaction_id, date, value, method, created_at
		 FROM partial_payments WHERE transaction_id = ? ORDER BY date, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []grooming.PartialPayment
	for rows.Next() {
		p, err := scanPartial(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) SumPartials(ctx context.Context, id grooming.TransactionID) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(value), 0) FROM partial_payments WHERE transaction_id = ?`,
		id).Scan(&sum)
	return sum, err
}

func scanPartial(row rowScanner) (grooming.PartialPayment, error) {
	var p grooming.PartialPayment
	var date, createdAt string

	err := row.Scan(&p.ID, &p.TransactionID, &date, &p.Value, &p.Method, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return grooming.PartialPayment{}, grooming.ErrNotFound
	}
	if err != nil {
		return grooming.PartialPayment{}, err
	}

	p.Date, _ = time.Parse(dateLayout, date)
	p.CreatedAt, _ = time.Parse(tsLayout, createdAt)
	return p, nil
}

// =============================================================================
// AUDIT LOG (grooming.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry grooming.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, _ := json.Marshal(entry.Metadata)
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log
		(id, timestamp, actor, action, appointment_id, transaction_id,
		 from_value, to_value, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		ts.Format(tsLayout),
		entry.Actor,
		entry.Action,
		entry.AppointmentID,
		entry.TransactionID,
		entry.FromValue,
		entry.ToValue,
		string(metadataJSON),
	)
	return err
}

func (s *Store) QueryAudit(ctx context.Context, f grooming.AuditFilter) ([]grooming.AuditEntry, error) {
	query := `SELECT id, timestamp, actor, action, appointment_id, transaction_id,
		from_value, to_value, metadata_json FROM audit_log WHERE 1=1`
	var args []any
	if f.AppointmentID != 0 {
		query += ` AND appointment_id = ?`
		args = append(args, f.AppointmentID)
	}
	if f.TransactionID != 0 {
		query += ` AND transaction_id = ?`
		args = append(args, f.TransactionID)
	}
	if f.Actor != "" {
		query += ` AND actor = ?`
		args = append(args, f.Actor)
	}
	if len(f.Actions) > 0 {
		query += ` AND action IN (?` + strings.Repeat(",?", len(f.Actions)-1) + `)`
		for _, a := range f.Actions {
			args = append(args, a)
		}
	}
	if f.From != nil {
		query += ` AND timestamp >= ?`
		args = append(args, f.From.Format(tsLayout))
	}
	if f.To != nil {
		query += ` AND timestamp <= ?`
		args = append(args, f.To.Format(tsLayout))
	}
	query += ` ORDER BY timestamp, rowid`

	return s.queryAudit(ctx, query, args...)
}

func (s *Store) AppointmentHistory(ctx context.Context, id grooming.AppointmentID) ([]grooming.AuditEntry, error) {
	return s.queryAudit(ctx, `
		SELECT id, timestamp, actor, action, appointment_id, transaction_id,
		       from_value, to_value, metadata_json
		FROM audit_log WHERE appointment_id = ?
		ORDER BY timestamp DESC, rowid DESC LIMIT ?`,
		id, grooming.HistoryFeedLimit)
}

func (s *Store) queryAudit(ctx context.Context, query string, args ...any) ([]grooming.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []grooming.AuditEntry
	for rows.Next() {
		var e grooming.AuditEntry
		var ts string
		var fromVal, toVal, metadata sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.Action, &e.AppointmentID,
			&e.TransactionID, &fromVal, &toVal, &metadata); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(tsLayout, ts)
		e.FromValue = fromVal.String
		e.ToValue = toVal.String
		if metadata.Valid && metadata.String != "" && metadata.String != "null" {
			_ = json.Unmarshal([]byte(metadata.String), &e.Metadata)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return grooming.ErrNotFound
	}
	return nil
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalJSON[T any](v sql.NullString, out *T) {
	if !v.Valid || v.String == "" || v.String == "null" {
		return
	}
	_ = json.Unmarshal([]byte(v.String), out)
}
