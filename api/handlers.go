/*
handlers.go - HTTP API handlers for the grooming shop engine

PURPOSE:
  Exposes the appointment/ledger engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Appointments:
    GET    /api/appointments                List by date (?date=YYYY-MM-DD)
    POST   /api/appointments                Register appointment (booking)
    GET    /api/appointments/{id}           Get appointment
    PUT    /api/appointments/{id}/status    Optimistic status transition
    POST   /api/appointments/{id}/action    Quick action (agenda shortcut)
    POST   /api/appointments/{id}/reschedule Move date/time slot
    GET    /api/appointments/{id}/history   Audit feed (last 50)
    POST   /api/appointments/bulk-status    Best-effort bulk transition

  Transactions:
    GET    /api/transactions                List (?from&to&status&kind)
    POST   /api/transactions                Record manual transaction
    GET    /api/transactions/{id}           Transaction + installments
    PUT    /api/transactions/{id}/status    Ledger-side status change

  Payments:
    POST   /api/payments                    Register installment
    DELETE /api/payments/{id}               Remove installment

  Audit:
    GET    /api/audit                       Query the audit trail

ARCHITECTURE:
  Handler struct holds the wired domain services. NewHandler performs
  the full dependency injection: audit observer first, then the ledger
  synchronizer, in that fixed fan-out order.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape
  3. Call domain logic (engine, facade, services)
  4. Serialize response
  5. Map domain errors to HTTP status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, unknown status/action
  - 403: Authorization predicate rejected the actor
  - 404: Appointment/transaction/payment not found
  - 409: Optimistic version conflict (client must re-read)
  - 422: Business rule violation, payment exceeds remaining balance
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - grooming/engine.go: Transition engine
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/grooming-engine/grooming"
	"github.com/warp/grooming-engine/money"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    grooming.Store
	Engine   *grooming.Engine
	Facade   *grooming.Facade
	Ledger   *grooming.LedgerService
	Payments *grooming.PaymentService
	Sync     *grooming.Synchronizer
}

// NewHandler wires the domain services on top of the given store.
// The authorizer and notifier may be nil (allow everything, notify no one).
func NewHandler(store grooming.Store, authorize grooming.Authorizer, notifier grooming.PaidNotifier) *Handler {
	sync := grooming.NewSynchronizer(store, grooming.StoredPricing{Appointments: store}, notifier)
	engine := grooming.NewEngine(store,
		grooming.NewAuditObserver(store), // audit before projection
		sync,
	)
	return &Handler{
		Store:    store,
		Engine:   engine,
		Facade:   grooming.NewFacade(engine, store, authorize),
		Ledger:   grooming.NewLedgerService(store, sync),
		Payments: grooming.NewPaymentService(store, sync),
		Sync:     sync,
	}
}

// =============================================================================
// APPOINTMENT HANDLERS
// =============================================================================

// ListAppointments returns the appointments on one calendar date.
// GET /api/appointments?date=YYYY-MM-DD
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	dateText := r.URL.Query().Get("date")
	if dateText == "" {
		dateText = time.Now().Format("2006-01-02")
	}
	date, err := time.Parse("2006-01-02", dateText)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	appts, err := h.Store.AppointmentsByDate(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list appointments", err)
		return
	}

	dtos := make([]AppointmentDTO, len(appts))
	for i, a := range appts {
		dtos[i] = toAppointmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAppointment returns a single appointment.
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.Store.GetAppointment(r.Context(), grooming.AppointmentID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentDTO(appt))
}

// CreateAppointment registers an appointment. The booking collaborator
// calls this once the client confirms a slot.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == 0 {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	status := grooming.StatusPending
	if req.Status != "" {
		status = grooming.AppointmentStatus(req.Status)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown appointment status", nil)
			return
		}
	}

	appt := grooming.Appointment{
		ID:             grooming.AppointmentID(req.ID),
		Date:           date,
		Time:           req.Time,
		Status:         status,
		Version:        1,
		ClientID:       req.ClientID,
		PetIDs:         req.PetIDs,
		ServiceIDs:     req.ServiceIDs,
		GroomerIDs:     req.GroomerIDs,
		PetName:        req.PetName,
		ServiceNames:   req.ServiceNames,
		BookedTotal:    money.Parse(req.BookedTotal),
		SubscriptionID: req.SubscriptionID,
		CreatedAt:      time.Now(),
	}
	if err := h.Store.PutAppointment(r.Context(), appt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save appointment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentDTO(appt))
}

// UpdateStatus applies an optimistic status transition.
// PUT /api/appointments/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	version, err := h.Facade.SetStatus(r.Context(),
		grooming.AppointmentID(id),
		grooming.AppointmentStatus(req.Status),
		req.Version,
		req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VersionResponse{ID: id, Version: version})
}

// QuickAction runs an agenda shortcut (finish, finish_and_paid, cancel,
// mark_paid) without the client supplying a version.
// POST /api/appointments/{id}/action
func (h *Handler) QuickAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req QuickActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	version, err := h.Facade.QuickAction(r.Context(),
		grooming.AppointmentID(id),
		grooming.QuickAction(req.Action),
		req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VersionResponse{ID: id, Version: version})
}

// BulkStatus applies one status to many appointments, best effort.
// POST /api/appointments/bulk-status
func (h *Handler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := grooming.AppointmentStatus(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown appointment status", nil)
		return
	}

	ids := make([]grooming.AppointmentID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = grooming.AppointmentID(id)
	}

	changed, err := h.Facade.BulkUpdateStatus(r.Context(), ids, status, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkStatusResponse{Requested: len(req.IDs), Changed: changed})
}

// Reschedule moves an appointment to a new slot under the same version
// discipline as a status change.
// POST /api/appointments/{id}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	version, err := h.Facade.QuickReschedule(r.Context(),
		grooming.AppointmentID(id), date, req.Time, req.Version, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, VersionResponse{ID: id, Version: version})
}

// History returns the most recent audit entries for an appointment,
// newest first, capped by the store's feed limit.
// GET /api/appointments/{id}/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.Store.AppointmentHistory(r.Context(), grooming.AppointmentID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns ledger transactions matching the filters.
// GET /api/transactions?from=YYYY-MM-DD&to=YYYY-MM-DD&status=open&kind=revenue
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var f grooming.TransactionFilter

	if v := r.URL.Query().Get("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		f.From = &from
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		f.To = &to
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := grooming.TransactionStatus(v)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown transaction status", nil)
			return
		}
		f.Status = &status
	}
	if v := r.URL.Query().Get("kind"); v != "" {
		kind := grooming.TransactionKind(v)
		f.Kind = &kind
	}

	txs, err := h.Ledger.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTransaction returns a transaction with its installments and figures.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	tx, err := h.Store.GetTransaction(ctx, grooming.TransactionID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	partials, err := h.Store.PartialsByTransaction(ctx, tx.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load payments", err)
		return
	}

	var paid int64
	dtos := make([]PartialPaymentDTO, len(partials))
	for i, p := range partials {
		dtos[i] = toPartialPaymentDTO(p)
		paid += p.Value
	}
	remaining := tx.Value - paid
	if remaining < 0 {
		remaining = 0
	}

	writeJSON(w, http.StatusOK, TransactionDetailResponse{
		Transaction: toTransactionDTO(tx),
		Payments:    dtos,
		Paid:        paid,
		Remaining:   remaining,
		PaidDisplay: money.Format(paid),
	})
}

// CreateTransaction records a manual transaction (walk-in sale, expense).
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := grooming.CreateTransactionInput{
		ClientID:      req.ClientID,
		AppointmentID: grooming.AppointmentID(req.AppointmentID),
		Value:         req.Value,
		Category:      req.Category,
		Kind:          grooming.TransactionKind(req.Kind),
		Status:        grooming.TransactionStatus(req.Status),
		Description:   req.Description,
		Recurring:     req.Recurring,
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		in.Date = date
	}

	tx, err := h.Ledger.CreateTransaction(r.Context(), in, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// SetTransactionStatus changes a transaction's status from the ledger
// side. The synchronizer pushes linked appointments the other way.
// PUT /api/transactions/{id}/status
func (h *Handler) SetTransactionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req SetTransactionStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := grooming.TransactionStatus(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown transaction status", nil)
		return
	}

	tx, err := h.Ledger.SetStatus(r.Context(), grooming.TransactionID(id), status, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(tx))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RegisterPayment posts an installment and returns the settlement figures.
// POST /api/payments
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	var req RegisterPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := grooming.RegisterPartialInput{
		TransactionID: grooming.TransactionID(req.TransactionID),
		Value:         req.Value,
		Method:        grooming.PaymentMethod(req.Method),
		LoyaltyCredit: req.LoyaltyCredit,
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		in.Date = date
	}

	result, err := h.Payments.RegisterPartial(r.Context(), in, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResultDTO(result))
}

// DeletePayment removes an installment and recomputes settlement.
// DELETE /api/payments/{id}?actor=...
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	actor := r.URL.Query().Get("actor")
	result, err := h.Payments.DeletePartial(r.Context(), grooming.PartialPaymentID(id), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResultDTO(result))
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// QueryAudit returns audit entries matching the filters.
// GET /api/audit?appointment_id=&transaction_id=&actor=&action=
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	var f grooming.AuditFilter

	if v := r.URL.Query().Get("appointment_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid appointment_id", err)
			return
		}
		f.AppointmentID = grooming.AppointmentID(id)
	}
	if v := r.URL.Query().Get("transaction_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid transaction_id", err)
			return
		}
		f.TransactionID = grooming.TransactionID(id)
	}
	f.Actor = r.URL.Query().Get("actor")
	if v := r.URL.Query().Get("action"); v != "" {
		f.Actions = []grooming.AuditAction{grooming.AuditAction(v)}
	}

	entries, err := h.Store.QueryAudit(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case grooming.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case grooming.IsConflict(err):
		writeError(w, http.StatusConflict, "Version conflict, reload and retry", err)
	case errors.Is(err, grooming.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Not allowed", err)
	case errors.Is(err, grooming.ErrExceedsRemainingBalance):
		resp := ErrorResponse{Error: "Payment exceeds remaining balance", Details: err.Error()}
		var eb *grooming.ExceedsBalanceError
		if errors.As(err, &eb) {
			remaining := eb.Remaining
			resp.Remaining = &remaining
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, grooming.ErrBusinessRule):
		writeError(w, http.StatusUnprocessableEntity, "Business rule violation", err)
	case errors.Is(err, grooming.ErrInvalidStatus), errors.Is(err, grooming.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
