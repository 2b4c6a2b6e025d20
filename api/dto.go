/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY FORMAT:
  All monetary amounts cross the wire twice: as integer minor units
  (cents) for machines and as localized text ("1.234,56") for display.
  Inbound amounts are localized text, parsed by the money codec.

TYPES:
  Appointments:
    AppointmentDTO, UpdateStatusRequest, QuickActionRequest,
    RescheduleRequest, BulkStatusRequest

  Transactions:
    TransactionDTO, CreateTransactionRequest, SetTransactionStatusRequest

  Payments:
    RegisterPaymentRequest, PaymentResultDTO, PartialPaymentDTO

  Audit:
    AuditEntryDTO

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - money/money.go: Localized amount codec
*/
package api

import (
	"time"

	"github.com/warp/grooming-engine/grooming"
	"github.com/warp/grooming-engine/money"
)

// =============================================================================
// APPOINTMENT TYPES
// =============================================================================

// AppointmentDTO represents an appointment in API responses.
type AppointmentDTO struct {
	ID             int64    `json:"id"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`
	Status         string   `json:"status"`
	Version        int64    `json:"version"`
	ClientID       int64    `json:"client_id"`
	PetIDs         []int64  `json:"pet_ids"`
	ServiceIDs     []int64  `json:"service_ids"`
	GroomerIDs     []int64  `json:"groomer_ids"`
	PetName        string   `json:"pet_name"`
	ServiceNames   []string `json:"service_names"`
	BookedTotal    int64    `json:"booked_total_cents"`
	BookedDisplay  string   `json:"booked_total"`
	SubscriptionID int64    `json:"subscription_id,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
}

func toAppointmentDTO(a grooming.Appointment) AppointmentDTO {
	dto := AppointmentDTO{
		ID:             int64(a.ID),
		Date:           a.Date.Format("2006-01-02"),
		Time:           a.Time,
		Status:         string(a.Status),
		Version:        a.Version,
		ClientID:       a.ClientID,
		PetIDs:         a.PetIDs,
		ServiceIDs:     a.ServiceIDs,
		GroomerIDs:     a.GroomerIDs,
		PetName:        a.PetName,
		ServiceNames:   a.ServiceNames,
		BookedTotal:    a.BookedTotal,
		BookedDisplay:  money.Format(a.BookedTotal),
		SubscriptionID: a.SubscriptionID,
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// CreateAppointmentRequest is the request to register an appointment.
// Normally the booking collaborator calls this, not the agenda UI.
type CreateAppointmentRequest struct {
	ID             int64    `json:"id"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`
	Status         string   `json:"status,omitempty"`
	ClientID       int64    `json:"client_id"`
	PetIDs         []int64  `json:"pet_ids,omitempty"`
	ServiceIDs     []int64  `json:"service_ids,omitempty"`
	GroomerIDs     []int64  `json:"groomer_ids,omitempty"`
	PetName        string   `json:"pet_name,omitempty"`
	ServiceNames   []string `json:"service_names,omitempty"`
	BookedTotal    string   `json:"booked_total,omitempty"` // localized text
	SubscriptionID int64    `json:"subscription_id,omitempty"`
}

// UpdateStatusRequest carries an optimistic status transition.
type UpdateStatusRequest struct {
	Status  string `json:"status"`
	Version int64  `json:"version"`
	Actor   string `json:"actor"`
}

// QuickActionRequest triggers an agenda shortcut on one appointment.
type QuickActionRequest struct {
	Action string `json:"action"` // finish | finish_and_paid | cancel | mark_paid
	Actor  string `json:"actor"`
}

// BulkStatusRequest applies one status to many appointments, best effort.
type BulkStatusRequest struct {
	IDs    []int64 `json:"ids"`
	Status string  `json:"status"`
	Actor  string  `json:"actor"`
}

// BulkStatusResponse reports how many appointments actually changed.
type BulkStatusResponse struct {
	Requested int `json:"requested"`
	Changed   int `json:"changed"`
}

// RescheduleRequest moves an appointment to a new date/time slot.
type RescheduleRequest struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Time    string `json:"time"` // HH:MM
	Version int64  `json:"version"` // 0 = apply against the current version
	Actor   string `json:"actor"`
}

// VersionResponse returns the new version after an optimistic write.
type VersionResponse struct {
	ID      int64 `json:"id"`
	Version int64 `json:"version"`
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// TransactionDTO represents a ledger transaction in API responses.
type TransactionDTO struct {
	ID            int64  `json:"id"`
	ClientID      int64  `json:"client_id,omitempty"`
	AppointmentID int64  `json:"appointment_id,omitempty"`
	Date          string `json:"date"`
	Value         int64  `json:"value_cents"`
	ValueDisplay  string `json:"value"`
	Category      string `json:"category"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	Description   string `json:"description"`
	Recurring     bool   `json:"recurring"`
	CreatedAt     string `json:"created_at,omitempty"`
}

func toTransactionDTO(tx grooming.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:            int64(tx.ID),
		ClientID:      tx.ClientID,
		AppointmentID: int64(tx.AppointmentID),
		Date:          tx.Date.Format("2006-01-02"),
		Value:         tx.Value,
		ValueDisplay:  money.Format(tx.Value),
		Category:      tx.Category,
		Kind:          string(tx.Kind),
		Status:        string(tx.Status),
		Description:   tx.Description,
		Recurring:     tx.Recurring,
	}
	if !tx.CreatedAt.IsZero() {
		dto.CreatedAt = tx.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// TransactionDetailResponse is a transaction plus its installments and
// the recomputed settlement figures.
type TransactionDetailResponse struct {
	Transaction TransactionDTO      `json:"transaction"`
	Payments    []PartialPaymentDTO `json:"payments"`
	Paid        int64               `json:"paid_cents"`
	Remaining   int64               `json:"remaining_cents"`
	PaidDisplay string              `json:"paid"`
}

// CreateTransactionRequest is the request to record a manual transaction.
type CreateTransactionRequest struct {
	ClientID      int64  `json:"client_id,omitempty"`
	AppointmentID int64  `json:"appointment_id,omitempty"`
	Date          string `json:"date,omitempty"`
	Value         string `json:"value"` // localized text
	Category      string `json:"category"`
	Kind          string `json:"kind"` // revenue | expense
	Status        string `json:"status,omitempty"`
	Description   string `json:"description,omitempty"`
	Recurring     bool   `json:"recurring,omitempty"`
	Actor         string `json:"actor"`
}

// SetTransactionStatusRequest updates a transaction's status directly
// (the ledger page's own status control).
type SetTransactionStatusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// PartialPaymentDTO represents one installment in API responses.
type PartialPaymentDTO struct {
	ID            int64  `json:"id"`
	TransactionID int64  `json:"transaction_id"`
	Date          string `json:"date"`
	Value         int64  `json:"value_cents"`
	ValueDisplay  string `json:"value"`
	Method        string `json:"method"`
}

func toPartialPaymentDTO(p grooming.PartialPayment) PartialPaymentDTO {
	return PartialPaymentDTO{
		ID:            int64(p.ID),
		TransactionID: int64(p.TransactionID),
		Date:          p.Date.Format("2006-01-02"),
		Value:         p.Value,
		ValueDisplay:  money.Format(p.Value),
		Method:        string(p.Method),
	}
}

// RegisterPaymentRequest posts an installment against a transaction.
type RegisterPaymentRequest struct {
	TransactionID int64  `json:"transaction_id"`
	Date          string `json:"date,omitempty"`
	Value         string `json:"value"` // localized text
	Method        string `json:"method"`
	LoyaltyCredit int64  `json:"loyalty_credit_cents,omitempty"`
	Actor         string `json:"actor"`
}

// PaymentResultDTO reports settlement figures after a payment mutation.
type PaymentResultDTO struct {
	PaymentID        int64  `json:"payment_id,omitempty"`
	LoyaltyPaymentID int64  `json:"loyalty_payment_id,omitempty"`
	Status           string `json:"status"`
	Total            int64  `json:"total_cents"`
	Paid             int64  `json:"paid_cents"`
	Remaining        int64  `json:"remaining_cents"`
	RemainingDisplay string `json:"remaining"`
}

func toPaymentResultDTO(r grooming.PaymentResult) PaymentResultDTO {
	return PaymentResultDTO{
		PaymentID:        int64(r.PaymentID),
		LoyaltyPaymentID: int64(r.LoyaltyPaymentID),
		Status:           string(r.Status),
		Total:            r.Total,
		Paid:             r.Paid,
		Remaining:        r.Remaining,
		RemainingDisplay: money.Format(r.Remaining),
	}
}

// =============================================================================
// AUDIT TYPES
// =============================================================================

// AuditEntryDTO represents one audit-trail entry.
type AuditEntryDTO struct {
	ID            string            `json:"id"`
	Timestamp     string            `json:"timestamp"`
	Actor         string            `json:"actor"`
	Action        string            `json:"action"`
	AppointmentID int64             `json:"appointment_id,omitempty"`
	TransactionID int64             `json:"transaction_id,omitempty"`
	FromValue     string            `json:"from_value,omitempty"`
	ToValue       string            `json:"to_value,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func toAuditEntryDTO(e grooming.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:            e.ID,
		Timestamp:     e.Timestamp.Format(time.RFC3339),
		Actor:         e.Actor,
		Action:        string(e.Action),
		AppointmentID: int64(e.AppointmentID),
		TransactionID: int64(e.TransactionID),
		FromValue:     e.FromValue,
		ToValue:       e.ToValue,
		Metadata:      e.Metadata,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`

	// Settlement figures attached when a payment exceeds the remaining
	// balance, so the client can re-render without a second round trip.
	Remaining *int64 `json:"remaining_cents,omitempty"`
}
