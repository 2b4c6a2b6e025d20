package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/grooming-engine/api"
	memstore "github.com/warp/grooming-engine/grooming/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	handler := api.NewHandler(memstore.NewMemory(), nil, nil)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func createAppointment(t *testing.T, srv *httptest.Server, id int64, extra map[string]any) {
	t.Helper()

	body := map[string]any{
		"id":            id,
		"date":          "2026-03-10",
		"time":          "14:30",
		"client_id":     7,
		"pet_name":      "Rex",
		"service_names": []string{"Bath", "Trim"},
		"booked_total":  "129,90",
	}
	for k, v := range extra {
		body[k] = v
	}
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/appointments", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// APPOINTMENT ENDPOINTS
// =============================================================================

func TestStatusUpdate_HappyPath(t *testing.T) {
	srv := newTestServer(t)
	createAppointment(t, srv, 1, nil)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/1/status", map[string]any{
		"status":  "finished",
		"version": 1,
		"actor":   "alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["version"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/appointments/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "finished", body["status"])
	assert.Equal(t, "129,90", body["booked_total"])
}

func TestStatusUpdate_StaleVersion_Conflict(t *testing.T) {
	srv := newTestServer(t)
	createAppointment(t, srv, 2, nil)

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/2/status", map[string]any{
		"status": "finished", "version": 1, "actor": "alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Second client still holds version 1.
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/appointments/2/status", map[string]any{
		"status": "canceled", "version": 1, "actor": "bob",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStatusUpdate_UnknownStatus(t *testing.T) {
	srv := newTestServer(t)
	createAppointment(t, srv, 3, nil)

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/3/status", map[string]any{
		"status": "done", "version": 1, "actor": "alice",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusUpdate_Subscription_FinishedPaidRejected(t *testing.T) {
	// The manual status dropdown must not reach finished_paid on a
	// subscription-linked appointment, same as the quick actions.
	srv := newTestServer(t)
	createAppointment(t, srv, 14, map[string]any{"subscription_id": 5})

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/appointments/14/status", map[string]any{
		"status": "finished_paid", "version": 1, "actor": "alice",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/appointments/14", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, float64(1), body["version"])
}

func TestGetAppointment_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/appointments/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQuickAction_SubscriptionRule_Unprocessable(t *testing.T) {
	srv := newTestServer(t)
	createAppointment(t, srv, 4, map[string]any{"subscription_id": 5})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/appointments/4/action", map[string]any{
		"action": "finish_and_paid", "actor": "alice",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBulkStatus_ReportsChangedCount(t *testing.T) {
	srv := newTestServer(t)
	createAppointment(t, srv, 5, nil)
	createAppointment(t, srv, 6, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/appointments/bulk-status", map[string]any{
		"ids": []int64{5, 6, 999}, "status": "finished", "actor": "alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), body["requested"])
	assert.Equal(t, float64(2), body["changed"])
}

func TestReschedule_And_History(t *testing.T) {
	srv := newTestServer(t)
	createAppointment(t, srv, 7, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/appointments/7/reschedule", map[string]any{
		"date": "2026-03-12", "time": "09:00", "version": 1, "actor": "alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["version"])

	req, err := http.Get(srv.URL + "/api/appointments/7/history")
	require.NoError(t, err)
	defer req.Body.Close()

	var entries []map[string]any
	require.NoError(t, json.NewDecoder(req.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "rescheduled", entries[0]["action"])

	// A client still holding version 1 is told to refresh.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/appointments/7/reschedule", map[string]any{
		"date": "2026-03-13", "time": "11:00", "version": 1, "actor": "bob",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListAppointments_ByDate(t *testing.T) {
	srv := newTestServer(t)
	createAppointment(t, srv, 8, map[string]any{"time": "10:00"})
	createAppointment(t, srv, 9, map[string]any{"time": "08:00"})
	createAppointment(t, srv, 10, map[string]any{"date": "2026-03-11"})

	req, err := http.Get(srv.URL + "/api/appointments?date=2026-03-10")
	require.NoError(t, err)
	defer req.Body.Close()

	var appts []map[string]any
	require.NoError(t, json.NewDecoder(req.Body).Decode(&appts))
	require.Len(t, appts, 2)
	assert.Equal(t, "08:00", appts[0]["time"], "ordered by time of day")
}

// =============================================================================
// TRANSACTION + PAYMENT ENDPOINTS
// =============================================================================

// finishViaAPI runs the forward sync so the appointment owns a transaction,
// and returns that transaction's id.
func finishViaAPI(t *testing.T, srv *httptest.Server, apptID int64) int64 {
	t.Helper()

	resp, _ := doJSON(t, http.MethodPost, srv.URL+fmt.Sprintf("/api/appointments/%d/action", apptID), map[string]any{
		"action": "finish", "actor": "alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.Get(srv.URL + "/api/transactions")
	require.NoError(t, err)
	defer req.Body.Close()

	var txs []map[string]any
	require.NoError(t, json.NewDecoder(req.Body).Decode(&txs))
	for _, tx := range txs {
		if int64(tx["appointment_id"].(float64)) == apptID {
			return int64(tx["id"].(float64))
		}
	}
	t.Fatalf("no transaction owns appointment %d", apptID)
	return 0
}

func TestPaymentFlow_OverpaymentReturnsRemaining(t *testing.T) {
	// GIVEN: A 129,90 open transaction
	// WHEN: 100,00 is paid, then another 100,00 is attempted
	// THEN: The second request gets 422 with the remaining figure attached

	srv := newTestServer(t)
	createAppointment(t, srv, 20, nil)
	txID := finishViaAPI(t, srv, 20)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payments", map[string]any{
		"transaction_id": txID, "value": "100,00", "method": "pix", "actor": "carol",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "open", body["status"])
	assert.Equal(t, float64(2990), body["remaining_cents"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/payments", map[string]any{
		"transaction_id": txID, "value": "100,00", "method": "pix", "actor": "carol",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, float64(2990), body["remaining_cents"])
}

func TestPaymentFlow_SettleAndDelete(t *testing.T) {
	srv := newTestServer(t)
	createAppointment(t, srv, 21, nil)
	txID := finishViaAPI(t, srv, 21)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payments", map[string]any{
		"transaction_id": txID, "value": "129,90", "method": "card", "actor": "carol",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "paid", body["status"])
	paymentID := int64(body["payment_id"].(float64))

	// The appointment follows the settlement.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/appointments/21", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "finished_paid", body["status"])

	// Deleting the installment reopens both sides.
	resp, body = doJSON(t, http.MethodDelete,
		srv.URL+fmt.Sprintf("/api/payments/%d?actor=carol", paymentID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "open", body["status"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/appointments/21", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "finished", body["status"])
}

func TestCreateTransaction_ManualExpense(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", map[string]any{
		"value":       "350,00",
		"category":    "Supplies",
		"kind":        "expense",
		"description": "Shampoo restock",
		"recurring":   true,
		"actor":       "carol",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(35000), body["value_cents"])
	assert.Equal(t, "350,00", body["value"])
	assert.Equal(t, "open", body["status"])
	assert.Equal(t, true, body["recurring"])
}

func TestTransactionDetail_IncludesFigures(t *testing.T) {
	srv := newTestServer(t)
	createAppointment(t, srv, 22, nil)
	txID := finishViaAPI(t, srv, 22)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/payments", map[string]any{
		"transaction_id": txID, "value": "29,90", "method": "cash", "actor": "carol",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+fmt.Sprintf("/api/transactions/%d", txID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2990), body["paid_cents"])
	assert.Equal(t, float64(10000), body["remaining_cents"])
	payments := body["payments"].([]any)
	assert.Len(t, payments, 1)
}

func TestSetTransactionStatus_ReverseSync(t *testing.T) {
	srv := newTestServer(t)
	createAppointment(t, srv, 23, nil)
	txID := finishViaAPI(t, srv, 23)

	resp, body := doJSON(t, http.MethodPut, srv.URL+fmt.Sprintf("/api/transactions/%d/status", txID), map[string]any{
		"status": "paid", "actor": "carol",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paid", body["status"])

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/appointments/23", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "finished_paid", body["status"])
}
