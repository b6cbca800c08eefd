package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/memento/internal/domain/rental"
	"github.com/example/memento/internal/infrastructure/store/mocks"
	"github.com/example/memento/internal/memento"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	registry := memento.NewRegistry()
	require.NoError(t, rental.RegisterTypes(registry))

	snapshots := mocks.NewMockSnapshotStore()
	serializer := memento.NewSerializer(registry, snapshots)
	svc := rental.NewService(rental.NewRepository(), registry, serializer, snapshots)

	return NewRouter(NewHandlers(svc, nil))
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []any {
	t.Helper()
	var out []any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// createTestAgreement drives a customer and a draft agreement through the
// API and returns the agreement id.
func createTestAgreement(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/customers", map[string]any{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	customerID := decodeMap(t, rec)["id"].(string)

	rec = doRequest(t, router, http.MethodPost, "/agreements", map[string]any{
		"customer_id":      customerID,
		"daily_rate_cents": 2500,
		"starts_on":        "2024-03-01",
		"ends_on":          "2024-03-08",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeMap(t, rec)["id"].(string)
}

func addTestItem(t *testing.T, router http.Handler, agreementID, description string, amountCents int64) string {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/agreements/"+agreementID+"/items", map[string]any{
		"description":  description,
		"amount_cents": amountCents,
		"due_on":       "2024-03-08",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeMap(t, rec)["id"].(string)
}

// ============================================
// Customer and Agreement Tests
// ============================================

func TestAPI_CreateCustomer(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/customers", map[string]any{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeMap(t, rec)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "Ada Lovelace", body["name"])
}

func TestAPI_CreateCustomer_MissingName(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/customers", map[string]any{
		"email": "ada@example.com",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_CreateAgreement(t *testing.T) {
	router := newTestRouter(t)

	id := createTestAgreement(t, router)

	rec := doRequest(t, router, http.MethodGet, "/agreements/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "draft", body["status"])
	assert.Equal(t, false, body["locked"])
	assert.Equal(t, false, body["remembering"])
	assert.Equal(t, "2024-03-01", body["starts_on"])
	assert.Equal(t, "2024-03-08", body["ends_on"])

	customer, ok := body["customer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", customer["name"])
}

func TestAPI_CreateAgreement_UnknownCustomer(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/agreements", map[string]any{
		"customer_id":      "nope",
		"daily_rate_cents": 2500,
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_GetAgreement_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/agreements/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListAgreements(t *testing.T) {
	router := newTestRouter(t)
	createTestAgreement(t, router)
	createTestAgreement(t, router)

	rec := doRequest(t, router, http.MethodGet, "/agreements", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)
}

// ============================================
// Line Item Tests
// ============================================

func TestAPI_Items(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)
	cameraID := addTestItem(t, router, id, "Camera body", 5000)
	addTestItem(t, router, id, "Tripod", 1500)

	rec := doRequest(t, router, http.MethodGet, "/agreements/"+id+"/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, float64(2), body["size"])
	assert.Equal(t, "items", body["name"])
	assert.Equal(t, rental.LineItemType, body["label"])
	assert.Equal(t, []any{"active", "open", "partial"}, body["scopes"], "declared scopes ride along")

	// Settle the camera; the open scope drops to the tripod.
	rec = doRequest(t, router, http.MethodPost, "/agreements/"+id+"/items/"+cameraID+"/payments", map[string]any{
		"amount_cents": 5000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/agreements/"+id+"/items?scope=open", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeMap(t, rec)
	require.Equal(t, float64(1), body["size"])
	elements := body["elements"].([]any)
	assert.Equal(t, "Tripod", elements[0].(map[string]any)["description"])
}

func TestAPI_Items_SumAndOrder(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)
	addTestItem(t, router, id, "Camera body", 5000)
	addTestItem(t, router, id, "Tripod", 1500)

	rec := doRequest(t, router, http.MethodGet, "/agreements/"+id+"/items?sum=amount_cents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "amount_cents", body["sum_field"])
	assert.Equal(t, float64(6500), body["sum"])

	rec = doRequest(t, router, http.MethodGet, "/agreements/"+id+"/items?order_by=amount_cents&dir=desc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	elements := decodeMap(t, rec)["elements"].([]any)
	require.Len(t, elements, 2)
	assert.Equal(t, "Camera body", elements[0].(map[string]any)["description"])
}

func TestAPI_UpdateItem(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)
	itemID := addTestItem(t, router, id, "Tripod", 1500)

	rec := doRequest(t, router, http.MethodPut, "/agreements/"+id+"/items/"+itemID, map[string]any{
		"active": false,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeMap(t, rec)["active"])
}

func TestAPI_AddItem_InvalidAmount(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)

	rec := doRequest(t, router, http.MethodPost, "/agreements/"+id+"/items", map[string]any{
		"description":  "Free",
		"amount_cents": 0,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ============================================
// Lifecycle Tests
// ============================================

func TestAPI_Advance(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)

	rec := doRequest(t, router, http.MethodPost, "/agreements/"+id+"/advance", map[string]any{
		"status": "approved",
		"actor":  "clerk",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decodeMap(t, rec)["status"])
}

func TestAPI_Advance_InvalidTransition(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)

	rec := doRequest(t, router, http.MethodPost, "/agreements/"+id+"/advance", map[string]any{
		"status": "rented",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAPI_Capture(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)
	addTestItem(t, router, id, "Camera body", 5000)

	rec := doRequest(t, router, http.MethodPost, "/agreements/"+id+"/capture", map[string]any{
		"actor": "clerk",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "draft", body["state"])
	assert.Equal(t, "clerk", body["created_by"])
}

func TestAPI_Capture_AsyncUnavailable(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)

	rec := doRequest(t, router, http.MethodPost, "/agreements/"+id+"/capture?async=1", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ============================================
// Overlay Tests
// ============================================

func TestAPI_Lock(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)

	// Nothing captured yet.
	rec := doRequest(t, router, http.MethodPost, "/agreements/"+id+"/lock", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/agreements/"+id+"/capture", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/agreements/"+id+"/lock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, true, body["locked"])
	assert.Equal(t, true, body["remembering"])
	assert.NotEmpty(t, body["snapshot_id"])

	// Mutations are rejected while locked.
	rec = doRequest(t, router, http.MethodPost, "/agreements/"+id+"/items", map[string]any{
		"description":  "Lens",
		"amount_cents": 3000,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/agreements/"+id+"/unlock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeMap(t, rec)
	assert.Equal(t, false, body["locked"])
	assert.Equal(t, false, body["remembering"])
}

func TestAPI_ViewState(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)

	rec := doRequest(t, router, http.MethodPost, "/agreements/"+id+"/view-state", map[string]any{
		"state": "approved",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "no snapshot at that state yet")

	for _, status := range []string{"approved", "rented"} {
		rec = doRequest(t, router, http.MethodPost, "/agreements/"+id+"/advance", map[string]any{
			"status": status,
			"actor":  "clerk",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/agreements/"+id+"/view-state", map[string]any{
		"state": "approved",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "approved", body["status"], "reads come from the adopted snapshot")
	assert.Equal(t, "approved", body["active_state"])
	assert.Equal(t, true, body["remembering"])
	assert.Equal(t, false, body["locked"])

	rec = doRequest(t, router, http.MethodPost, "/agreements/"+id+"/unlock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rented", decodeMap(t, rec)["status"])
}

func TestAPI_ViewState_MissingState(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)

	rec := doRequest(t, router, http.MethodPost, "/agreements/"+id+"/view-state", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================
// Snapshot Tests
// ============================================

func TestAPI_Snapshots(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)

	rec := doRequest(t, router, http.MethodPost, "/agreements/"+id+"/capture", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(t, router, http.MethodPost, "/agreements/"+id+"/advance", map[string]any{
		"status": "approved",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/agreements/"+id+"/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)

	rec = doRequest(t, router, http.MethodGet, "/agreements/"+id+"/snapshots/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decodeMap(t, rec)["state"])

	rec = doRequest(t, router, http.MethodGet, "/agreements/"+id+"/snapshots/latest?state=draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "draft", decodeMap(t, rec)["state"])

	rec = doRequest(t, router, http.MethodGet, "/agreements/"+id+"/snapshots/latest?state=returned", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================
// Routing Tests
// ============================================

func TestAPI_Health(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeMap(t, rec)["status"])
}

func TestAPI_UnknownRoute(t *testing.T) {
	router := newTestRouter(t)
	id := createTestAgreement(t, router)

	rec := doRequest(t, router, http.MethodGet, "/agreements/"+id+"/bogus", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodDelete, "/customers", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
