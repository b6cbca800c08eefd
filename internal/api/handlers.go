package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/memento/internal/dispatch"
	"github.com/example/memento/internal/domain/rental"
	"github.com/example/memento/internal/memento"
)

type Handlers struct {
	svc       *rental.Service
	requester *dispatch.Requester
}

// NewHandlers wires the HTTP surface. requester may be nil when the
// deferred-capture path is disabled; async capture requests then fail
// with 503.
func NewHandlers(svc *rental.Service, requester *dispatch.Requester) *Handlers {
	return &Handlers{
		svc:       svc,
		requester: requester,
	}
}

// Customer Handlers

func (h *Handlers) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Customer name required", http.StatusBadRequest)
		return
	}

	customer, err := h.svc.CreateCustomer(r.Context(), req.Name, req.Email, req.Phone)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, customer)
}

// Agreement Handlers

func (h *Handlers) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID     string `json:"customer_id"`
		DailyRateCents int64  `json:"daily_rate_cents"`
		StartsOn       string `json:"starts_on"`
		EndsOn         string `json:"ends_on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	startsOn, err := parseDay(req.StartsOn)
	if err != nil {
		http.Error(w, "Invalid starts_on: "+err.Error(), http.StatusBadRequest)
		return
	}
	endsOn, err := parseDay(req.EndsOn)
	if err != nil {
		http.Error(w, "Invalid ends_on: "+err.Error(), http.StatusBadRequest)
		return
	}

	agreement, err := h.svc.CreateAgreement(r.Context(), req.CustomerID, req.DailyRateCents, startsOn, endsOn)
	if err != nil {
		respondError(w, err)
		return
	}
	view, err := h.svc.Present(r.Context(), agreement.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

func (h *Handlers) GetAgreements(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.PresentAll(r.Context()))
}

func (h *Handlers) GetAgreement(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Present(r.Context(), agreementID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Line Item Handlers

func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		AmountCents int64  `json:"amount_cents"`
		DueOn       string `json:"due_on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dueOn, err := parseDay(req.DueOn)
	if err != nil {
		http.Error(w, "Invalid due_on: "+err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.svc.AddItem(r.Context(), agreementID(r), req.Description, req.AmountCents, dueOn)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// GetItems resolves the items association through the overlay, so a
// locked agreement answers with the items recorded in its snapshot.
// Scopes chain by intersection: ?scope=active,open keeps items in both.
func (h *Handlers) GetItems(w http.ResponseWriter, r *http.Request) {
	var scopes []string
	if raw := r.URL.Query().Get("scope"); raw != "" {
		scopes = strings.Split(raw, ",")
	}

	view, err := h.svc.ItemsView(r.Context(), agreementID(r), scopes...)
	if err != nil {
		respondError(w, err)
		return
	}

	if field := r.URL.Query().Get("order_by"); field != "" {
		dir := memento.Ascending
		if r.URL.Query().Get("dir") == "desc" {
			dir = memento.Descending
		}
		view = view.OrderBy(field, dir)
	}

	out := map[string]any{
		"name":     view.Name(),
		"label":    view.Label(),
		"size":     view.Size(),
		"scopes":   h.svc.ItemScopes(),
		"elements": view.Docs(),
	}
	if field := r.URL.Query().Get("sum"); field != "" {
		out["sum_field"] = field
		out["sum"] = view.Sum(field)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.svc.SetItemActive(r.Context(), agreementID(r), itemID(r), req.Active)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *Handlers) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AmountCents int64 `json:"amount_cents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.svc.RecordPayment(r.Context(), agreementID(r), itemID(r), req.AmountCents)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// Lifecycle Handlers

func (h *Handlers) Advance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Actor  string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := agreementID(r)
	if _, err := h.svc.Advance(r.Context(), id, rental.Status(req.Status), req.Actor); err != nil {
		respondError(w, err)
		return
	}
	view, err := h.svc.Present(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Capture appends a snapshot synchronously, or enqueues a deferred
// capture when called with ?async=1.
func (h *Handlers) Capture(w http.ResponseWriter, r *http.Request) {
	id := agreementID(r)

	var req struct {
		Actor string `json:"actor"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if isAsync(r) {
		if h.requester == nil {
			http.Error(w, "Deferred capture unavailable", http.StatusServiceUnavailable)
			return
		}
		if _, err := h.svc.Present(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		if err := h.requester.RequestCapture(r.Context(), rental.AgreementType, id, req.Actor); err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"message": "Capture requested"})
		return
	}

	snap, err := h.svc.Capture(r.Context(), id, req.Actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

// Overlay Handlers

func (h *Handlers) Lock(w http.ResponseWriter, r *http.Request) {
	id := agreementID(r)
	locked, err := h.svc.Lock(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if !locked {
		http.Error(w, "No snapshot to lock onto", http.StatusConflict)
		return
	}

	view, err := h.svc.Present(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) ViewState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.State == "" {
		http.Error(w, "State required", http.StatusBadRequest)
		return
	}

	id := agreementID(r)
	viewing, err := h.svc.ViewState(r.Context(), id, req.State)
	if err != nil {
		respondError(w, err)
		return
	}
	if !viewing {
		http.Error(w, "No snapshot at state "+req.State, http.StatusConflict)
		return
	}

	view, err := h.svc.Present(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) Unlock(w http.ResponseWriter, r *http.Request) {
	id := agreementID(r)
	if err := h.svc.Unlock(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}

	view, err := h.svc.Present(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// Snapshot Handlers

func (h *Handlers) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.svc.Snapshots(r.Context(), agreementID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshots)
}

func (h *Handlers) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	snap, err := h.svc.LatestSnapshot(r.Context(), agreementID(r), state)
	if err != nil {
		respondError(w, err)
		return
	}
	if snap == nil {
		http.Error(w, "No snapshot found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rental.ErrAgreementNotFound),
		errors.Is(err, rental.ErrCustomerNotFound),
		errors.Is(err, rental.ErrItemNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, rental.ErrAgreementLocked):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, rental.ErrInvalidStatus),
		errors.Is(err, rental.ErrAgreementReturned),
		errors.Is(err, rental.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// agreementID extracts the agreement id segment from /agreements/... paths.
func agreementID(r *http.Request) string {
	segs := pathSegments(r.URL.Path, "/agreements/")
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

// itemID extracts the item id from /agreements/{id}/items/{itemID}... paths.
func itemID(r *http.Request) string {
	segs := pathSegments(r.URL.Path, "/agreements/")
	if len(segs) < 3 || segs[1] != "items" {
		return ""
	}
	return segs[2]
}

func pathSegments(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func isAsync(r *http.Request) bool {
	v := r.URL.Query().Get("async")
	return v == "1" || v == "true"
}

// parseDay accepts date-only or RFC3339 timestamps.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
