package rental

import "github.com/example/memento/internal/memento"

// AgreementView is a point-in-time rendering of an agreement through its
// overlay accessors, so a locked or state-viewing agreement presents its
// snapshot's values. Views are materialized while the service mutex is
// held; live *Agreement fields must not be read outside it.
type AgreementView struct {
	ID              string           `json:"id"`
	Number          string           `json:"number"`
	Status          string           `json:"status"`
	CustomerID      string           `json:"customer_id"`
	DailyRateCents  int64            `json:"daily_rate_cents"`
	BalanceDueCents int64            `json:"balance_due_cents"`
	Locked          bool             `json:"locked"`
	Remembering     bool             `json:"remembering"`
	ActiveState     string           `json:"active_state,omitempty"`
	SnapshotID      string           `json:"snapshot_id,omitempty"`
	StartsOn        string           `json:"starts_on,omitempty"`
	EndsOn          string           `json:"ends_on,omitempty"`
	Customer        memento.Document `json:"customer,omitempty"`
}

// presentAgreement renders a. Callers hold the service mutex.
func presentAgreement(a *Agreement) *AgreementView {
	v := &AgreementView{
		ID:              a.GetID(),
		Number:          a.StringAttr("number"),
		Status:          a.StringAttr("status"),
		CustomerID:      a.StringAttr("customer_id"),
		DailyRateCents:  a.IntAttr("daily_rate_cents"),
		BalanceDueCents: a.IntAttr("balance_due_cents"),
		Locked:          a.Locked,
		Remembering:     a.Remembering(),
		ActiveState:     a.ActiveState(),
	}
	if snap := a.Snapshot(); snap != nil {
		v.SnapshotID = snap.ID
	}
	if t, ok := a.TimeAttr("starts_on"); ok && !t.IsZero() {
		v.StartsOn = t.Format("2006-01-02")
	}
	if t, ok := a.TimeAttr("ends_on"); ok && !t.IsZero() {
		v.EndsOn = t.Format("2006-01-02")
	}
	if view, ok := a.Attr("customer").(*memento.ObjectView); ok && view != nil {
		v.Customer = view.Doc()
	}
	return v
}
