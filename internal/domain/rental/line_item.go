package rental

import "time"

// LineItem is one charge on an agreement. Inactive items stay on the
// agreement but count toward nothing; payment status derives from the
// paid amount.
type LineItem struct {
	ID              string    `json:"id"`
	AgreementID     string    `json:"agreement_id"`
	Description     string    `json:"description"`
	Active          bool      `json:"active"`
	AmountCents     int64     `json:"amount_cents"`
	AmountPaidCents int64     `json:"amount_paid_cents"`
	DueOn           time.Time `json:"due_on"`
	CreatedAt       time.Time `json:"created_at"`
}

// Subject interface implementation
func (li *LineItem) GetID() string   { return li.ID }
func (li *LineItem) GetType() string { return LineItemType }

// Open reports whether nothing has been paid yet.
func (li *LineItem) Open() bool {
	return li.AmountPaidCents == 0
}

// Partial reports whether the item is partly but not fully paid.
func (li *LineItem) Partial() bool {
	return li.AmountPaidCents > 0 && li.AmountPaidCents < li.AmountCents
}

// Settled reports whether the item is fully paid.
func (li *LineItem) Settled() bool {
	return li.AmountPaidCents >= li.AmountCents
}
