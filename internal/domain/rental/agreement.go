// Package rental is the demo domain wired through the snapshot engine: a
// rental agreement with line items and a customer, captured at every
// lifecycle change and viewable at any past state.
package rental

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/memento/internal/memento"
)

const (
	AgreementType = "RentalAgreement"
	LineItemType  = "RentalLineItem"
	CustomerType  = "RentalCustomer"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusRented   Status = "rented"
	StatusReturned Status = "returned"
)

var (
	ErrAgreementNotFound = errors.New("agreement not found")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrItemNotFound      = errors.New("line item not found")
	ErrInvalidStatus     = errors.New("invalid agreement status transition")
	ErrAgreementReturned = errors.New("agreement is already returned")
	ErrAgreementLocked   = errors.New("agreement is locked")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// validTransitions defines allowed status transitions
var validTransitions = map[Status][]Status{
	StatusDraft:    {StatusApproved},
	StatusApproved: {StatusRented},
	StatusRented:   {StatusReturned},
	StatusReturned: {}, // terminal state
}

// Agreement is a rental contract. It embeds the snapshot overlay: once
// locked or viewing a past state, its accessors answer from the selected
// snapshot instead of the live fields.
type Agreement struct {
	memento.Remembers `json:"-"`

	ID             string    `json:"id"`
	Number         string    `json:"number"`
	Status         Status    `json:"status"`
	Locked         bool      `json:"locked"`
	CustomerID     string    `json:"customer_id"`
	DailyRateCents int64     `json:"daily_rate_cents"`
	StartsOn       time.Time `json:"starts_on"`
	EndsOn         time.Time `json:"ends_on"`
	ReturnedAt     time.Time `json:"returned_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Customer *Customer   `json:"-"`
	Items    []*LineItem `json:"-"`
}

// Subject interface implementation
func (a *Agreement) GetID() string   { return a.ID }
func (a *Agreement) GetType() string { return AgreementType }

// SnapshotState labels snapshots with the agreement's lifecycle status.
func (a *Agreement) SnapshotState() string { return string(a.Status) }

// CanTransitionTo checks if the agreement can transition to the target status
func (a *Agreement) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[a.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (a *Agreement) transitionError(target Status) error {
	if a.Status == StatusReturned {
		return ErrAgreementReturned
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, a.Status, target)
}

// BalanceDueCents sums the unpaid remainder across active line items.
func (a *Agreement) BalanceDueCents() int64 {
	var total int64
	for _, item := range a.Items {
		if !item.Active {
			continue
		}
		if due := item.AmountCents - item.AmountPaidCents; due > 0 {
			total += due
		}
	}
	return total
}

// Item returns the line item with the given id.
func (a *Agreement) Item(itemID string) (*LineItem, bool) {
	for _, item := range a.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return nil, false
}
