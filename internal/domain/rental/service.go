package rental

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/memento/internal/infrastructure/store"
	"github.com/example/memento/internal/memento"
)

// Service owns the rental entities and their snapshot lifecycle: every
// status change appends a snapshot labeled with the new status, and the
// overlay operations are exposed per agreement.
//
// A single live instance's overlay state is not safe for concurrent
// transitions, so the service serializes all instance access through one
// mutex; it is the caller-side synchronization the overlay requires.
type Service struct {
	mu         sync.Mutex
	repo       *Repository
	registry   *memento.Registry
	serializer *memento.Serializer
	snapshots  store.SnapshotStoreInterface
}

func NewService(repo *Repository, registry *memento.Registry, serializer *memento.Serializer, snapshots store.SnapshotStoreInterface) *Service {
	return &Service{
		repo:       repo,
		registry:   registry,
		serializer: serializer,
		snapshots:  snapshots,
	}
}

// CreateCustomer registers a new customer.
func (s *Service) CreateCustomer(ctx context.Context, name, email, phone string) (*Customer, error) {
	c := &Customer{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}
	s.repo.SaveCustomer(c)
	return c, nil
}

// CreateAgreement opens a draft agreement for an existing customer.
func (s *Service) CreateAgreement(ctx context.Context, customerID string, dailyRateCents int64, startsOn, endsOn time.Time) (*Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.repo.GetCustomer(customerID)
	if !ok {
		return nil, ErrCustomerNotFound
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	a := &Agreement{
		ID:             id,
		Number:         "RA-" + strings.ToUpper(id[:8]),
		Status:         StatusDraft,
		CustomerID:     customerID,
		DailyRateCents: dailyRateCents,
		StartsOn:       startsOn,
		EndsOn:         endsOn,
		CreatedAt:      now,
		UpdatedAt:      now,
		Customer:       customer,
	}
	a.Bind(a, s.registry, s.snapshots)

	s.repo.SaveAgreement(a)
	log.Printf("[Rental] Created agreement %s (%s)", a.Number, a.ID)
	return a, nil
}

// AddItem appends an active line item to an agreement.
func (s *Service) AddItem(ctx context.Context, agreementID, description string, amountCents int64, dueOn time.Time) (*LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.agreement(agreementID)
	if err != nil {
		return nil, err
	}
	if a.Locked {
		return nil, ErrAgreementLocked
	}
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	item := &LineItem{
		ID:          uuid.New().String(),
		AgreementID: a.ID,
		Description: description,
		Active:      true,
		AmountCents: amountCents,
		DueOn:       dueOn,
		CreatedAt:   time.Now().UTC(),
	}
	a.Items = append(a.Items, item)
	a.UpdatedAt = time.Now().UTC()
	return item, nil
}

// SetItemActive toggles a line item's active flag.
func (s *Service) SetItemActive(ctx context.Context, agreementID, itemID string, active bool) (*LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.agreement(agreementID)
	if err != nil {
		return nil, err
	}
	if a.Locked {
		return nil, ErrAgreementLocked
	}

	item, ok := a.Item(itemID)
	if !ok {
		return nil, ErrItemNotFound
	}
	item.Active = active
	a.UpdatedAt = time.Now().UTC()
	return item, nil
}

// RecordPayment applies a payment against a line item.
func (s *Service) RecordPayment(ctx context.Context, agreementID, itemID string, amountCents int64) (*LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.agreement(agreementID)
	if err != nil {
		return nil, err
	}
	if a.Locked {
		return nil, ErrAgreementLocked
	}
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	item, ok := a.Item(itemID)
	if !ok {
		return nil, ErrItemNotFound
	}
	item.AmountPaidCents += amountCents
	a.UpdatedAt = time.Now().UTC()
	return item, nil
}

// Advance moves an agreement to the target status and captures a
// snapshot labeled with it. A failed capture is logged, not fatal; the
// deferred dispatch path can re-capture.
func (s *Service) Advance(ctx context.Context, agreementID string, target Status, actor string) (*Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.agreement(agreementID)
	if err != nil {
		return nil, err
	}
	if a.Locked {
		return nil, ErrAgreementLocked
	}
	if !a.CanTransitionTo(target) {
		return nil, a.transitionError(target)
	}

	now := time.Now().UTC()
	a.Status = target
	a.UpdatedAt = now
	if target == StatusReturned {
		a.ReturnedAt = now
	}

	if _, err := s.serializer.CaptureAndCommit(ctx, a, actor); err != nil {
		log.Printf("[Rental] Failed to capture agreement %s at %s: %v", a.ID, target, err)
	} else {
		log.Printf("[Rental] Agreement %s advanced to %s", a.Number, target)
	}
	return a, nil
}

// Capture takes a snapshot of the agreement's current presented state.
func (s *Service) Capture(ctx context.Context, agreementID, actor string) (*store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.agreement(agreementID)
	if err != nil {
		return nil, err
	}
	return s.serializer.CaptureAndCommit(ctx, a, actor)
}

// Lock freezes the agreement on its most recent snapshot. It reports
// false when no snapshot exists yet.
func (s *Service) Lock(ctx context.Context, agreementID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.agreement(agreementID)
	if err != nil {
		return false, err
	}

	locked := a.Remembers.Lock(ctx)
	if locked {
		a.Locked = true
	}
	return locked, nil
}

// ViewState overlays the most recent snapshot taken at the given status.
// It reports false when no such snapshot exists; the agreement stays in
// its current mode.
func (s *Service) ViewState(ctx context.Context, agreementID, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.agreement(agreementID)
	if err != nil {
		return false, err
	}
	return a.Remembers.ViewState(ctx, state), nil
}

// Unlock returns the agreement to live reads.
func (s *Service) Unlock(ctx context.Context, agreementID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.agreement(agreementID)
	if err != nil {
		return err
	}
	a.Remembers.Unlock()
	a.Locked = false
	return nil
}

// Present renders one agreement for the API. The view is materialized
// under the service mutex; the live *Agreement never leaves it.
func (s *Service) Present(ctx context.Context, agreementID string) (*AgreementView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.agreement(agreementID)
	if err != nil {
		return nil, err
	}
	return presentAgreement(a), nil
}

// PresentAll renders all agreements, oldest first.
func (s *Service) PresentAll(ctx context.Context) []*AgreementView {
	s.mu.Lock()
	defer s.mu.Unlock()

	agreements := s.repo.ListAgreements()
	views := make([]*AgreementView, 0, len(agreements))
	for _, a := range agreements {
		views = append(views, presentAgreement(a))
	}
	return views
}

// Snapshots returns an agreement's full snapshot history, newest first.
func (s *Service) Snapshots(ctx context.Context, agreementID string) ([]store.Snapshot, error) {
	if _, ok := s.repo.GetAgreement(agreementID); !ok {
		return nil, ErrAgreementNotFound
	}
	return s.snapshots.List(ctx, AgreementType, agreementID)
}

// LatestSnapshot returns the most recent snapshot, optionally at a state.
func (s *Service) LatestSnapshot(ctx context.Context, agreementID, state string) (*store.Snapshot, error) {
	if _, ok := s.repo.GetAgreement(agreementID); !ok {
		return nil, ErrAgreementNotFound
	}
	if state == "" {
		return s.snapshots.Latest(ctx, AgreementType, agreementID)
	}
	return s.snapshots.LatestAtState(ctx, AgreementType, agreementID, state)
}

// ItemsView resolves the agreement's items through the overlay: live
// items normally, the overlaid snapshot's items when remembering. Scopes
// chain by intersection.
func (s *Service) ItemsView(ctx context.Context, agreementID string, scopes ...string) (*memento.CollectionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.agreement(agreementID)
	if err != nil {
		return nil, err
	}

	view, err := a.Collection("items")
	if err != nil {
		return nil, err
	}
	for _, scope := range scopes {
		if scope != "" {
			view = view.FilterByScope(scope)
		}
	}
	return view, nil
}

// ItemScopes lists the scope names declared on the items association, in
// declaration order.
func (s *Service) ItemScopes() []string {
	desc, ok := s.registry.Lookup(AgreementType)
	if !ok {
		return nil
	}
	assoc, ok := desc.Association("items")
	if !ok {
		return nil
	}
	return assoc.ScopeNames()
}

// CaptureSubject serves deferred capture requests. The capture runs under
// the service mutex like a synchronous one; a missing agreement reports
// (nil, nil).
func (s *Service) CaptureSubject(ctx context.Context, agreementID, requestedBy string) (*store.Snapshot, error) {
	snap, err := s.Capture(ctx, agreementID, requestedBy)
	if errors.Is(err, ErrAgreementNotFound) {
		return nil, nil
	}
	return snap, err
}

func (s *Service) agreement(id string) (*Agreement, error) {
	a, ok := s.repo.GetAgreement(id)
	if !ok {
		return nil, ErrAgreementNotFound
	}
	return a, nil
}
