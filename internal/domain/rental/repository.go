package rental

import (
	"sort"
	"sync"
)

// Repository holds the live rental entities in memory. It stands in for
// the row store an application would normally have; snapshots live in
// the snapshot store, not here.
type Repository struct {
	mu         sync.RWMutex
	agreements map[string]*Agreement
	customers  map[string]*Customer
}

func NewRepository() *Repository {
	return &Repository{
		agreements: make(map[string]*Agreement),
		customers:  make(map[string]*Customer),
	}
}

// SaveAgreement stores or replaces an agreement.
func (r *Repository) SaveAgreement(a *Agreement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agreements[a.ID] = a
}

// GetAgreement returns the agreement with the given id.
func (r *Repository) GetAgreement(id string) (*Agreement, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agreements[id]
	return a, ok
}

// ListAgreements returns all agreements, oldest first.
func (r *Repository) ListAgreements() []*Agreement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Agreement, 0, len(r.agreements))
	for _, a := range r.agreements {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// SaveCustomer stores or replaces a customer.
func (r *Repository) SaveCustomer(c *Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[c.ID] = c
}

// GetCustomer returns the customer with the given id.
func (r *Repository) GetCustomer(id string) (*Customer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[id]
	return c, ok
}
