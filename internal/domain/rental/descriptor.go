package rental

import (
	"fmt"

	"github.com/example/memento/internal/memento"
)

// RegisterTypes declares the rental descriptors: what gets captured into
// each snapshot, which associations nest, and which scopes are
// materialized alongside them.
func RegisterTypes(registry *memento.Registry) error {
	agreement := memento.NewDescriptor(AgreementType, Agreement{})

	if err := agreement.Memoize("balance_due_cents", balanceDueCents); err != nil {
		return err
	}
	if err := agreement.MemoizeAssociation("customer", CustomerType, memento.Singular, fetchCustomer); err != nil {
		return err
	}
	if err := agreement.MemoizeAssociation("items", LineItemType, memento.Plural, fetchItems); err != nil {
		return err
	}

	if err := agreement.MemoizeScope("items", "active", memento.NewScope(func(doc memento.Document) bool {
		active, _ := doc["active"].(bool)
		return active
	})); err != nil {
		return err
	}

	open, err := memento.NewExprScope("amount_paid_cents == 0")
	if err != nil {
		return err
	}
	if err := agreement.MemoizeScope("items", "open", open); err != nil {
		return err
	}

	partial, err := memento.NewExprScope("amount_paid_cents > 0 && amount_paid_cents < amount_cents")
	if err != nil {
		return err
	}
	if err := agreement.MemoizeScope("items", "partial", partial); err != nil {
		return err
	}

	if err := registry.Register(agreement); err != nil {
		return err
	}

	lineItem := memento.NewDescriptor(LineItemType, LineItem{})
	if err := lineItem.Memoize("settled", itemSettled); err != nil {
		return err
	}
	if err := registry.Register(lineItem); err != nil {
		return err
	}

	return registry.Register(memento.NewDescriptor(CustomerType, Customer{}))
}

func balanceDueCents(entity any) (any, error) {
	a, ok := entity.(*Agreement)
	if !ok {
		return nil, fmt.Errorf("balance_due_cents: want *Agreement, got %T", entity)
	}
	return a.BalanceDueCents(), nil
}

func itemSettled(entity any) (any, error) {
	li, ok := entity.(*LineItem)
	if !ok {
		return nil, fmt.Errorf("settled: want *LineItem, got %T", entity)
	}
	return li.Settled(), nil
}

func fetchCustomer(entity any) ([]memento.Subject, error) {
	a, ok := entity.(*Agreement)
	if !ok {
		return nil, fmt.Errorf("customer: want *Agreement, got %T", entity)
	}
	if a.Customer == nil {
		return nil, nil
	}
	return []memento.Subject{a.Customer}, nil
}

func fetchItems(entity any) ([]memento.Subject, error) {
	a, ok := entity.(*Agreement)
	if !ok {
		return nil, fmt.Errorf("items: want *Agreement, got %T", entity)
	}
	items := make([]memento.Subject, len(a.Items))
	for i, item := range a.Items {
		items[i] = item
	}
	return items, nil
}
