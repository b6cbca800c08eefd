package rental

import "time"

// Customer is the party renting. Captured as a singular association on
// the agreement.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Subject interface implementation
func (c *Customer) GetID() string   { return c.ID }
func (c *Customer) GetType() string { return CustomerType }
