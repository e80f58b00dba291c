package models

import "goflare.io/loyalty/models/enum"

// LinkOutcome is the result of a resolve-and-link call. Err is set for
// recoverable failures; the state is still meaningful when it is.
type LinkOutcome struct {
	State              enum.LinkState `json:"state"`
	CustomerID         string         `json:"customer_id,omitempty"`
	PreviousCustomerID string         `json:"previous_customer_id,omitempty"`
	Message            string         `json:"message"`
	Err                error          `json:"-"`
}
