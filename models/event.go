package models

import (
	"time"

	"github.com/stripe/stripe-go/v79"
)

// WebhookEvent records a catalog feed delivery so retries are applied once.
type WebhookEvent struct {
	ID        string           `json:"id"`
	Type      stripe.EventType `json:"type"`
	Processed bool             `json:"processed"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// PhoneChangedEvent is published when a consumer edits their phone number.
type PhoneChangedEvent struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	Phone      string    `json:"phone"`
	OccurredAt time.Time `json:"occurred_at"`
}
