package models

import "time"

// SavingsEvent records an exact amount saved. It is the authoritative source
// for savings metrics when present.
type SavingsEvent struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	CustomerID string    `json:"customerId,omitempty"`
	CouponID   string    `json:"couponId,omitempty"`
	Amount     float64   `json:"amount"`
	Date       time.Time `json:"date"`
}

// RedemptionRecord has no amount; its value is estimated from the coupon.
type RedemptionRecord struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	CustomerID string    `json:"customerId,omitempty"`
	CouponID   string    `json:"couponId"`
	RedeemedAt time.Time `json:"redeemedAt"`
}

type SavingsStats struct {
	TotalSaved    float64 `json:"total_saved"`
	MonthlySaved  float64 `json:"monthly_saved"`
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	GoalProgress  float64 `json:"goal_progress"`
}
