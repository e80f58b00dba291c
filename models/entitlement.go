package models

import (
	"time"

	"goflare.io/loyalty/models/enum"
)

// EntitlementRecord is a coupon assignment as stored by either legacy schema.
// Distributions only carry CustomerID; customer-coupons carry CustomerID or
// UserID plus an allocation time.
type EntitlementRecord struct {
	ID          string          `json:"id"`
	SourceKind  enum.SourceKind `json:"-"`
	CustomerID  string          `json:"customerId,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	CouponID    string          `json:"couponId"`
	AllocatedAt *time.Time      `json:"allocatedAt,omitempty"`
}

// Entitlement is the canonical shape every EntitlementRecord is reduced to.
type Entitlement struct {
	CouponID   string          `json:"coupon_id"`
	SourceKind enum.SourceKind `json:"source_kind"`
	OwnerID    string          `json:"owner_id"`
}

func (r EntitlementRecord) Canonical() Entitlement {
	owner := r.CustomerID
	if owner == "" {
		owner = r.UserID
	}
	return Entitlement{
		CouponID:   r.CouponID,
		SourceKind: r.SourceKind,
		OwnerID:    owner,
	}
}
