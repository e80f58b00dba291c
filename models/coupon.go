package models

import (
	"time"

	"goflare.io/loyalty/models/enum"
)

// CouponDefinition is a business-scoped offer. The optional numeric fields are
// pointers because legacy records populate different subsets of them.
type CouponDefinition struct {
	ID                 string            `json:"id"`
	BusinessID         string            `json:"businessId,omitempty"`
	Title              string            `json:"title,omitempty"`
	DiscountType       enum.DiscountType `json:"discountType,omitempty"`
	Value              *float64          `json:"value,omitempty"`
	DiscountPercentage *float64          `json:"discountPercentage,omitempty"`
	DiscountAmount     *float64          `json:"discountAmount,omitempty"`
	DiscountText       string            `json:"discount,omitempty"`
	ValidFrom          *time.Time        `json:"validFrom,omitempty"`
	ValidUntil         *time.Time        `json:"validUntil,omitempty"`
	MaxRedemptions     *int              `json:"maxRedemptions,omitempty"`
	TimesRedeemed      int               `json:"timesRedeemed,omitempty"`
	Active             bool              `json:"active"`
	Public             bool              `json:"public,omitempty"`
}

// IsRedeemableAt reports whether the offer is active, inside its validity
// window and under its usage cap at t.
func (c *CouponDefinition) IsRedeemableAt(t time.Time) bool {
	if c == nil || !c.Active {
		return false
	}
	if c.ValidFrom != nil && t.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && t.After(*c.ValidUntil) {
		return false
	}
	if c.MaxRedemptions != nil && *c.MaxRedemptions > 0 && c.TimesRedeemed >= *c.MaxRedemptions {
		return false
	}
	return true
}

// Clone returns a copy that shares no pointers with c.
func (c *CouponDefinition) Clone() *CouponDefinition {
	if c == nil {
		return nil
	}
	out := *c
	out.Value = clonePtr(c.Value)
	out.DiscountPercentage = clonePtr(c.DiscountPercentage)
	out.DiscountAmount = clonePtr(c.DiscountAmount)
	out.ValidFrom = clonePtr(c.ValidFrom)
	out.ValidUntil = clonePtr(c.ValidUntil)
	out.MaxRedemptions = clonePtr(c.MaxRedemptions)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// PartialCoupon carries the fields a catalog feed event sets; nil means
// "leave unchanged".
type PartialCoupon struct {
	ID                 string
	BusinessID         *string
	Title              *string
	DiscountType       *enum.DiscountType
	DiscountPercentage *float64
	DiscountAmount     *float64
	ValidUntil         *time.Time
	MaxRedemptions     *int
	TimesRedeemed      *int
	Active             *bool
	Public             *bool
}
