package models

import (
	"testing"
	"time"

	"goflare.io/loyalty/models/enum"
)

func TestIsRedeemableAt(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)
	cap2 := 2

	tests := []struct {
		name   string
		coupon *CouponDefinition
		want   bool
	}{
		{"active", &CouponDefinition{Active: true}, true},
		{"inactive", &CouponDefinition{}, false},
		{"not started", &CouponDefinition{Active: true, ValidFrom: &after}, false},
		{"expired", &CouponDefinition{Active: true, ValidUntil: &before}, false},
		{"inside window", &CouponDefinition{Active: true, ValidFrom: &before, ValidUntil: &after}, true},
		{"under cap", &CouponDefinition{Active: true, MaxRedemptions: &cap2, TimesRedeemed: 1}, true},
		{"cap reached", &CouponDefinition{Active: true, MaxRedemptions: &cap2, TimesRedeemed: 2}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.coupon.IsRedeemableAt(now); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEntitlementCanonicalOwner(t *testing.T) {
	byCustomer := EntitlementRecord{SourceKind: enum.SourceKindCustomerCoupon, CustomerID: "c1", UserID: "u1", CouponID: "k1"}
	if got := byCustomer.Canonical(); got.OwnerID != "c1" || got.CouponID != "k1" || got.SourceKind != enum.SourceKindCustomerCoupon {
		t.Fatalf("expected customer owner, got %+v", got)
	}

	byUser := EntitlementRecord{SourceKind: enum.SourceKindCustomerCoupon, UserID: "u1", CouponID: "k2"}
	if got := byUser.Canonical(); got.OwnerID != "u1" {
		t.Fatalf("expected user owner, got %+v", got)
	}
}

func TestCustomerIsLinked(t *testing.T) {
	if (&CustomerRecord{}).IsLinked() {
		t.Fatal("expected unlinked record")
	}
	if !(&CustomerRecord{LinkedUserID: "u1"}).IsLinked() {
		t.Fatal("expected linked record")
	}
}
