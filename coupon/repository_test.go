package coupon

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"goflare.io/ignite"

	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/docstore/storetest"
	"goflare.io/loyalty/models"
)

func ptr[T any](v T) *T { return &v }

func TestGetByIDDoesNotLeakFieldsBetweenCoupons(t *testing.T) {
	store := docstore.NewMemory()
	repo, err := NewRepository(store, zap.NewNop(), ignite.NewManager())
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}

	storetest.Seed(t, store, CollectionCoupons, "valued", models.CouponDefinition{Title: "A", Value: ptr(15.0), Active: true})
	storetest.Seed(t, store, CollectionCoupons, "text", models.CouponDefinition{DiscountText: "5 dollars"})
	storetest.Seed(t, store, CollectionCoupons, "percent", models.CouponDefinition{DiscountPercentage: ptr(20.0)})
	storetest.Seed(t, store, CollectionCoupons, "rich", models.CouponDefinition{Title: "R", Value: ptr(40.0), DiscountAmount: ptr(3.0)})

	ctx := context.Background()
	first, err := repo.GetByID(ctx, "valued")
	if err != nil || first == nil {
		t.Fatalf("get valued: %v, %v", first, err)
	}

	// Cycle the pool enough times that scratch values are reused.
	for i := 0; i < 25; i++ {
		for _, id := range []string{"text", "percent", "rich"} {
			c, err := repo.GetByID(ctx, id)
			if err != nil || c == nil {
				t.Fatalf("get %s: %v, %v", id, c, err)
			}

			switch id {
			case "text":
				if c.Value != nil || c.Title != "" || c.DiscountPercentage != nil || c.DiscountAmount != nil || c.Active {
					t.Fatalf("expected text coupon with only discount text, got %+v", c)
				}
				if c.DiscountText != "5 dollars" {
					t.Fatalf("expected discount text, got %q", c.DiscountText)
				}
			case "percent":
				if c.Value != nil || c.DiscountText != "" || c.DiscountAmount != nil {
					t.Fatalf("expected percentage-only coupon, got %+v", c)
				}
				if c.DiscountPercentage == nil || *c.DiscountPercentage != 20 {
					t.Fatalf("expected percentage 20, got %v", c.DiscountPercentage)
				}
			case "rich":
				if c.Value == nil || *c.Value != 40 || c.DiscountAmount == nil || *c.DiscountAmount != 3 {
					t.Fatalf("expected value 40 and amount 3, got %+v", c)
				}
			}
		}
	}

	if first.Value == nil || *first.Value != 15 || first.Title != "A" || !first.Active {
		t.Fatalf("expected earlier coupon untouched, got %+v", first)
	}
}

func TestCouponCloneSharesNoPointers(t *testing.T) {
	orig := &models.CouponDefinition{ID: "k1", Value: ptr(10.0), MaxRedemptions: ptr(3)}
	clone := orig.Clone()

	*clone.Value = 99
	*clone.MaxRedemptions = 0
	if *orig.Value != 10 || *orig.MaxRedemptions != 3 {
		t.Fatalf("expected original untouched, got value=%v max=%v", *orig.Value, *orig.MaxRedemptions)
	}
}
