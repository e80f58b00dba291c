package loyalty

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"goflare.io/loyalty/apperr"
	"goflare.io/loyalty/models/enum"
)

func signedCouponEvent(t *testing.T, eventID string, eventType stripe.EventType, couponObj map[string]any) ([]byte, string) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": couponObj},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func stripeCoupon(id string, valid bool) map[string]any {
	return map[string]any{
		"id":              id,
		"object":          "coupon",
		"name":            "Spring sale",
		"percent_off":     15.0,
		"max_redemptions": 50,
		"times_redeemed":  3,
		"valid":           valid,
		"metadata":        map[string]string{"business_id": "b1", "public": "true"},
	}
}

func TestWebhookUpsertsCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload, sig := signedCouponEvent(t, "evt_1", stripe.EventTypeCouponCreated, stripeCoupon("SPRING", true))
	if err := f.reconciler.HandleStripeWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	got, err := f.reconciler.catalog.GetByID(ctx, "SPRING")
	if err != nil || got == nil {
		t.Fatalf("expected coupon to be stored, got %v, %v", got, err)
	}
	if got.BusinessID != "b1" || !got.Active || !got.Public || got.DiscountType != enum.DiscountTypePercentage {
		t.Fatalf("unexpected coupon %+v", got)
	}
	if got.DiscountPercentage == nil || *got.DiscountPercentage != 15 {
		t.Fatalf("expected 15%% discount, got %v", got.DiscountPercentage)
	}
	if got.MaxRedemptions == nil || *got.MaxRedemptions != 50 || got.TimesRedeemed != 3 {
		t.Fatalf("expected usage cap 50 with 3 redeemed, got %+v", got)
	}
}

func TestWebhookReplayIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	payload, sig := signedCouponEvent(t, "evt_1", stripe.EventTypeCouponCreated, stripeCoupon("SPRING", true))
	if err := f.reconciler.HandleStripeWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	writes := f.store.Writes()

	if err := f.reconciler.HandleStripeWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if f.store.Writes() != writes {
		t.Fatalf("expected replay to write nothing, got %d new writes", f.store.Writes()-writes)
	}
}

func TestWebhookDeleteDeactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, eventType := range []stripe.EventType{stripe.EventTypeCouponCreated, stripe.EventTypeCouponDeleted} {
		payload, sig := signedCouponEvent(t, fmt.Sprintf("evt_%d", i), eventType, stripeCoupon("SPRING", true))
		if err := f.reconciler.HandleStripeWebhook(ctx, payload, sig); err != nil {
			t.Fatalf("%s: %v", eventType, err)
		}
	}

	got, err := f.reconciler.catalog.GetByID(ctx, "SPRING")
	if err != nil || got == nil {
		t.Fatalf("expected coupon to remain, got %v, %v", got, err)
	}
	if got.Active {
		t.Fatal("expected deleted coupon to be inactive")
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)

	payload, _ := signedCouponEvent(t, "evt_1", stripe.EventTypeCouponCreated, stripeCoupon("SPRING", true))
	err := f.reconciler.HandleStripeWebhook(context.Background(), payload, "t=1,v1=bad")
	if !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestWebhookIgnoresUnhandledEvents(t *testing.T) {
	f := newFixture(t)

	payload, sig := signedCouponEvent(t, "evt_1", stripe.EventTypeChargeSucceeded, map[string]any{"id": "ch_1", "object": "charge"})
	if err := f.reconciler.HandleStripeWebhook(context.Background(), payload, sig); err != nil {
		t.Fatalf("expected unhandled event to be acknowledged, got %v", err)
	}
	if f.store.Writes() != 0 {
		t.Fatalf("expected no writes, got %d", f.store.Writes())
	}
}

func TestPartialCouponFromStripeAmountOff(t *testing.T) {
	p := partialCouponFromStripe(&stripe.Coupon{ID: "TEN", AmountOff: 1000, RedeemBy: 1735689600, Valid: false})

	if p.DiscountType == nil || *p.DiscountType != enum.DiscountTypeFixed {
		t.Fatalf("expected fixed discount, got %v", p.DiscountType)
	}
	if p.DiscountAmount == nil || *p.DiscountAmount != 10 {
		t.Fatalf("expected amount 10, got %v", p.DiscountAmount)
	}
	if p.ValidUntil == nil || !p.ValidUntil.Equal(time.Unix(1735689600, 0)) {
		t.Fatalf("expected redeem_by as valid until, got %v", p.ValidUntil)
	}
	if p.Active == nil || *p.Active {
		t.Fatal("expected invalid coupon to be inactive")
	}
	if p.BusinessID != nil || p.Public != nil {
		t.Fatalf("expected no metadata fields, got %+v", p)
	}
}
