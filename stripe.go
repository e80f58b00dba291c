package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"goflare.io/loyalty/apperr"
	"goflare.io/loyalty/models"
	"goflare.io/loyalty/models/enum"
)

const (
	metadataBusinessID = "business_id"
	metadataPublic     = "public"
	metadataTitle      = "title"
)

type CatalogHandler func(context.Context, *stripe.Event) error

func (r *Reconciler) registerEventHandlers() {

	eventHandlers := map[stripe.EventType]CatalogHandler{
		stripe.EventTypeCouponCreated: r.handleCouponEvent,
		stripe.EventTypeCouponDeleted: r.handleCouponEvent,
		stripe.EventTypeCouponUpdated: r.handleCouponEvent,
	}

	for eventType, handler := range eventHandlers {
		r.handlers[eventType] = handler
	}
}

// HandleStripeWebhook verifies a Stripe delivery and applies it to the coupon
// catalog once. Event types without a handler are acknowledged and ignored.
func (r *Reconciler) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	stripeEvent, err := webhook.ConstructEvent(payload, signature, r.webhookSecret)
	if err != nil {
		return apperr.New(apperr.InvalidInput, "stripe", "", fmt.Errorf("failed to verify webhook signature: %w", err))
	}

	handler, exists := r.handlers[stripeEvent.Type]
	if !exists {
		r.logger.Debug("ignoring stripe event", zap.String("event_id", stripeEvent.ID), zap.String("event_type", string(stripeEvent.Type)))
		return nil
	}

	processed, err := r.event.IsEventProcessed(ctx, stripeEvent.ID)
	if err != nil {
		r.logger.Warn("failed to check event", zap.String("event_id", stripeEvent.ID), zap.Error(err))
	}
	if processed {
		r.logger.Info("Event is already processed", zap.String("event_id", stripeEvent.ID))
		return nil
	}

	now := time.Now().UTC()
	if err = r.event.Create(ctx, &models.WebhookEvent{
		ID:        stripeEvent.ID,
		Type:      stripeEvent.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	if err = handler(ctx, &stripeEvent); err != nil {
		r.logger.Error("Failed to process stripe event",
			zap.String("event_id", stripeEvent.ID),
			zap.String("event_type", string(stripeEvent.Type)),
			zap.Error(err))
		return err
	}

	if err = r.event.MarkEventAsProcessed(ctx, stripeEvent.ID); err != nil {
		r.logger.Warn("failed to mark event as processed", zap.String("event_id", stripeEvent.ID), zap.Error(err))
	}

	return nil
}

func (r *Reconciler) handleCouponEvent(ctx context.Context, stripeEvent *stripe.Event) error {

	r.logger.Info("Stripe coupon event", zap.String("event_id", stripeEvent.ID))

	couponModel := new(stripe.Coupon)
	if err := json.Unmarshal(stripeEvent.Data.Raw, couponModel); err != nil {
		return fmt.Errorf("failed to unmarshal coupon event: %w", err)
	}
	if couponModel.ID == "" {
		return errors.New("coupon event without coupon id")
	}

	var err error
	switch stripeEvent.Type {
	case stripe.EventTypeCouponCreated, stripe.EventTypeCouponUpdated:
		err = r.catalog.Upsert(ctx, partialCouponFromStripe(couponModel))
	case stripe.EventTypeCouponDeleted:
		err = r.catalog.Deactivate(ctx, couponModel.ID)
	default:
		return fmt.Errorf("unexpected coupon event type: %s", stripeEvent.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to apply coupon event: %w", err)
	}

	r.logger.Info("Stripe coupon event processed", zap.String("event_id", stripeEvent.ID))
	return nil
}

// SyncCouponCatalog copies every Stripe coupon into the catalog. It is a
// backfill for deliveries missed while the webhook was unreachable.
func (r *Reconciler) SyncCouponCatalog(ctx context.Context) (int, error) {
	if r.client == nil {
		return 0, errors.New("stripe secret key not configured")
	}

	params := &stripe.CouponListParams{}
	params.Context = ctx

	synced := 0
	iter := r.client.Coupons.List(params)
	for iter.Next() {
		if err := r.catalog.Upsert(ctx, partialCouponFromStripe(iter.Coupon())); err != nil {
			return synced, fmt.Errorf("failed to sync coupon: %w", err)
		}
		synced++
	}
	if err := iter.Err(); err != nil {
		return synced, fmt.Errorf("failed to list Stripe coupons: %w", err)
	}

	r.logger.Info("coupon catalog synced", zap.Int("coupons", synced))
	return synced, nil
}

// partialCouponFromStripe maps the fields Stripe owns. Amounts arrive in minor
// units.
func partialCouponFromStripe(c *stripe.Coupon) *models.PartialCoupon {
	partialCoupon := &models.PartialCoupon{
		ID: c.ID,
	}

	title := c.Name
	if t := c.Metadata[metadataTitle]; t != "" {
		title = t
	}
	if title != "" {
		partialCoupon.Title = &title
	}
	if businessID := c.Metadata[metadataBusinessID]; businessID != "" {
		partialCoupon.BusinessID = &businessID
	}
	if raw, ok := c.Metadata[metadataPublic]; ok {
		if public, err := strconv.ParseBool(raw); err == nil {
			partialCoupon.Public = &public
		}
	}

	if c.PercentOff > 0 {
		discountType := enum.DiscountTypePercentage
		percentOff := c.PercentOff
		partialCoupon.DiscountType = &discountType
		partialCoupon.DiscountPercentage = &percentOff
	}
	if c.AmountOff > 0 {
		discountType := enum.DiscountTypeFixed
		amountOff := float64(c.AmountOff) / 100
		partialCoupon.DiscountType = &discountType
		partialCoupon.DiscountAmount = &amountOff
	}
	if c.MaxRedemptions > 0 {
		maxRedemptions := int(c.MaxRedemptions)
		partialCoupon.MaxRedemptions = &maxRedemptions
	}
	if c.RedeemBy > 0 {
		redeemBy := time.Unix(c.RedeemBy, 0).UTC()
		partialCoupon.ValidUntil = &redeemBy
	}

	timesRedeemed := int(c.TimesRedeemed)
	partialCoupon.TimesRedeemed = &timesRedeemed
	active := c.Valid
	partialCoupon.Active = &active

	return partialCoupon
}
