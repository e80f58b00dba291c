package loyalty

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"goflare.io/loyalty/config"
	"goflare.io/loyalty/coupon"
	"goflare.io/loyalty/event"
	"goflare.io/loyalty/link"
	"goflare.io/loyalty/models"
	"goflare.io/loyalty/savings"
)

type Loyalty interface {
	ResolveAndLink(ctx context.Context, userID, phone string, phoneChanged bool) models.LinkOutcome
	AggregateCoupons(ctx context.Context, userID string) []*models.CouponDefinition
	ComputeSavingsStats(ctx context.Context, userID string) models.SavingsStats

	PublishPhoneChanged(ctx context.Context, userID, phone string) error

	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error // Interacts with Stripe
	SyncCouponCatalog(ctx context.Context) (int, error)                              // Interacts with Stripe

	Close()
}

// Reconciler answers every consumer-facing loyalty question and keeps the
// coupon catalog in step with Stripe.
type Reconciler struct {
	client        *client.API
	webhookSecret string
	natsConn      *nats.Conn
	eventManager  *EventManager
	dispatcher    *Dispatcher
	subscription  *nats.Subscription
	handlers      map[stripe.EventType]CatalogHandler
	logger        *zap.Logger

	link    link.Service
	coupons coupon.Aggregator
	catalog coupon.Service
	savings savings.Service
	event   event.Service
}

func NewReconciler(config *config.Config,
	natsConn *nats.Conn,
	linker link.Service,
	coupons coupon.Aggregator,
	catalog coupon.Service,
	stats savings.Service,
	events event.Service,
	logger *zap.Logger) (Loyalty, error) {
	r := &Reconciler{
		webhookSecret: config.Stripe.WebhookSecret,
		natsConn:      natsConn,
		handlers:      make(map[stripe.EventType]CatalogHandler),
		logger:        logger,
		link:          linker,
		coupons:       coupons,
		catalog:       catalog,
		savings:       stats,
		event:         events,
	}
	if config.Stripe.SecretKey != "" {
		r.client = client.New(config.Stripe.SecretKey, nil)
	}

	r.registerEventHandlers()

	r.dispatcher = NewDispatcher(config.NATS.Workers, config.NATS.QueueSize, r.processPhoneChange, logger)
	r.dispatcher.Run()

	if natsConn == nil {
		return r, nil
	}

	r.eventManager = NewEventManager(natsConn, config.NATS.Subject, logger)
	sub, err := r.eventManager.SubscribeToEvents(r.dispatcher)
	if err != nil {
		r.dispatcher.Stop()
		return nil, fmt.Errorf("failed to subscribe to phone change events: %w", err)
	}
	r.subscription = sub

	return r, nil
}

// ResolveAndLink applies whatever link transition the user's phone implies.
func (r *Reconciler) ResolveAndLink(ctx context.Context, userID, phone string, phoneChanged bool) models.LinkOutcome {
	return r.link.ResolveAndLink(ctx, userID, phone, phoneChanged)
}

func (r *Reconciler) AggregateCoupons(ctx context.Context, userID string) []*models.CouponDefinition {
	return r.coupons.AggregateCoupons(ctx, userID)
}

func (r *Reconciler) ComputeSavingsStats(ctx context.Context, userID string) models.SavingsStats {
	return r.savings.ComputeStats(ctx, userID)
}

// PublishPhoneChanged announces a phone edit. With no event bus configured the
// transition is submitted to the local dispatcher instead.
func (r *Reconciler) PublishPhoneChanged(ctx context.Context, userID, phone string) error {
	phoneChanged := newPhoneChangedEvent(userID, phone)
	if r.eventManager == nil {
		return r.dispatcher.Submit(ctx, phoneChanged)
	}
	return r.eventManager.PublishPhoneChanged(phoneChanged)
}

func (r *Reconciler) processPhoneChange(ctx context.Context, phoneChanged *models.PhoneChangedEvent) error {
	outcome := r.link.ResolveAndLink(ctx, phoneChanged.UserID, phoneChanged.Phone, true)
	r.logger.Info("phone change applied",
		zap.String("event_id", phoneChanged.EventID),
		zap.String("owner_id", phoneChanged.UserID),
		zap.String("state", string(outcome.State)),
		zap.String("customer_id", outcome.CustomerID),
		zap.String("previous_customer_id", outcome.PreviousCustomerID))
	return outcome.Err
}

func (r *Reconciler) Close() {
	r.logger.Info("Initiating graceful shutdown of workers and dispatcher")
	if r.subscription != nil {
		if err := r.subscription.Unsubscribe(); err != nil {
			r.logger.Warn("failed to unsubscribe from phone change events", zap.Error(err))
		}
	}
	r.dispatcher.Stop()
	r.logger.Info("Reconciler successfully shutdown")
}
