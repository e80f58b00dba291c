package coupon

import (
	"context"

	"go.uber.org/zap"

	"goflare.io/loyalty/models"
)

// Service maintains the coupon catalog fed by the payment provider. The
// reconciliation code only ever reads definitions.
type Service interface {
	GetByID(ctx context.Context, id string) (*models.CouponDefinition, error)
	Upsert(ctx context.Context, coupon *models.PartialCoupon) error
	// Deactivate retires a coupon without deleting it, so existing
	// entitlements still hydrate.
	Deactivate(ctx context.Context, id string) error
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger,
	}
}

func (s *service) GetByID(ctx context.Context, id string) (*models.CouponDefinition, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) Upsert(ctx context.Context, coupon *models.PartialCoupon) error {
	return s.repo.Upsert(ctx, coupon)
}

func (s *service) Deactivate(ctx context.Context, id string) error {
	inactive := false
	s.logger.Info("deactivating coupon", zap.String("coupon_id", id))
	return s.repo.Upsert(ctx, &models.PartialCoupon{ID: id, Active: &inactive})
}
