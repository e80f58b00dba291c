package entitlement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"goflare.io/loyalty/apperr"
	"goflare.io/loyalty/models"
)

// Service returns entitlements in canonical form, so callers never branch on
// which schema a record came from.
type Service interface {
	Distributions(ctx context.Context, ownerID string) ([]models.Entitlement, error)
	// CustomerCoupons searches the owner id under both the customerId and
	// userId fields. Results from one field survive a failure of the other.
	CustomerCoupons(ctx context.Context, ownerID string) ([]models.Entitlement, error)
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

func (s *service) Distributions(ctx context.Context, ownerID string) ([]models.Entitlement, error) {
	records, err := s.repo.ListDistributions(ctx, ownerID)
	if err != nil {
		return nil, apperr.Unavailable(CollectionDistributions, ownerID, err)
	}
	return canonical(records), nil
}

func (s *service) CustomerCoupons(ctx context.Context, ownerID string) ([]models.Entitlement, error) {
	var (
		entitlements []models.Entitlement
		errs         []error
	)
	for _, field := range []string{FieldCustomerID, FieldUserID} {
		records, err := s.repo.ListCustomerCoupons(ctx, field, ownerID)
		if err != nil {
			errs = append(errs, apperr.Unavailable(CollectionCustomerCoupons+"."+field, ownerID, err))
			continue
		}
		entitlements = append(entitlements, canonical(records)...)
	}
	return entitlements, errors.Join(errs...)
}

func canonical(records []models.EntitlementRecord) []models.Entitlement {
	out := make([]models.Entitlement, 0, len(records))
	for _, record := range records {
		if record.CouponID == "" {
			continue
		}
		out = append(out, record.Canonical())
	}
	return out
}
