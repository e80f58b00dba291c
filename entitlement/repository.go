package entitlement

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/models"
	"goflare.io/loyalty/models/enum"
)

const (
	CollectionDistributions   = "distributions"
	CollectionCustomerCoupons = "customer_coupons"

	FieldCustomerID = "customerId"
	FieldUserID     = "userId"
)

var _ Repository = (*repository)(nil)

// Repository reads both legacy entitlement schemas. Records come back tagged
// with the schema they were read from.
type Repository interface {
	ListDistributions(ctx context.Context, customerID string) ([]models.EntitlementRecord, error)
	ListCustomerCoupons(ctx context.Context, field, ownerID string) ([]models.EntitlementRecord, error)
}

type repository struct {
	store  docstore.Store
	logger *zap.Logger
}

func NewRepository(store docstore.Store, logger *zap.Logger) Repository {
	return &repository{
		store:  store,
		logger: logger,
	}
}

func (r *repository) ListDistributions(ctx context.Context, customerID string) ([]models.EntitlementRecord, error) {
	return r.list(ctx, CollectionDistributions, FieldCustomerID, customerID, enum.SourceKindDistribution)
}

func (r *repository) ListCustomerCoupons(ctx context.Context, field, ownerID string) ([]models.EntitlementRecord, error) {
	if field != FieldCustomerID && field != FieldUserID {
		return nil, fmt.Errorf("unsupported customer coupon owner field %q", field)
	}
	return r.list(ctx, CollectionCustomerCoupons, field, ownerID, enum.SourceKindCustomerCoupon)
}

func (r *repository) list(ctx context.Context, collection, field, ownerID string, kind enum.SourceKind) ([]models.EntitlementRecord, error) {

	docs, err := r.store.Query(ctx, collection, docstore.Where(docstore.Eq(field, ownerID)))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	records := make([]models.EntitlementRecord, 0, len(docs))
	for _, doc := range docs {
		var record models.EntitlementRecord
		if err = doc.Decode(&record); err != nil {
			r.logger.Warn("skipping undecodable entitlement",
				zap.String("source", collection),
				zap.String("entitlement_id", doc.ID),
				zap.Error(err))
			continue
		}
		record.SourceKind = kind
		records = append(records, record)
	}

	return records, nil
}
