package coupon

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"
	"goflare.io/ignite"

	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/models"
)

const (
	CollectionCoupons = "coupons"

	FieldBusinessID = "businessId"
	FieldActive     = "active"
	FieldPublic     = "public"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	// GetByID returns nil when the definition does not exist.
	GetByID(ctx context.Context, id string) (*models.CouponDefinition, error)
	ListActiveByBusiness(ctx context.Context, businessID string) ([]*models.CouponDefinition, error)
	ListPublic(ctx context.Context) ([]*models.CouponDefinition, error)
	Upsert(ctx context.Context, coupon *models.PartialCoupon) error
}

type repository struct {
	store       docstore.Store
	logger      *zap.Logger
	poolManager ignite.Manager
}

func NewRepository(store docstore.Store, logger *zap.Logger, poolManager ignite.Manager) (Repository, error) {
	err := poolManager.RegisterPool(reflect.TypeOf(&models.CouponDefinition{}), ignite.Config[any]{
		InitialSize: 10,
		MaxSize:     100,
		MaxIdleTime: 10 * time.Minute,
		Factory: func() (any, error) {
			return new(models.CouponDefinition), nil
		},
		Reset: func(obj any) error {
			c := obj.(*models.CouponDefinition)
			*c = models.CouponDefinition{}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register coupon pool: %w", err)
	}

	return &repository{
		store:       store,
		logger:      logger,
		poolManager: poolManager,
	}, nil
}

// decode unmarshals doc through a pooled scratch value and returns a deep copy.
// Pooled values are not reset on Get, so the scratch is zeroed first.
func (r *repository) decode(ctx context.Context, doc docstore.Document) (*models.CouponDefinition, error) {
	pool, err := r.poolManager.GetPool(reflect.TypeOf(&models.CouponDefinition{}))
	if err != nil {
		return nil, fmt.Errorf("failed to get pool: %w", err)
	}

	objWrapper, err := pool.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get object from pool: %w", err)
	}
	defer pool.Put(objWrapper)

	scratch := objWrapper.Object.(*models.CouponDefinition)
	*scratch = models.CouponDefinition{}
	if err = doc.Decode(scratch); err != nil {
		return nil, err
	}

	return scratch.Clone(), nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*models.CouponDefinition, error) {

	doc, err := r.store.Get(ctx, CollectionCoupons, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	return r.decode(ctx, *doc)
}

func (r *repository) ListActiveByBusiness(ctx context.Context, businessID string) ([]*models.CouponDefinition, error) {
	return r.list(ctx, docstore.Where(
		docstore.Eq(FieldBusinessID, businessID),
		docstore.Eq(FieldActive, true),
	))
}

func (r *repository) ListPublic(ctx context.Context) ([]*models.CouponDefinition, error) {
	return r.list(ctx, docstore.Where(
		docstore.Eq(FieldPublic, true),
		docstore.Eq(FieldActive, true),
	))
}

func (r *repository) list(ctx context.Context, q docstore.Query) ([]*models.CouponDefinition, error) {

	docs, err := r.store.Query(ctx, CollectionCoupons, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	coupons := make([]*models.CouponDefinition, 0, len(docs))
	for _, doc := range docs {
		coupon, err := r.decode(ctx, doc)
		if err != nil {
			r.logger.Warn("skipping undecodable coupon", zap.String("coupon_id", doc.ID), zap.Error(err))
			continue
		}
		coupons = append(coupons, coupon)
	}

	return coupons, nil
}

// Upsert merges the non-nil fields of coupon into its definition.
func (r *repository) Upsert(ctx context.Context, coupon *models.PartialCoupon) error {
	fields := make(map[string]any)

	if coupon.BusinessID != nil {
		fields[FieldBusinessID] = *coupon.BusinessID
	}
	if coupon.Title != nil {
		fields["title"] = *coupon.Title
	}
	if coupon.DiscountType != nil {
		fields["discountType"] = *coupon.DiscountType
	}
	if coupon.DiscountPercentage != nil {
		fields["discountPercentage"] = *coupon.DiscountPercentage
	}
	if coupon.DiscountAmount != nil {
		fields["discountAmount"] = *coupon.DiscountAmount
	}
	if coupon.ValidUntil != nil {
		fields["validUntil"] = coupon.ValidUntil.UTC()
	}
	if coupon.MaxRedemptions != nil {
		fields["maxRedemptions"] = *coupon.MaxRedemptions
	}
	if coupon.TimesRedeemed != nil {
		fields["timesRedeemed"] = *coupon.TimesRedeemed
	}
	if coupon.Active != nil {
		fields[FieldActive] = *coupon.Active
	}
	if coupon.Public != nil {
		fields[FieldPublic] = *coupon.Public
	}

	if err := r.store.SetMerge(ctx, CollectionCoupons, coupon.ID, fields); err != nil {
		return fmt.Errorf("failed to upsert coupon: %w", err)
	}

	return nil
}
