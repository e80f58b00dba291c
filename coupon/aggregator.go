package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goflare.io/loyalty/apperr"
	"goflare.io/loyalty/entitlement"
	"goflare.io/loyalty/identity"
	"goflare.io/loyalty/models"
)

const (
	SourceDistributions   = "distributions"
	SourceCustomerCoupons = "customer_coupons"
	SourcePhone           = "phone"
	SourceBusiness        = "business_fallback"

	hydrateConcurrency = 8
)

// SourceReport describes one lookup of an aggregation.
type SourceReport struct {
	Name string
	IDs  []string
	Err  error
}

// Report explains how an aggregation was assembled. Stale lists coupon ids
// whose definitions no longer exist.
type Report struct {
	Sources []SourceReport
	Merged  []string
	Stale   []string
}

func (r Report) Failed() []string {
	var names []string
	for _, s := range r.Sources {
		if s.Err != nil {
			names = append(names, s.Name)
		}
	}
	return names
}

// Aggregator gathers every coupon a consumer holds across both entitlement
// schemas. It never fails: lookups that error are logged and skipped.
type Aggregator interface {
	AggregateCoupons(ctx context.Context, userID string) []*models.CouponDefinition
	Aggregate(ctx context.Context, set identity.Set) ([]*models.CouponDefinition, Report)
}

type aggregator struct {
	identity     identity.Service
	entitlements entitlement.Service
	coupons      Repository
	logger       *zap.Logger
	now          func() time.Time
}

func NewAggregator(identity identity.Service, entitlements entitlement.Service, coupons Repository, logger *zap.Logger) Aggregator {
	return &aggregator{
		identity:     identity,
		entitlements: entitlements,
		coupons:      coupons,
		logger:       logger,
		now:          time.Now,
	}
}

func (a *aggregator) AggregateCoupons(ctx context.Context, userID string) []*models.CouponDefinition {
	set, err := identity.ResolveSet(ctx, a.identity, a.logger, userID)
	if set.UserID == "" {
		a.logger.Info("coupon aggregation skipped", zap.Error(err))
		return []*models.CouponDefinition{}
	}

	coupons, report := a.Aggregate(ctx, set)
	a.logger.Debug("coupons aggregated",
		zap.String("owner_id", set.UserID),
		zap.Int("coupons", len(coupons)),
		zap.Strings("failed_sources", report.Failed()),
		zap.Int("stale", len(report.Stale)))
	return coupons
}

type lookup struct {
	name string
	run  func(ctx context.Context) ([]string, error)
}

func (a *aggregator) Aggregate(ctx context.Context, set identity.Set) ([]*models.CouponDefinition, Report) {
	owners := set.OwnerIDs()

	lookups := []lookup{
		{SourceDistributions, func(ctx context.Context) ([]string, error) { return a.byDistribution(ctx, owners) }},
		{SourceCustomerCoupons, func(ctx context.Context) ([]string, error) { return a.byCustomerCoupon(ctx, owners) }},
		{SourcePhone, func(ctx context.Context) ([]string, error) { return a.byPhone(ctx, set.UserID, set.Phone()) }},
		{SourceBusiness, func(ctx context.Context) ([]string, error) { return a.businessFallback(ctx, set) }},
	}

	report := Report{Sources: make([]SourceReport, len(lookups))}

	var g errgroup.Group
	for i, l := range lookups {
		i, l := i, l
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					report.Sources[i] = SourceReport{Name: l.name, Err: fmt.Errorf("lookup panicked: %v", r)}
				}
			}()
			ids, err := l.run(ctx)
			report.Sources[i] = SourceReport{Name: l.name, IDs: ids, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, source := range report.Sources {
		if source.Err != nil {
			a.logger.Warn("coupon source failed",
				zap.String("source", source.Name),
				zap.String("owner_id", set.UserID),
				zap.Int("partial_ids", len(source.IDs)),
				zap.Error(source.Err))
		}
	}

	report.Merged = mergeIDs(report.Sources)
	coupons, stale := a.hydrate(ctx, set.UserID, report.Merged)
	report.Stale = stale
	return coupons, report
}

// mergeIDs concatenates every source's ids, keeping the first occurrence.
func mergeIDs(sources []SourceReport) []string {
	merged := make([]string, 0)
	seen := make(map[string]struct{})
	for _, source := range sources {
		for _, id := range source.IDs {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	return merged
}

func (a *aggregator) byDistribution(ctx context.Context, owners []string) ([]string, error) {
	var (
		ids  []string
		errs []error
	)
	for _, owner := range owners {
		entitlements, err := a.entitlements.Distributions(ctx, owner)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = appendCouponIDs(ids, entitlements)
	}
	return ids, errors.Join(errs...)
}

func (a *aggregator) byCustomerCoupon(ctx context.Context, owners []string) ([]string, error) {
	var (
		ids  []string
		errs []error
	)
	for _, owner := range owners {
		entitlements, err := a.entitlements.CustomerCoupons(ctx, owner)
		if err != nil {
			errs = append(errs, err)
		}
		ids = appendCouponIDs(ids, entitlements)
	}
	return ids, errors.Join(errs...)
}

// byPhone repeats the entitlement lookups for every customer record sharing
// the phone; legacy data holds duplicates. Records linked to someone else are
// skipped.
func (a *aggregator) byPhone(ctx context.Context, userID, phone string) ([]string, error) {
	if phone == "" {
		return nil, nil
	}

	customers, err := a.identity.FindAllByPhone(ctx, phone)
	if apperr.Is(err, apperr.InvalidInput) {
		return nil, nil
	}

	errs := []error{err}
	owners := make([]string, 0, len(customers))
	for _, customer := range customers {
		if customer.LinkedToOther(userID) {
			continue
		}
		owners = append(owners, customer.ID)
	}

	ids, distErr := a.byDistribution(ctx, owners)
	more, ccErr := a.byCustomerCoupon(ctx, owners)
	errs = append(errs, distErr, ccErr)

	return append(ids, more...), errors.Join(errs...)
}

// businessFallback only contributes when no customer record was resolved:
// active offers of visited businesses, else public offers.
func (a *aggregator) businessFallback(ctx context.Context, set identity.Set) ([]string, error) {
	if set.Customer != nil {
		return nil, nil
	}

	now := a.now()
	var (
		ids  []string
		errs []error
	)
	for _, businessID := range set.BusinessIDs() {
		coupons, err := a.coupons.ListActiveByBusiness(ctx, businessID)
		if err != nil {
			errs = append(errs, apperr.Unavailable(CollectionCoupons, businessID, err))
			continue
		}
		ids = appendRedeemable(ids, coupons, now)
	}
	if len(ids) > 0 {
		return ids, errors.Join(errs...)
	}

	coupons, err := a.coupons.ListPublic(ctx)
	if err != nil {
		errs = append(errs, apperr.Unavailable(CollectionCoupons, "public", err))
		return nil, errors.Join(errs...)
	}
	return appendRedeemable(nil, coupons, now), errors.Join(errs...)
}

// hydrate resolves ids to definitions in order. Missing definitions are stale
// references and are dropped.
func (a *aggregator) hydrate(ctx context.Context, ownerID string, ids []string) ([]*models.CouponDefinition, []string) {
	found := make([]*models.CouponDefinition, len(ids))
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(hydrateConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			found[i], errs[i] = a.coupons.GetByID(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	coupons := make([]*models.CouponDefinition, 0, len(ids))
	var stale []string
	for i, id := range ids {
		switch {
		case errs[i] != nil:
			a.logger.Warn("coupon definition unavailable",
				zap.String("source", CollectionCoupons),
				zap.String("owner_id", ownerID),
				zap.String("coupon_id", id),
				zap.Error(apperr.Unavailable(CollectionCoupons, ownerID, errs[i])))
		case found[i] == nil:
			a.logger.Info("dropping stale coupon reference",
				zap.String("source", CollectionCoupons),
				zap.String("owner_id", ownerID),
				zap.String("coupon_id", id),
				zap.String("kind", string(apperr.StaleReference)))
			stale = append(stale, id)
		default:
			coupons = append(coupons, found[i])
		}
	}
	return coupons, stale
}

func appendCouponIDs(ids []string, entitlements []models.Entitlement) []string {
	for _, e := range entitlements {
		ids = append(ids, e.CouponID)
	}
	return ids
}

func appendRedeemable(ids []string, coupons []*models.CouponDefinition, now time.Time) []string {
	for _, c := range coupons {
		if c.IsRedeemableAt(now) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
