package savings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goflare.io/loyalty/apperr"
	"goflare.io/loyalty/docstore"
	"goflare.io/loyalty/identity"
	"goflare.io/loyalty/models"
)

const DefaultMonthlyGoal = 100.0

// CouponLookup returns nil for a definition that no longer exists.
type CouponLookup interface {
	GetByID(ctx context.Context, id string) (*models.CouponDefinition, error)
}

type Service interface {
	ComputeStats(ctx context.Context, userID string) models.SavingsStats
	Stats(ctx context.Context, set identity.Set) models.SavingsStats
}

type Options struct {
	MonthlyGoal     float64
	AveragePurchase float64
	Floor           float64
	Location        *time.Location
}

type service struct {
	repo      Repository
	identity  identity.Service
	coupons   CouponLookup
	estimator Estimator
	goal      float64
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, identity identity.Service, coupons CouponLookup, opts Options, logger *zap.Logger) Service {
	goal := opts.MonthlyGoal
	if goal <= 0 {
		goal = DefaultMonthlyGoal
	}
	location := opts.Location
	if location == nil {
		location = time.UTC
	}

	return &service{
		repo:      repo,
		identity:  identity,
		coupons:   coupons,
		estimator: NewEstimator(opts.AveragePurchase, opts.Floor),
		goal:      goal,
		location:  location,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) ComputeStats(ctx context.Context, userID string) models.SavingsStats {
	set, err := identity.ResolveSet(ctx, s.identity, s.logger, userID)
	if set.UserID == "" {
		s.logger.Info("savings stats skipped", zap.Error(err))
		return models.SavingsStats{}
	}
	return s.Stats(ctx, set)
}

// sources holds every owner's savings data, deduplicated by id.
type sources struct {
	events        []models.SavingsEvent
	monthEvents   []models.SavingsEvent
	redemptions   []models.RedemptionRecord
	monthRedeemed []models.RedemptionRecord
}

func (s *service) Stats(ctx context.Context, set identity.Set) models.SavingsStats {
	now := s.now().In(s.location)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.location)

	src := s.collect(ctx, set.OwnerIDs(), monthStart)
	estimates := s.estimates(ctx, set.UserID, src.redemptions, src.monthRedeemed)

	var stats models.SavingsStats
	var dates []time.Time

	if len(src.events) > 0 {
		for _, e := range src.events {
			stats.TotalSaved += e.Amount
			dates = append(dates, e.Date)
		}
	} else {
		for _, r := range src.redemptions {
			stats.TotalSaved += estimates[r.CouponID]
			dates = append(dates, r.RedeemedAt)
		}
	}

	if len(src.monthEvents) > 0 {
		for _, e := range src.monthEvents {
			stats.MonthlySaved += e.Amount
		}
	} else {
		for _, r := range src.monthRedeemed {
			stats.MonthlySaved += estimates[r.CouponID]
		}
	}

	stats.CurrentStreak, stats.LongestStreak = Streaks(dates, now, s.location)
	stats.GoalProgress = math.Min(100, stats.MonthlySaved/s.goalFor(set)*100)

	return stats
}

func (s *service) goalFor(set identity.Set) float64 {
	if set.User != nil && set.User.MonthlySavingsGoal > 0 {
		return set.User.MonthlySavingsGoal
	}
	return s.goal
}

type ownerResult struct {
	events        []models.SavingsEvent
	monthEvents   []models.SavingsEvent
	redemptions   []models.RedemptionRecord
	monthRedeemed []models.RedemptionRecord
	errs          [4]error
}

var queryNames = [4]string{"savings_events", "savings_events_month", "redemptions", "redemptions_month"}

// collect queries all four sources for every owner concurrently. A failed
// query contributes nothing.
func (s *service) collect(ctx context.Context, owners []string, monthStart time.Time) sources {
	results := make([]ownerResult, len(owners))

	var g errgroup.Group
	for i, owner := range owners {
		i, owner := i, owner
		res := &results[i]
		g.Go(func() error {
			res.events, res.errs[0] = guard(func() ([]models.SavingsEvent, error) {
				return s.repo.ListEvents(ctx, owner, time.Time{})
			})
			return nil
		})
		g.Go(func() error {
			res.monthEvents, res.errs[1] = guard(func() ([]models.SavingsEvent, error) {
				return s.repo.ListEvents(ctx, owner, monthStart)
			})
			return nil
		})
		g.Go(func() error {
			res.redemptions, res.errs[2] = guard(func() ([]models.RedemptionRecord, error) {
				return s.repo.ListRedemptions(ctx, owner, time.Time{})
			})
			return nil
		})
		g.Go(func() error {
			res.monthRedeemed, res.errs[3] = guard(func() ([]models.RedemptionRecord, error) {
				return s.repo.ListRedemptions(ctx, owner, monthStart)
			})
			return nil
		})
	}
	_ = g.Wait()

	var src sources
	events := newDedup[models.SavingsEvent](func(e models.SavingsEvent) string { return e.ID })
	monthEvents := newDedup[models.SavingsEvent](func(e models.SavingsEvent) string { return e.ID })
	redemptions := newDedup[models.RedemptionRecord](func(r models.RedemptionRecord) string { return r.ID })
	monthRedeemed := newDedup[models.RedemptionRecord](func(r models.RedemptionRecord) string { return r.ID })

	for i, res := range results {
		for q, err := range res.errs {
			if errors.Is(err, docstore.ErrMalformedValue) {
				s.logger.Error("savings source holds malformed data",
					zap.String("source", queryNames[q]),
					zap.String("owner_id", owners[i]),
					zap.Error(err))
				continue
			}
			if err != nil {
				s.logger.Warn("savings source failed",
					zap.String("source", queryNames[q]),
					zap.String("owner_id", owners[i]),
					zap.Error(apperr.Unavailable(queryNames[q], owners[i], err)))
			}
		}
		src.events = events.add(src.events, res.events)
		src.monthEvents = monthEvents.add(src.monthEvents, res.monthEvents)
		src.redemptions = redemptions.add(src.redemptions, res.redemptions)
		src.monthRedeemed = monthRedeemed.add(src.monthRedeemed, res.monthRedeemed)
	}

	return src
}

// estimates values every coupon referenced by the redemptions once.
func (s *service) estimates(ctx context.Context, ownerID string, lists ...[]models.RedemptionRecord) map[string]float64 {
	values := make(map[string]float64)
	for _, list := range lists {
		for _, r := range list {
			if _, ok := values[r.CouponID]; ok {
				continue
			}
			values[r.CouponID] = s.estimate(ctx, ownerID, r.CouponID)
		}
	}
	return values
}

func (s *service) estimate(ctx context.Context, ownerID, couponID string) float64 {
	if couponID == "" {
		return s.estimator.Floor
	}

	coupon, err := s.coupons.GetByID(ctx, couponID)
	if err != nil {
		s.logger.Warn("coupon lookup failed, using floor value",
			zap.String("source", "coupons"),
			zap.String("owner_id", ownerID),
			zap.String("coupon_id", couponID),
			zap.Error(err))
		return s.estimator.Floor
	}
	if coupon == nil {
		s.logger.Info("redemption references missing coupon, using floor value",
			zap.String("source", "coupons"),
			zap.String("owner_id", ownerID),
			zap.String("coupon_id", couponID),
			zap.String("kind", string(apperr.StaleReference)))
	}
	return s.estimator.EstimateValue(coupon)
}

func guard[T any](fn func() ([]T, error)) (out []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("query panicked: %v", r)
		}
	}()
	return fn()
}

type dedup[T any] struct {
	key  func(T) string
	seen map[string]struct{}
}

func newDedup[T any](key func(T) string) *dedup[T] {
	return &dedup[T]{key: key, seen: make(map[string]struct{})}
}

func (d *dedup[T]) add(dst, items []T) []T {
	for _, item := range items {
		k := d.key(item)
		if k != "" {
			if _, ok := d.seen[k]; ok {
				continue
			}
			d.seen[k] = struct{}{}
		}
		dst = append(dst, item)
	}
	return dst
}
