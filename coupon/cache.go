package coupon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"goflare.io/ember"

	"goflare.io/loyalty/models"
)

var _ Repository = (*cachedRepository)(nil)

// cachedRepository keeps coupon definitions hydrated by id in the multi-level
// cache. Lists are not cached; business offers change too often.
type cachedRepository struct {
	Repository
	cache  *ember.MultiCache
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewCachedRepository(repo Repository, cache *ember.MultiCache, ttl time.Duration, logger *zap.Logger) Repository {
	return &cachedRepository{
		Repository: repo,
		cache:      cache,
		ttl:        ttl,
		now:        time.Now,
		logger:     logger,
	}
}

func cacheKey(id string) string {
	return fmt.Sprintf("coupon:%s", id)
}

// cachedCoupon carries the time it was stored so entries older than the
// configured ttl are treated as misses.
type cachedCoupon struct {
	Coupon   *models.CouponDefinition `json:"coupon"`
	CachedAt time.Time                `json:"cached_at"`
}

func (r *cachedRepository) GetByID(ctx context.Context, id string) (*models.CouponDefinition, error) {
	key := cacheKey(id)

	var cached cachedCoupon
	found, err := r.cache.Get(ctx, key, &cached)
	if err != nil {
		r.logger.Warn("Failed to get coupon from cache", zap.Error(err), zap.String("coupon_id", id))
	} else if found && cached.Coupon != nil && r.fresh(cached.CachedAt) {
		return cached.Coupon, nil
	}

	coupon, err := r.Repository.GetByID(ctx, id)
	if err != nil || coupon == nil {
		return coupon, err
	}

	if err = r.cache.Set(ctx, key, cachedCoupon{Coupon: coupon, CachedAt: r.now()}); err != nil {
		r.logger.Warn("Failed to cache coupon", zap.Error(err), zap.String("coupon_id", id))
	}

	return coupon, nil
}

func (r *cachedRepository) fresh(at time.Time) bool {
	return r.ttl <= 0 || r.now().Sub(at) < r.ttl
}

func (r *cachedRepository) Upsert(ctx context.Context, coupon *models.PartialCoupon) error {
	if err := r.Repository.Upsert(ctx, coupon); err != nil {
		return err
	}

	if err := r.cache.Delete(ctx, cacheKey(coupon.ID)); err != nil {
		r.logger.Warn("Failed to evict coupon from cache", zap.Error(err), zap.String("coupon_id", coupon.ID))
	}

	return nil
}
