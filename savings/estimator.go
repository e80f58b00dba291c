package savings

import (
	"regexp"
	"strconv"
	"strings"

	"goflare.io/loyalty/models"
)

const (
	DefaultAveragePurchase = 50.0
	DefaultFloor           = 5.0
)

var leadingNumber = regexp.MustCompile(`\d+`)

// Estimator values a redemption from its coupon definition when no exact
// amount was recorded.
type Estimator struct {
	AveragePurchase float64
	Floor           float64
}

func NewEstimator(averagePurchase, floor float64) Estimator {
	if averagePurchase <= 0 {
		averagePurchase = DefaultAveragePurchase
	}
	if floor <= 0 {
		floor = DefaultFloor
	}
	return Estimator{AveragePurchase: averagePurchase, Floor: floor}
}

// EstimateValue walks value, percentage, fixed amount, then discount text,
// stopping at the first applicable field. Anything else is worth Floor.
func (e Estimator) EstimateValue(coupon *models.CouponDefinition) float64 {
	if coupon == nil {
		return e.Floor
	}
	if positive(coupon.Value) {
		return *coupon.Value
	}
	if positive(coupon.DiscountPercentage) {
		return e.percentOf(*coupon.DiscountPercentage)
	}
	if positive(coupon.DiscountAmount) {
		return *coupon.DiscountAmount
	}
	if v, ok := e.fromText(coupon.DiscountText); ok {
		return v
	}
	return e.Floor
}

func (e Estimator) fromText(text string) (float64, bool) {
	match := leadingNumber.FindString(text)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil || n <= 0 {
		return 0, false
	}
	if strings.Contains(text, "%") {
		return e.percentOf(float64(n)), true
	}
	return float64(n), true
}

func (e Estimator) percentOf(pct float64) float64 {
	return pct / 100 * e.AveragePurchase
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}
