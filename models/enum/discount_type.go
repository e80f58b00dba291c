package enum

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
	DiscountTypeBuyGet     DiscountType = "buy_get"
	DiscountTypeFreeItem   DiscountType = "free_item"
)
