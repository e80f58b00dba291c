package enum

// SourceKind names the legacy schema an entitlement was read from.
type SourceKind string

const (
	SourceKindDistribution   SourceKind = "distribution"
	SourceKindCustomerCoupon SourceKind = "customer_coupon"
)
