package enums

// CouponType selects how a coupon's value becomes a discount.
type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

func (c CouponType) IsValid() bool {
	return oneOf(c, []CouponType{CouponTypePercentage, CouponTypeFixed})
}
