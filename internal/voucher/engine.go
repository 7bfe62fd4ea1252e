package voucher

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

var (
	// ErrCodeRequired is returned when the shopper submits a blank code.
	ErrCodeRequired = errors.New("coupon code is required")
	// ErrSuperseded indicates a newer application started before this one finished.
	ErrSuperseded = errors.New("coupon application superseded")
)

// Kind distinguishes percentage coupons from fixed-amount coupons.
type Kind string

const (
	Percentage Kind = "percentage"
	Fixed      Kind = "fixed"
)

// ParseKind maps the Commerce API discount type onto a Kind. Anything that is
// not a percentage is treated as a fixed amount.
func ParseKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "percent", "percentage", "percentage_discount":
		return Percentage
	default:
		return Fixed
	}
}

// Coupon holds the accepted terms of a coupon. MinOrder, MaxDiscount and
// ExpiresAt are informational; the Commerce API enforces them.
type Coupon struct {
	Code        string          `json:"code"`
	Kind        Kind            `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	MinOrder    pricing.Money   `json:"minOrder,omitempty"`
	MaxDiscount pricing.Money   `json:"maxDiscount,omitempty"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
}

// Rejection carries the reason the Commerce API refused a code.
type Rejection struct {
	Code   string
	Reason string
}

func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	if r.Reason == "" {
		return "coupon " + r.Code + " rejected"
	}
	return r.Reason
}

// Normalize trims and uppercases a code.
func Normalize(code string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return "", ErrCodeRequired
	}
	return trimmed, nil
}

// Compute returns the promotional discount for the post-discount merchandise
// total, clamped to [0, total].
func Compute(c *Coupon, total pricing.Money) pricing.Money {
	if c == nil || total <= 0 || c.Value.Sign() <= 0 {
		return 0
	}
	var discount pricing.Money
	if c.Kind == Percentage {
		discount = pricing.PercentOf(total, c.Value)
	} else {
		discount = c.Value.Round(0).IntPart()
	}
	if discount > total {
		return total
	}
	if discount < 0 {
		return 0
	}
	return discount
}
