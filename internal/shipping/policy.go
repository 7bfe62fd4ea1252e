package shipping

import (
	"strings"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Method identifies a delivery zone choice.
type Method string

const (
	// Inside delivers within the metro zone.
	Inside Method = "inside"
	// Outside delivers beyond the metro zone.
	Outside Method = "outside"
	// Pickup collects the order from the shop; there is no delivery leg.
	Pickup Method = "shop_pickup"
)

// DefaultZoneKeyword is the metro-zone keyword used when none is configured.
const DefaultZoneKeyword = "Dhaka"

// Config holds the delivery charges published by the Commerce API.
type Config struct {
	InsideCharge          pricing.Money `json:"insideCharge"`
	OutsideCharge         pricing.Money `json:"outsideCharge"`
	FreeShippingMinAmount pricing.Money `json:"freeShippingMinAmount"`
	CurrencySymbol        string        `json:"currencySymbol"`
}

// ParseMethod validates a method string.
func ParseMethod(raw string) (Method, bool) {
	switch Method(strings.ToLower(strings.TrimSpace(raw))) {
	case Inside:
		return Inside, true
	case Outside:
		return Outside, true
	case Pickup:
		return Pickup, true
	}
	return "", false
}

// DeliveryCharge computes the delivery charge for the method and merchandise
// total. Unknown methods are charged like Outside.
func DeliveryCharge(method Method, merchandiseTotal pricing.Money, cfg Config) pricing.Money {
	switch method {
	case Pickup:
		return 0
	case Inside:
		if freeShipping(merchandiseTotal, cfg) {
			return 0
		}
		return nonNegative(cfg.InsideCharge)
	default:
		if freeShipping(merchandiseTotal, cfg) {
			return 0
		}
		return nonNegative(cfg.OutsideCharge)
	}
}

func freeShipping(total pricing.Money, cfg Config) bool {
	return cfg.FreeShippingMinAmount > 0 && total >= cfg.FreeShippingMinAmount
}

// DefaultMethod picks Inside when the district mentions the metro-zone keyword
// (case-insensitive) and Outside otherwise.
func DefaultMethod(district, keyword string) Method {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		keyword = DefaultZoneKeyword
	}
	if strings.Contains(strings.ToLower(district), strings.ToLower(keyword)) {
		return Inside
	}
	return Outside
}

// SelectMethod honours an explicit valid choice and otherwise derives the
// method from the district.
func SelectMethod(explicit, district, keyword string) Method {
	if m, ok := ParseMethod(explicit); ok {
		return m
	}
	return DefaultMethod(district, keyword)
}

// Label returns the human-readable method label.
func Label(method Method, keyword string) string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		keyword = DefaultZoneKeyword
	}
	switch method {
	case Inside:
		return "Inside " + keyword
	case Pickup:
		return "Shop Pickup"
	default:
		return "Outside " + keyword
	}
}

func nonNegative(v pricing.Money) pricing.Money {
	if v < 0 {
		return 0
	}
	return v
}
