package order

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/shipping"
)

// Customer is the shopper's delivery and contact details.
type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	District string `json:"district"`
	Note     string `json:"note,omitempty"`
}

// Line is a priced cart line as it was submitted.
type Line struct {
	ProductID      int64         `json:"productId"`
	Name           string        `json:"name"`
	Variant        string        `json:"variant,omitempty"`
	Qty            int           `json:"qty"`
	UnitPrice      pricing.Money `json:"unitPrice"`
	ReferencePrice pricing.Money `json:"referencePrice"`
	Image          string        `json:"image,omitempty"`
}

// Totals holds the exact values shown to the shopper before submission.
// Paid, Due and PaymentStatus are reported by the Commerce API once the
// order is accepted and are absent until then.
type Totals struct {
	Subtotal       pricing.Money  `json:"subtotal"`
	Discount       pricing.Money  `json:"discount"`
	DeliveryCharge pricing.Money  `json:"deliveryCharge"`
	CouponCode     string         `json:"couponCode,omitempty"`
	CouponDiscount pricing.Money  `json:"couponDiscount"`
	GrandTotal     pricing.Money  `json:"grandTotal"`
	Paid           *pricing.Money `json:"paid,omitempty"`
	Due            *pricing.Money `json:"due,omitempty"`
	PaymentStatus  string         `json:"paymentStatus,omitempty"`
}

// quoted drops the settlement fields so the checksum only covers what the
// shopper confirmed.
func (t Totals) quoted() Totals {
	t.Paid, t.Due, t.PaymentStatus = nil, nil, ""
	return t
}

// Recompute derives the grand total from the persisted components.
func (t Totals) Recompute() pricing.Money {
	return pricing.GrandTotal(t.Subtotal, t.Discount, t.DeliveryCharge, t.CouponDiscount)
}

// Consistent reports whether the stored grand total matches its components.
func (t Totals) Consistent() bool {
	return t.GrandTotal == t.Recompute()
}

// Summary is the snapshot persisted after a successful submission and shown
// on the confirmation view.
type Summary struct {
	OrderID        string          `json:"orderId,omitempty"`
	Code           string          `json:"code,omitempty"`
	PlacedAt       time.Time       `json:"placedAt"`
	Customer       Customer        `json:"customer"`
	PaymentMethod  string          `json:"paymentMethod"`
	ShippingMethod shipping.Method `json:"shippingMethod"`
	ShippingLabel  string          `json:"shippingLabel"`
	Items          []Line          `json:"items"`
	Totals         Totals          `json:"totals"`
	Checksum       string          `json:"checksum,omitempty"`
}

// payload is the part of a summary covered by the checksum.
type payload struct {
	Customer       Customer        `json:"customer"`
	PaymentMethod  string          `json:"paymentMethod"`
	ShippingMethod shipping.Method `json:"shippingMethod"`
	Items          []Line          `json:"items"`
	Totals         Totals          `json:"totals"`
}

// ComputeChecksum returns the SHA-256 of the canonical submission payload.
func (s Summary) ComputeChecksum() string {
	data, err := json.Marshal(payload{
		Customer:       s.Customer,
		PaymentMethod:  s.PaymentMethod,
		ShippingMethod: s.ShippingMethod,
		Items:          s.Items,
		Totals:         s.Totals.quoted(),
	})
	if err != nil {
		return ""
	}
	return common.Checksum(string(data))
}

// Placement is the Commerce API's answer to an accepted order.
type Placement struct {
	OrderID       string         `json:"orderId,omitempty"`
	Code          string         `json:"code"`
	PaymentURL    string         `json:"paymentUrl,omitempty"`
	Message       string         `json:"message,omitempty"`
	Paid          *pricing.Money `json:"paid,omitempty"`
	Due           *pricing.Money `json:"due,omitempty"`
	PaymentStatus string         `json:"paymentStatus,omitempty"`
}

// Settle records the identifiers and payment state of an accepted order.
// The checksum is unaffected.
func (s *Summary) Settle(p Placement) {
	s.OrderID = p.OrderID
	s.Code = p.Code
	s.Totals.Paid = p.Paid
	s.Totals.Due = p.Due
	s.Totals.PaymentStatus = p.PaymentStatus
}
