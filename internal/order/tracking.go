package order

import (
	"strings"
	"time"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Status is the normalised delivery status of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPickedUp       Status = "picked_up"
	StatusOnTheWay       Status = "on_the_way"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusPaymentPending Status = "payment_pending"
)

// NormalizeStatus maps the Commerce API delivery status labels onto Status.
func NormalizeStatus(external string) Status {
	label := strings.ToLower(strings.TrimSpace(external))
	label = strings.NewReplacer("-", "_", " ", "_").Replace(label)
	switch label {
	case "confirmed", "processing":
		return StatusConfirmed
	case "picked", "pickup", "picked_up":
		return StatusPickedUp
	case "on_the_way", "shipped", "in_transit", "out_for_delivery":
		return StatusOnTheWay
	case "delivered":
		return StatusDelivered
	case "cancelled", "canceled", "refunded":
		return StatusCancelled
	case "unpaid", "payment_pending":
		return StatusPaymentPending
	}
	return StatusPending
}

// Event is one entry in an order's tracking history.
type Event struct {
	Status Status    `json:"status"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// Tracking is the public tracking view of an order.
type Tracking struct {
	Code          string        `json:"code"`
	Status        Status        `json:"status"`
	RawStatus     string        `json:"rawStatus,omitempty"`
	PaymentStatus string        `json:"paymentStatus,omitempty"`
	PlacedAt      string        `json:"placedAt,omitempty"`
	GrandTotal    pricing.Money `json:"grandTotal"`
	Events        []Event       `json:"events"`
}
