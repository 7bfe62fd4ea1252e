package pricing

import "math"

// Money represents a monetary value in whole currency units.
type Money = int64

// Line describes a cart line used for aggregation.
type Line struct {
	Qty            int
	UnitPrice      Money
	ReferencePrice Money
}

// Totals aggregates the merchandise components of a cart.
type Totals struct {
	// Subtotal is Σ max(referencePrice, salePrice) × qty; a reference below the
	// sale price is lifted so Discount is never negative.
	Subtotal         Money `json:"subtotal"`
	Discount         Money `json:"discount"`
	MerchandiseTotal Money `json:"merchandiseTotal"`
}

// EffectiveReference returns the reference price used for aggregation. A sale
// price above the stroked price lifts the reference so savings never go negative.
func (l Line) EffectiveReference() Money {
	sale := nonNegative(l.UnitPrice)
	ref := nonNegative(l.ReferencePrice)
	if sale > ref {
		return sale
	}
	return ref
}

// Savings returns the clamped per-unit discount of the line.
func (l Line) Savings() Money {
	return l.EffectiveReference() - nonNegative(l.UnitPrice)
}

// Aggregate computes subtotal, discount and merchandise total for the provided lines.
// Subtotal is always expressed in reference prices. Sums saturate at the
// largest Money value instead of wrapping.
func Aggregate(lines []Line) Totals {
	var out Totals
	for _, l := range lines {
		qty := Money(l.Qty)
		if qty <= 0 {
			continue
		}
		out.Subtotal = addSat(out.Subtotal, mulSat(l.EffectiveReference(), qty))
		out.MerchandiseTotal = addSat(out.MerchandiseTotal, mulSat(nonNegative(l.UnitPrice), qty))
	}
	out.Discount = out.Subtotal - out.MerchandiseTotal
	return out
}

// SaleTotal sums sale price times quantity. It always equals Aggregate(lines).MerchandiseTotal.
func SaleTotal(lines []Line) Money {
	var total Money
	for _, l := range lines {
		if l.Qty <= 0 {
			continue
		}
		total = addSat(total, mulSat(nonNegative(l.UnitPrice), Money(l.Qty)))
	}
	return total
}

// GrandTotal is the single payable-total formula used before submission and
// when re-deriving totals from a persisted order summary.
func GrandTotal(subtotal, discount, deliveryCharge, promoDiscount Money) Money {
	return addSat(subtotal-discount, nonNegative(deliveryCharge)) - promoDiscount
}

// mulSat expects non-negative operands, addSat a non-negative b.
func mulSat(a, b Money) Money {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func addSat(a, b Money) Money {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func nonNegative(v Money) Money {
	if v < 0 {
		return 0
	}
	return v
}
