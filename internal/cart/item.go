package cart

import (
	"errors"

	"github.com/noah-isme/toko-storefront/internal/variant"
)

// ErrOutOfStock is returned when the resolved selection has no stock left or
// the requested quantity exceeds what is available.
var ErrOutOfStock = errors.New("selected item is out of stock")

// MaxLineQty caps a single cart line regardless of the reported stock.
const MaxLineQty = 999

// limit returns the largest quantity a line may hold. Stock of zero means the
// line predates stock tracking and only MaxLineQty applies.
func limit(stock int) int {
	if stock > 0 && stock < MaxLineQty {
		return stock
	}
	return MaxLineQty
}

// ItemFor builds the line item for a product selection. Unknown or missing
// selections fall back to the product defaults; a selection without a
// matching variant is added at base product pricing.
func ItemFor(p variant.Product, sel variant.Selection, qty int) (Item, error) {
	sel = p.Normalize(sel)
	q := p.Resolve(sel)
	if q.Stock <= 0 {
		return Item{}, ErrOutOfStock
	}
	if qty <= 0 {
		qty = 1
	}
	if qty > limit(q.Stock) {
		return Item{}, ErrOutOfStock
	}
	it := Item{
		ID:             p.ID,
		Slug:           p.Slug,
		Name:           p.Name,
		UnitPrice:      q.SalePrice,
		ReferencePrice: q.ReferencePrice,
		Image:          p.Thumbnail,
		Qty:            qty,
		Stock:          q.Stock,
	}
	if q.Matched() {
		it.Variant = &VariantRef{Key: q.Key, Color: sel.Color, Options: sel.Options}
		it.VariantImage = q.Image
	}
	return it, nil
}
