package variant

import "github.com/noah-isme/toko-storefront/internal/pricing"

// Axis is a named attribute axis with its ordered option values.
type Axis struct {
	Name    string   `json:"name,omitempty"`
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

// Axes is an ordered list of attribute axes. Order is significant: it
// determines token order in variant keys.
type Axes []Axis

// Order returns the titles of axes that have at least one option.
func (a Axes) Order() []string {
	out := make([]string, 0, len(a))
	for _, axis := range a {
		if len(axis.Options) == 0 {
			continue
		}
		out = append(out, axis.Title)
	}
	return out
}

// Lookup returns the axis with the given title.
func (a Axes) Lookup(title string) (Axis, bool) {
	for _, axis := range a {
		if axis.Title == title {
			return axis, true
		}
	}
	return Axis{}, false
}

// Product is the normalised product consumed by the pricing core.
type Product struct {
	ID             int64     `json:"id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	Thumbnail      string    `json:"thumbnail,omitempty"`
	ReferencePrice int64     `json:"strokedPrice"`
	SalePrice      int64     `json:"mainPrice"`
	Discount       string    `json:"discount,omitempty"`
	ChoiceOptions  Axes      `json:"choiceOptions"`
	Colors         []string  `json:"colors"`
	Variants       []Variant `json:"variants"`
	Stock          int       `json:"currentStock"`
}

// Selection is the per-view selection state of a product.
type Selection struct {
	Color   string            `json:"color,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

// Quote is the effective price and stock for a selection.
type Quote struct {
	Key            string   `json:"variant,omitempty"`
	Variant        *Variant `json:"-"`
	ReferencePrice int64    `json:"referencePrice"`
	SalePrice      int64    `json:"salePrice"`
	Stock          int      `json:"stock"`
	Image          string   `json:"image,omitempty"`
}

// Matched reports whether the quote is backed by a variant record.
func (q Quote) Matched() bool {
	return q.Variant != nil
}

// DefaultSelection selects the first color and the first option of every axis.
func (p Product) DefaultSelection() Selection {
	sel := Selection{Options: make(map[string]string, len(p.ChoiceOptions))}
	if len(p.Colors) > 0 {
		sel.Color = p.Colors[0]
	}
	for _, axis := range p.ChoiceOptions {
		if len(axis.Options) > 0 {
			sel.Options[axis.Title] = axis.Options[0]
		}
	}
	return sel
}

// Normalize fills unset axes with their first option and drops selections for
// unknown axes or values not offered by the product.
func (p Product) Normalize(sel Selection) Selection {
	def := p.DefaultSelection()
	out := Selection{Color: def.Color, Options: def.Options}
	if sel.Color != "" && p.offersColor(sel.Color) {
		out.Color = sel.Color
	}
	for title, value := range sel.Options {
		axis, ok := p.ChoiceOptions.Lookup(title)
		if !ok {
			continue
		}
		for _, opt := range axis.Options {
			if opt == value {
				out.Options[title] = value
				break
			}
		}
	}
	return out
}

func (p Product) offersColor(color string) bool {
	want := ColorName(color)
	for _, c := range p.Colors {
		if ColorName(c) == want {
			return true
		}
	}
	return false
}

// Resolve computes the effective pricing for a selection. A matched variant
// supplies the reference price, stock and image, and the product-level
// discount is re-applied on top of the variant price. Without a match the
// base product values are used.
func (p Product) Resolve(sel Selection) Quote {
	key := Key(sel.Color, sel.Options, p.ChoiceOptions.Order())
	v := Resolve(sel.Color, sel.Options, p.ChoiceOptions.Order(), p.Variants)
	if v == nil {
		return Quote{
			ReferencePrice: p.ReferencePrice,
			SalePrice:      p.baseSalePrice(),
			Stock:          p.Stock,
			Image:          p.Thumbnail,
		}
	}
	q := Quote{
		Key:            key,
		Variant:        v,
		ReferencePrice: v.Price,
		SalePrice:      pricing.SalePrice(v.Price, p.Discount),
		Stock:          v.Qty,
		Image:          v.Image,
	}
	if q.Image == "" {
		q.Image = p.Thumbnail
	}
	return q
}

func (p Product) baseSalePrice() int64 {
	if p.SalePrice > 0 {
		return p.SalePrice
	}
	return pricing.SalePrice(p.ReferencePrice, p.Discount)
}
