package variant

import "strings"

// KeySeparator joins display tokens into a canonical variant key.
const KeySeparator = "-"

// colorNames maps uppercased hex codes to the display names used in variant keys.
var colorNames = map[string]string{
	"#000000": "Midnight",
	"#FFFFFF": "White",
	"#F5F5F0": "Starlight",
	"#C0C0C0": "Silver",
	"#808080": "Space Gray",
	"#2F4F4F": "Graphite",
	"#FFD700": "Gold",
	"#FF0000": "Red",
	"#0000FF": "Blue",
	"#000080": "Navy",
	"#008000": "Green",
	"#FFC0CB": "Pink",
	"#800080": "Purple",
	"#FFFF00": "Yellow",
	"#FFA500": "Orange",
}

// ColorName returns the display name for a hex color. Unknown codes pass
// through uppercased, keeping the leading '#'.
func ColorName(hex string) string {
	code := strings.ToUpper(strings.TrimSpace(hex))
	if name, ok := colorNames[code]; ok {
		return name
	}
	return code
}

// Variant is a priced and stocked combination of a product's attributes.
type Variant struct {
	Variant string `json:"variant"`
	Price   int64  `json:"price"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
	Image   string `json:"image,omitempty"`
}

// Valid reports whether the variant carries both a key and a SKU.
func (v Variant) Valid() bool {
	return strings.TrimSpace(v.Variant) != "" && strings.TrimSpace(v.SKU) != ""
}

// Filter drops malformed variants.
func Filter(variants []Variant) []Variant {
	out := make([]Variant, 0, len(variants))
	for _, v := range variants {
		if v.Valid() {
			out = append(out, v)
		}
	}
	return out
}

// Tokens returns the ordered display tokens for a selection: the color name
// first, then the selected value of each axis in order. Axes without a
// selection are skipped.
func Tokens(color string, selections map[string]string, order []string) []string {
	tokens := make([]string, 0, len(order)+1)
	if strings.TrimSpace(color) != "" {
		tokens = append(tokens, ColorName(color))
	}
	for _, title := range order {
		value, ok := selections[title]
		if !ok || value == "" {
			continue
		}
		tokens = append(tokens, value)
	}
	return tokens
}

// Key builds the canonical variant key. It returns "" when nothing is selected.
func Key(color string, selections map[string]string, order []string) string {
	return strings.Join(Tokens(color, selections, order), KeySeparator)
}

// Resolve finds the variant whose key exactly matches the selection. A nil
// result means the caller must fall back to base product price and stock.
func Resolve(color string, selections map[string]string, order []string, variants []Variant) *Variant {
	key := Key(color, selections, order)
	if key == "" {
		return nil
	}
	for _, v := range Filter(variants) {
		if v.Variant == key {
			found := v
			return &found
		}
	}
	return nil
}
