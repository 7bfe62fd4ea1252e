package commerce

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/shipping"
	"github.com/noah-isme/toko-storefront/internal/variant"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

// amount accepts a JSON number or a formatted price string such as "৳1,000.00".
type amount pricing.Money

func (a *amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amount(pricing.ParseAmount(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = amount(pricing.ParseAmount(n.String()))
	return nil
}

// money returns nil when the field was absent or null.
func (a *amount) money() *pricing.Money {
	if a == nil {
		return nil
	}
	m := pricing.Money(*a)
	return &m
}

// text accepts a JSON string or number and keeps its textual form.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	*t = text(data)
	return nil
}

// colorList accepts either a JSON array or a JSON-encoded array string.
type colorList []string

func (c *colorList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			*c = nil
			return nil
		}
		data = []byte(inner)
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*c = list
	return nil
}

// envelope is the common response wrapper. Data may be an object or a
// single-element array.
type envelope struct {
	Result  *bool           `json:"result"`
	Success *bool           `json:"success"`
	Message text            `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) ok() bool {
	if e.Result != nil {
		return *e.Result
	}
	if e.Success != nil {
		return *e.Success
	}
	return true
}

func (e envelope) first(dst any) (bool, error) {
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return false, nil
	}
	if data[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return false, err
		}
		if len(list) == 0 {
			return false, nil
		}
		data = list[0]
	}
	return true, json.Unmarshal(data, dst)
}

type wireChoice struct {
	Name    text     `json:"name"`
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

type wireVariant struct {
	Variant string `json:"variant"`
	SKU     string `json:"sku"`
	Price   amount `json:"price"`
	Qty     amount `json:"qty"`
	Image   string `json:"image"`
}

type wireProduct struct {
	ID             int64         `json:"id"`
	Slug           string        `json:"slug"`
	Name           string        `json:"name"`
	ThumbnailImage string        `json:"thumbnail_image"`
	ThumbnailImg   string        `json:"thumbnail_img"`
	Thumbnail      string        `json:"thumbnail"`
	MainPrice      amount        `json:"main_price"`
	StrokedPrice   amount        `json:"stroked_price"`
	Discount       text          `json:"discount"`
	ChoiceOptions  []wireChoice  `json:"choice_options"`
	Colors         colorList     `json:"colors"`
	Variants       []wireVariant `json:"variants"`
	Stocks         []wireVariant `json:"stocks"`
	CurrentStock   amount        `json:"current_stock"`
}

func (w wireProduct) normalize() variant.Product {
	p := variant.Product{
		ID:             w.ID,
		Slug:           w.Slug,
		Name:           w.Name,
		Thumbnail:      firstNonEmpty(w.ThumbnailImage, w.ThumbnailImg, w.Thumbnail),
		ReferencePrice: pricing.Money(w.StrokedPrice),
		SalePrice:      pricing.Money(w.MainPrice),
		Discount:       string(w.Discount),
		Colors:         []string(w.Colors),
		Stock:          int(w.CurrentStock),
	}
	if p.ReferencePrice <= 0 {
		p.ReferencePrice = p.SalePrice
	}
	for _, c := range w.ChoiceOptions {
		p.ChoiceOptions = append(p.ChoiceOptions, variant.Axis{Name: string(c.Name), Title: c.Title, Options: c.Options})
	}
	source := w.Variants
	if len(source) == 0 {
		source = w.Stocks
	}
	for _, v := range source {
		p.Variants = append(p.Variants, variant.Variant{
			Variant: strings.TrimSpace(v.Variant),
			SKU:     strings.TrimSpace(v.SKU),
			Price:   pricing.Money(v.Price),
			Qty:     int(v.Qty),
			Image:   v.Image,
		})
	}
	p.Variants = variant.Filter(p.Variants)
	return p
}

type wireCoupon struct {
	Code         string `json:"code"`
	DiscountType string `json:"discount_type"`
	Discount     text   `json:"discount"`
	MinBuy       amount `json:"min_buy"`
	MaxDiscount  amount `json:"max_discount"`
	EndDate      text   `json:"end_date"`
}

type wireCouponResponse struct {
	Result  bool        `json:"result"`
	Message text        `json:"message"`
	Coupon  *wireCoupon `json:"coupon_details"`
}

func (w wireCoupon) normalize(code string) (voucher.Coupon, bool) {
	value, err := decimal.NewFromString(strings.TrimSpace(string(w.Discount)))
	if err != nil {
		return voucher.Coupon{}, false
	}
	c := voucher.Coupon{
		Code:        firstNonEmpty(strings.ToUpper(strings.TrimSpace(w.Code)), code),
		Kind:        voucher.ParseKind(w.DiscountType),
		Value:       value,
		MinOrder:    pricing.Money(w.MinBuy),
		MaxDiscount: pricing.Money(w.MaxDiscount),
	}
	if t, ok := parseTime(string(w.EndDate)); ok {
		c.ExpiresAt = &t
	}
	return c, true
}

type wireShippingConfig struct {
	InsideCharge          amount `json:"inside_charge"`
	OutsideCharge         amount `json:"outside_charge"`
	FreeShippingMinAmount amount `json:"free_shipping_min_amount"`
	CurrencySymbol        string `json:"currency_symbol"`
}

func (w wireShippingConfig) normalize() shipping.Config {
	return shipping.Config{
		InsideCharge:          pricing.Money(w.InsideCharge),
		OutsideCharge:         pricing.Money(w.OutsideCharge),
		FreeShippingMinAmount: pricing.Money(w.FreeShippingMinAmount),
		CurrencySymbol:        w.CurrencySymbol,
	}
}

type wireOrderLine struct {
	ProductID int64  `json:"product_id"`
	Variant   string `json:"variant"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

type wireOrderRequest struct {
	Name           string          `json:"name"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	District       string          `json:"district"`
	Note           string          `json:"note,omitempty"`
	PaymentType    string          `json:"payment_type"`
	ShippingType   string          `json:"shipping_type"`
	Items          []wireOrderLine `json:"items"`
	Subtotal       int64           `json:"subtotal"`
	Discount       int64           `json:"discount"`
	ShippingCost   int64           `json:"shipping_cost"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	CouponDiscount int64           `json:"coupon_discount"`
	GrandTotal     int64           `json:"grand_total"`
	Checksum       string          `json:"checksum"`
	IdempotencyKey string          `json:"idempotency_key"`
}

func orderRequest(sum order.Summary, idempotencyKey string) wireOrderRequest {
	req := wireOrderRequest{
		Name:           sum.Customer.Name,
		Email:          sum.Customer.Email,
		Phone:          sum.Customer.Phone,
		Address:        sum.Customer.Address,
		District:       sum.Customer.District,
		Note:           sum.Customer.Note,
		PaymentType:    sum.PaymentMethod,
		ShippingType:   string(sum.ShippingMethod),
		Subtotal:       sum.Totals.Subtotal,
		Discount:       sum.Totals.Discount,
		ShippingCost:   sum.Totals.DeliveryCharge,
		CouponCode:     sum.Totals.CouponCode,
		CouponDiscount: sum.Totals.CouponDiscount,
		GrandTotal:     sum.Totals.GrandTotal,
		Checksum:       sum.Checksum,
		IdempotencyKey: idempotencyKey,
	}
	for _, l := range sum.Items {
		req.Items = append(req.Items, wireOrderLine{ProductID: l.ProductID, Variant: l.Variant, Quantity: l.Qty, Price: l.UnitPrice})
	}
	return req
}

type wireOrderResponse struct {
	Result        bool    `json:"result"`
	Message       text    `json:"message"`
	OrderID       text    `json:"order_id"`
	OrderCode     text    `json:"order_code"`
	PaymentURL    string  `json:"payment_url"`
	PaidAmount    *amount `json:"paid_amount"`
	DueAmount     *amount `json:"due_amount"`
	PaymentStatus text    `json:"payment_status"`
}

func (r wireOrderResponse) placement() order.Placement {
	return order.Placement{
		OrderID:       strings.TrimSpace(string(r.OrderID)),
		Code:          string(r.OrderCode),
		PaymentURL:    r.PaymentURL,
		Message:       string(r.Message),
		Paid:          r.PaidAmount.money(),
		Due:           r.DueAmount.money(),
		PaymentStatus: strings.ToLower(strings.TrimSpace(string(r.PaymentStatus))),
	}
}

type wireTrackingEvent struct {
	Status string `json:"status"`
	Note   string `json:"note"`
	Date   text   `json:"date"`
}

type wireTracking struct {
	Code           text                `json:"code"`
	DeliveryStatus string              `json:"delivery_status"`
	PaymentStatus  string              `json:"payment_status"`
	Date           text                `json:"date"`
	GrandTotal     amount              `json:"grand_total"`
	History        []wireTrackingEvent `json:"history"`
}

func (w wireTracking) normalize() order.Tracking {
	t := order.Tracking{
		Code:          string(w.Code),
		Status:        order.NormalizeStatus(w.DeliveryStatus),
		RawStatus:     w.DeliveryStatus,
		PaymentStatus: w.PaymentStatus,
		PlacedAt:      string(w.Date),
		GrandTotal:    pricing.Money(w.GrandTotal),
		Events:        make([]order.Event, 0, len(w.History)),
	}
	for _, h := range w.History {
		ev := order.Event{Status: order.NormalizeStatus(h.Status), Note: h.Note}
		if at, ok := parseTime(string(h.Date)); ok {
			ev.At = at
		}
		t.Events = append(t.Events, ev)
	}
	return t
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "02-01-2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
