package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/resilience"
	"github.com/noah-isme/toko-storefront/internal/shipping"
	"github.com/noah-isme/toko-storefront/internal/variant"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

var (
	// ErrUnavailable indicates a transport failure, a 5xx answer or an open
	// breaker. Callers may retry later.
	ErrUnavailable = errors.New("commerce api unavailable")
	// ErrMalformedResponse indicates a response body that could not be decoded.
	ErrMalformedResponse = errors.New("commerce api returned a malformed response")
)

// Rejection is a business refusal reported by the Commerce API.
type Rejection struct {
	Operation string
	Status    int
	Message   string
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return fmt.Sprintf("commerce %s rejected (status %d)", r.Operation, r.Status)
	}
	return r.Message
}

// Paths lists the Commerce API endpoints.
type Paths struct {
	Product        string
	CouponApply    string
	ShippingConfig string
	OrderStore     string
	OrderTrack     string
}

// DefaultPaths are the v2 endpoints of the Commerce API.
var DefaultPaths = Paths{
	Product:        "/api/v2/products/%d",
	CouponApply:    "/api/v2/coupon-apply",
	ShippingConfig: "/api/v2/shipping-config",
	OrderStore:     "/api/v2/order/store",
	OrderTrack:     "/api/v2/orders/track",
}

// Config configures the Commerce API client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	Token       auth.ServiceToken
	Breaker     *resilience.Breaker
	Transport   http.RoundTripper
	Paths       Paths
	Logger      zerolog.Logger
}

// Client talks to the remote Commerce API and normalises its payloads once,
// at the boundary.
type Client struct {
	base   *url.URL
	http   resilience.HTTPClient
	token  auth.ServiceToken
	paths  Paths
	logger zerolog.Logger
}

// New constructs a Commerce API client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("commerce: invalid base url %q", cfg.BaseURL)
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	paths := cfg.Paths
	if paths == (Paths{}) {
		paths = DefaultPaths
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("commerce").WithLogger(cfg.Logger)
	}
	return &Client{
		base: base,
		http: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(transport)},
			Breaker:     breaker,
			BaseBackoff: 100 * time.Millisecond,
			MaxAttempts: cfg.MaxAttempts,
			Jitter:      0.2,
			Timeout:     cfg.Timeout,
		},
		token:  cfg.Token,
		paths:  paths,
		logger: cfg.Logger.With().Str("component", "commerce").Logger(),
	}, nil
}

// Breaker exposes the circuit breaker guarding the Commerce API.
func (c *Client) Breaker() *resilience.Breaker {
	return c.http.Breaker
}

// Product fetches and normalises a product.
func (c *Client) Product(ctx context.Context, id int64) (variant.Product, error) {
	var env envelope
	status, err := c.call(ctx, "product", http.MethodGet, fmt.Sprintf(c.paths.Product, id), nil, nil, &env)
	if err != nil {
		if status == http.StatusNotFound {
			return variant.Product{}, fmt.Errorf("product %d: %w", id, catalog.ErrNotFound)
		}
		return variant.Product{}, err
	}
	var wp wireProduct
	found, err := env.first(&wp)
	if err != nil {
		return variant.Product{}, fmt.Errorf("decode product: %w", ErrMalformedResponse)
	}
	if !found || !env.ok() {
		return variant.Product{}, fmt.Errorf("product %d: %w", id, catalog.ErrNotFound)
	}
	if wp.ID == 0 {
		wp.ID = id
	}
	return wp.normalize(), nil
}

// ValidateCoupon asks the Commerce API whether code is applicable. A refusal
// is returned as *voucher.Rejection.
func (c *Client) ValidateCoupon(ctx context.Context, code string) (voucher.Coupon, error) {
	var resp wireCouponResponse
	status, err := c.call(ctx, "coupon_apply", http.MethodPost, c.paths.CouponApply, nil, map[string]string{"coupon_code": code}, &resp)
	if err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			return voucher.Coupon{}, &voucher.Rejection{Code: code, Reason: rej.Message}
		}
		if errors.Is(err, ErrMalformedResponse) {
			return voucher.Coupon{}, &voucher.Rejection{Code: code, Reason: "coupon could not be verified"}
		}
		return voucher.Coupon{}, err
	}
	if !resp.Result {
		return voucher.Coupon{}, &voucher.Rejection{Code: code, Reason: firstNonEmpty(string(resp.Message), "Invalid coupon")}
	}
	if resp.Coupon == nil {
		c.logger.Warn().Int("status", status).Str("code", code).Msg("coupon accepted without details")
		return voucher.Coupon{}, &voucher.Rejection{Code: code, Reason: "coupon could not be verified"}
	}
	coupon, ok := resp.Coupon.normalize(code)
	if !ok {
		return voucher.Coupon{}, &voucher.Rejection{Code: code, Reason: "coupon could not be verified"}
	}
	return coupon, nil
}

// ShippingConfig fetches the published delivery charges.
func (c *Client) ShippingConfig(ctx context.Context) (shipping.Config, error) {
	var env envelope
	if _, err := c.call(ctx, "shipping_config", http.MethodGet, c.paths.ShippingConfig, nil, nil, &env); err != nil {
		return shipping.Config{}, err
	}
	var wc wireShippingConfig
	found, err := env.first(&wc)
	if err != nil || !found {
		return shipping.Config{}, fmt.Errorf("decode shipping config: %w", ErrMalformedResponse)
	}
	return wc.normalize(), nil
}

// SubmitOrder places the order described by sum. The idempotency key lets
// retries of the same submission be recognised upstream.
func (c *Client) SubmitOrder(ctx context.Context, sum order.Summary, idempotencyKey string) (order.Placement, error) {
	headers := http.Header{}
	headers.Set("Idempotency-Key", idempotencyKey)
	headers.Set("X-Order-Checksum", sum.Checksum)
	var resp wireOrderResponse
	_, err := c.call(ctx, "order_store", http.MethodPost, c.paths.OrderStore, headers, orderRequest(sum, idempotencyKey), &resp)
	if err != nil {
		return order.Placement{}, err
	}
	if !resp.Result {
		return order.Placement{}, &Rejection{Operation: "order_store", Status: http.StatusOK, Message: firstNonEmpty(string(resp.Message), "order was not accepted")}
	}
	return resp.placement(), nil
}

// TrackOrder looks up an order's delivery status by its public code.
func (c *Client) TrackOrder(ctx context.Context, code string) (order.Tracking, error) {
	path := c.paths.OrderTrack + "?code=" + url.QueryEscape(code)
	var env envelope
	status, err := c.call(ctx, "order_track", http.MethodGet, path, nil, nil, &env)
	if err != nil {
		var rej *Rejection
		if status == http.StatusNotFound || errors.As(err, &rej) {
			return order.Tracking{}, fmt.Errorf("track %s: %w", code, order.ErrNotFound)
		}
		return order.Tracking{}, err
	}
	var wt wireTracking
	found, err := env.first(&wt)
	if err != nil {
		return order.Tracking{}, fmt.Errorf("decode tracking: %w", ErrMalformedResponse)
	}
	if !found || !env.ok() {
		return order.Tracking{}, fmt.Errorf("track %s: %w", code, order.ErrNotFound)
	}
	if wt.Code == "" {
		wt.Code = text(code)
	}
	return wt.normalize(), nil
}

// call performs one logical request. 4xx answers become *Rejection carrying
// the upstream message; transport failures and 5xx become ErrUnavailable.
func (c *Client) call(ctx context.Context, op, method, path string, headers http.Header, body, dst any) (int, error) {
	ctx, span := otel.Tracer("commerce.Client").Start(ctx, "Client."+op)
	defer span.End()
	span.SetAttributes(attribute.String("commerce.operation", op))
	started := time.Now()
	status, err := c.do(ctx, op, method, path, headers, body, dst)
	span.SetAttributes(attribute.Int("http.status_code", status))
	result := "ok"
	if err != nil {
		result = classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		c.logger.Warn().Err(err).Str("operation", op).Int("status", status).Msg("commerce call failed")
	}
	if obs.CommerceRequestLatency != nil {
		obs.CommerceRequestLatency.WithLabelValues(op, result).Observe(float64(time.Since(started).Milliseconds()))
	}
	return status, err
}

func (c *Client) do(ctx context.Context, op, method, path string, headers http.Header, body, dst any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, values := range headers {
		for _, v := range values {
			if v != "" {
				req.Header.Add(k, v)
			}
		}
	}
	if c.token.Enabled() {
		signed, err := c.token.Sign()
		if err != nil {
			return 0, fmt.Errorf("sign service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+signed)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, &Rejection{Operation: op, Status: resp.StatusCode, Message: upstreamMessage(data)}
	}
	if dst != nil {
		if err := json.Unmarshal(data, dst); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return resp.StatusCode, nil
}

func upstreamMessage(data []byte) string {
	var env struct {
		Message text `json:"message"`
	}
	if err := json.Unmarshal(data, &env); err == nil && env.Message != "" {
		return string(env.Message)
	}
	return ""
}

func classify(err error) string {
	var rej *Rejection
	switch {
	case errors.As(err, &rej):
		return "rejected"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unavailable"
	}
}

// Ping reports whether the Commerce API breaker currently admits traffic.
func (c *Client) Ping(context.Context) error {
	if c.http.Breaker.State() == resilience.Open {
		return fmt.Errorf("%w: breaker %q open", ErrUnavailable, c.http.Breaker.Target())
	}
	return nil
}
