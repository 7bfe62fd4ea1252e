package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/variant"
)

// ErrNotFound indicates the Commerce API has no such product.
var ErrNotFound = errors.New("product not found")

// Source loads a normalised product from the Commerce API.
type Source interface {
	Product(ctx context.Context, id int64) (variant.Product, error)
}

// Service resolves products and their variant pricing, caching the normalised
// product between requests.
type Service struct {
	source Source
	cache  *cache.JSON
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source Source
	Cache  *cache.JSON
	Logger zerolog.Logger
}

// NewService constructs a catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, errors.New("catalog source is required")
	}
	return &Service{source: cfg.Source, cache: cfg.Cache, logger: cfg.Logger}, nil
}

// Product returns the normalised product with malformed variants removed.
func (s *Service) Product(ctx context.Context, id int64) (variant.Product, error) {
	if id <= 0 {
		return variant.Product{}, &common.AppError{Code: "BAD_REQUEST", Message: "invalid product id", HTTPStatus: http.StatusBadRequest}
	}
	key := "product:" + strconv.FormatInt(id, 10)
	var p variant.Product
	if ok, err := s.cache.Get(ctx, key, &p); err == nil && ok {
		return p, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Int64("product_id", id).Msg("product cache read failed")
	}
	p, err := s.source.Product(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return variant.Product{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return variant.Product{}, fmt.Errorf("load product %d: %w", id, err)
	}
	p.Variants = variant.Filter(p.Variants)
	if err := s.cache.Set(ctx, key, p); err != nil {
		s.logger.Warn().Err(err).Int64("product_id", id).Msg("product cache write failed")
	}
	return p, nil
}

// Detail pairs a product with the quote for the requested selection.
type Detail struct {
	Product   variant.Product   `json:"product"`
	Selection variant.Selection `json:"selection"`
	Quote     variant.Quote     `json:"quote"`
}

// Resolve loads the product and prices the selection, filling unset axes with
// their first option.
func (s *Service) Resolve(ctx context.Context, id int64, sel variant.Selection) (Detail, error) {
	p, err := s.Product(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	sel = p.Normalize(sel)
	return Detail{Product: p, Selection: sel, Quote: p.Resolve(sel)}, nil
}

// SelectionFromQuery reads a selection from query parameters: "color" plus
// one parameter per axis title.
func SelectionFromQuery(q url.Values) variant.Selection {
	sel := variant.Selection{Color: strings.TrimSpace(q.Get("color")), Options: map[string]string{}}
	for key, values := range q {
		if key == "color" || len(values) == 0 {
			continue
		}
		if v := strings.TrimSpace(values[0]); v != "" {
			sel.Options[key] = v
		}
	}
	return sel
}
