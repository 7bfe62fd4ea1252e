package shipping

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

const configCacheKey = "config"

// Fetcher loads the live shipping configuration.
type Fetcher interface {
	ShippingConfig(ctx context.Context) (Config, error)
}

// Source serves the shipping configuration from cache, the Commerce API, or
// the configured fallback, in that order. It never fails.
type Source struct {
	Fetcher  Fetcher
	Cache    *cache.JSON
	Fallback Config
	Logger   zerolog.Logger
}

// Config returns the shipping configuration to price a checkout with.
func (s *Source) Config(ctx context.Context) Config {
	var cfg Config
	if ok, err := s.Cache.Get(ctx, configCacheKey, &cfg); err == nil && ok {
		countLookup("cache")
		return cfg
	} else if err != nil {
		s.Logger.Warn().Err(err).Msg("shipping config cache read failed")
	}
	if s.Fetcher == nil {
		countLookup("fallback")
		return s.Fallback
	}
	cfg, err := s.Fetcher.ShippingConfig(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("shipping config unavailable, using fallback")
		countLookup("fallback")
		return s.Fallback
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = s.Fallback.CurrencySymbol
	}
	if err := s.Cache.Set(ctx, configCacheKey, cfg); err != nil {
		s.Logger.Warn().Err(err).Msg("shipping config cache write failed")
	}
	countLookup("remote")
	return cfg
}

func countLookup(source string) {
	if obs.ShippingConfigLookups != nil {
		obs.ShippingConfigLookups.WithLabelValues(source).Inc()
	}
}
