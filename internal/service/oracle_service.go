package service

import (
	"duel-escrow/internal/core/ports"
	"duel-escrow/pkg/apperror"

	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OracleServiceImpl serves the SOL/USD exchange rate from a TTL cache backed
// by an upstream fetcher. It fails closed: when the cache is cold and the
// upstream is unreachable, callers get PriceUnavailable rather than a stale
// or zero price.
type OracleServiceImpl struct {
	fetcher ports.PriceFetcher
	cache   ports.PriceCache
	metrics *Metrics
	log     zerolog.Logger
	ttl     time.Duration
}

// NewOracleService creates a new OracleServiceImpl.
func NewOracleService(
	fetcher ports.PriceFetcher,
	cache ports.PriceCache,
	metrics *Metrics,
	log zerolog.Logger,
	ttl time.Duration,
) *OracleServiceImpl {
	return &OracleServiceImpl{
		fetcher: fetcher,
		cache:   cache,
		metrics: metrics,
		log:     log,
		ttl:     ttl,
	}
}

// SolPriceUSD returns the current USD price of one SOL, no older than the
// cache TTL.
func (s *OracleServiceImpl) SolPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	price, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("price cache read failed")
	}
	if ok && price.IsPositive() {
		return price, nil
	}

	price, err = s.fetcher.FetchSolPriceUSD(ctx)
	if err != nil {
		s.metrics.OraclePriceFetches.WithLabelValues("error").Inc()
		return decimal.Zero, apperror.ErrPriceUnavailable(err)
	}
	if !price.IsPositive() {
		s.metrics.OraclePriceFetches.WithLabelValues("invalid").Inc()
		return decimal.Zero, apperror.ErrPriceUnavailable(nil)
	}
	s.metrics.OraclePriceFetches.WithLabelValues("success").Inc()

	if err := s.cache.Set(ctx, price, s.ttl); err != nil {
		s.log.Warn().Err(err).Msg("price cache write failed")
	}

	return price, nil
}
