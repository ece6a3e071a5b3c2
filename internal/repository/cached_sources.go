package repository

import (
	"context"
	"strings"
	"time"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	"NewsVol/internal/service/metrics"
	"NewsVol/pkg/cache"
)

// CachedNewsSource decorates a NewsSource with a TTL cache keyed by query and
// language. Errors are never cached.
type CachedNewsSource struct {
	next  domrepo.NewsSource
	cache cache.Service
	ttl   time.Duration
}

var _ domrepo.NewsSource = (*CachedNewsSource)(nil)

func NewCachedNewsSource(next domrepo.NewsSource, c cache.Service, ttl time.Duration) *CachedNewsSource {
	return &CachedNewsSource{next: next, cache: c, ttl: ttl}
}

func (s *CachedNewsSource) Name() string { return s.next.Name() }

func (s *CachedNewsSource) FetchArticles(ctx context.Context, q domrepo.NewsQuery) ([]models.Article, error) {
	key := cache.Key("news", s.next.Name(), q.Language, cache.TextKey(q.Query))
	articles, hit, err := cache.Remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]models.Article, error) {
		return s.next.FetchArticles(ctx, q)
	})
	metrics.ObserveCache(s.next.Name(), hit)
	return articles, err
}

// CachedPriceSource decorates a PriceSource with a TTL cache keyed by ticker
// and lookback.
type CachedPriceSource struct {
	next  domrepo.PriceSource
	cache cache.Service
	ttl   time.Duration
}

var _ domrepo.PriceSource = (*CachedPriceSource)(nil)

func NewCachedPriceSource(next domrepo.PriceSource, c cache.Service, ttl time.Duration) *CachedPriceSource {
	return &CachedPriceSource{next: next, cache: c, ttl: ttl}
}

func (s *CachedPriceSource) Name() string { return s.next.Name() }

func (s *CachedPriceSource) FetchDailyCloses(ctx context.Context, ticker string, lookback domrepo.Lookback) ([]models.PricePoint, error) {
	key := cache.Key("prices", s.next.Name(), strings.ToUpper(ticker), string(lookback))
	prices, hit, err := cache.Remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]models.PricePoint, error) {
		return s.next.FetchDailyCloses(ctx, ticker, lookback)
	})
	metrics.ObserveCache(s.next.Name(), hit)
	return prices, err
}
