package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	"NewsVol/internal/services/features"
	applogger "NewsVol/pkg/logger"
	"NewsVol/pkg/tracing"
	xutil "NewsVol/pkg/util"
)

const (
	DefaultAnalysisTimeout = 20 * time.Second
	RealizedVolWindow      = 20

	sideEffectTimeout = 5 * time.Second
)

// TickerAnalysisParams describe one end-to-end analysis. Zero values fall
// back to defaults: Query to the ticker, Language to "en", Lookback to 6mo.
type TickerAnalysisParams struct {
	Ticker       string
	Query        string
	Language     string
	Lookback     domrepo.Lookback
	NewsLimit    int
	Horizon      int
	AllowPartial bool
}

// FromRequest converts a queued or streamed request.
func FromRequest(r models.AnalysisRequest) TickerAnalysisParams {
	return TickerAnalysisParams{
		Ticker:       r.Ticker,
		Query:        r.Query,
		Language:     r.Language,
		Lookback:     domrepo.NormalizeLookback(r.Lookback),
		NewsLimit:    r.NewsLimit,
		Horizon:      r.Horizon,
		AllowPartial: r.Partial,
	}
}

// TickerAnalysisUseCase fetches collaborator data, runs the analysis and fans
// the result out to the store, the publisher and live subscribers.
type TickerAnalysisUseCase struct {
	news        domrepo.NewsSource
	prices      domrepo.PriceSource
	analyzer    *AnalysisOrchestrator
	store       domrepo.AnalysisStore
	publisher   domrepo.AnalysisPublisher
	broadcaster domrepo.Broadcaster
	metrics     domrepo.Metrics
	l           *applogger.Logger
	timeout     time.Duration
	now         func() time.Time
}

type TickerAnalysisOption func(*TickerAnalysisUseCase)

func WithStore(s domrepo.AnalysisStore) TickerAnalysisOption {
	return func(u *TickerAnalysisUseCase) { u.store = s }
}

func WithPublisher(p domrepo.AnalysisPublisher) TickerAnalysisOption {
	return func(u *TickerAnalysisUseCase) { u.publisher = p }
}

func WithBroadcaster(b domrepo.Broadcaster) TickerAnalysisOption {
	return func(u *TickerAnalysisUseCase) { u.broadcaster = b }
}

func WithMetrics(m domrepo.Metrics) TickerAnalysisOption {
	return func(u *TickerAnalysisUseCase) { u.metrics = m }
}

func WithLogger(l *applogger.Logger) TickerAnalysisOption {
	return func(u *TickerAnalysisUseCase) { u.l = l }
}

func WithTimeout(d time.Duration) TickerAnalysisOption {
	return func(u *TickerAnalysisUseCase) {
		if d > 0 {
			u.timeout = d
		}
	}
}

func NewTickerAnalysisUseCase(news domrepo.NewsSource, prices domrepo.PriceSource, analyzer *AnalysisOrchestrator, opts ...TickerAnalysisOption) *TickerAnalysisUseCase {
	u := &TickerAnalysisUseCase{
		news:     news,
		prices:   prices,
		analyzer: analyzer,
		metrics:  noopMetrics{},
		l:        applogger.Nop(),
		timeout:  DefaultAnalysisTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Run performs one analysis. A news failure degrades to no articles and is
// reported in Errors["news"]; a price failure is returned. With AllowPartial
// a forecast failure still yields a report, with Errors["forecast"] set.
func (u *TickerAnalysisUseCase) Run(ctx context.Context, p TickerAnalysisParams) (report *models.AnalysisReport, err error) {
	start := u.now()
	p = u.withDefaults(p)
	if p.Ticker == "" {
		return nil, &models.InvalidInputError{Field: "ticker", Reason: "required"}
	}

	ctx, span := tracing.StartSpan(ctx, "analysis.run", tracing.Ticker(p.Ticker))
	defer func() { tracing.End(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	in := u.fetch(ctx, p)
	articles, prices := in.articles, in.prices
	if priceErr := in.priceErr; priceErr != nil {
		u.metrics.RecordAnalysis("error")
		u.metrics.RecordError("price_fetch")
		u.l.Error("price fetch failed", applogger.Ticker(p.Ticker), applogger.Error(priceErr))
		if errors.Is(priceErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch prices %s: %w", p.Ticker, priceErr)
		}
		return nil, &models.UpstreamError{Source: u.prices.Name(), Err: priceErr}
	}

	report = &models.AnalysisReport{Errors: map[string]string{}, Prices: prices}
	if newsErr := in.newsErr; newsErr != nil {
		u.metrics.RecordError("news_fetch")
		u.l.Warn("news fetch failed, continuing without articles", applogger.Ticker(p.Ticker), applogger.Error(newsErr))
		report.Errors["news"] = newsErr.Error()
		articles = []models.Article{}
	}

	res, err := u.analyze(ctx, p, articles, prices)
	var partial *models.PartialResultError
	switch {
	case errors.As(err, &partial):
		res = partial.Result
		report.Errors["forecast"] = partial.Err.Error()
		u.metrics.RecordFitError(models.ErrorKind(partial.Err))
		u.metrics.RecordAnalysis("partial")
	case err != nil:
		u.metrics.RecordAnalysis("error")
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			u.metrics.RecordFitError(models.ErrorKind(err))
		}
		u.l.Warn("analysis failed", applogger.Ticker(p.Ticker), applogger.Error(err))
		return nil, err
	default:
		u.metrics.RecordAnalysis("ok")
	}

	for _, a := range res.Articles {
		u.metrics.RecordSentiment(a.Score)
	}
	if res.Forecast != nil && len(res.Forecast.Variances) > 0 {
		u.metrics.RecordForecast(p.Ticker, res.Forecast.Variances[0])
	}

	report.Result = res
	report.RealizedVol = features.RealizedVolatility(features.BuildReturns(prices).Values(), RealizedVolWindow)
	report.Timestamp = u.now().UTC()
	report.Duration = u.now().Sub(start)
	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	u.metrics.RecordLatency("analysis", report.Duration.Seconds())

	u.fanOut(ctx, res, report.Timestamp)

	u.l.Info("analysis completed",
		applogger.Ticker(p.Ticker),
		applogger.Int("articles", len(res.Articles)),
		applogger.Float64("mean_sentiment", res.MeanSentiment()),
		applogger.Bool("partial", res.Forecast == nil),
		applogger.Duration("duration_ms", report.Duration),
	)
	return report, nil
}

func (u *TickerAnalysisUseCase) withDefaults(p TickerAnalysisParams) TickerAnalysisParams {
	p.Ticker = xutil.NormalizeTicker(p.Ticker)
	if strings.TrimSpace(p.Query) == "" {
		p.Query = p.Ticker
	}
	if p.Language == "" {
		p.Language = "en"
	}
	if !domrepo.IsValidLookback(p.Lookback) {
		p.Lookback = domrepo.DefaultLookback()
	}
	return p
}

type fetched struct {
	articles []models.Article
	newsErr  error
	prices   []models.PricePoint
	priceErr error
}

func (u *TickerAnalysisUseCase) fetch(ctx context.Context, p TickerAnalysisParams) fetched {
	var (
		wg  sync.WaitGroup
		out fetched
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ctx, span := tracing.StartSpan(ctx, "news.fetch", tracing.Ticker(p.Ticker))
		out.articles, out.newsErr = u.news.FetchArticles(ctx, domrepo.NewsQuery{Query: p.Query, Language: p.Language})
		tracing.End(span, out.newsErr)
	}()
	go func() {
		defer wg.Done()
		ctx, span := tracing.StartSpan(ctx, "prices.fetch", tracing.Ticker(p.Ticker))
		out.prices, out.priceErr = u.prices.FetchDailyCloses(ctx, p.Ticker, p.Lookback)
		tracing.End(span, out.priceErr)
	}()
	wg.Wait()
	return out
}

// analyze runs the CPU-bound fit off the caller's goroutine so the deadline
// still applies. An abandoned fit finishes in the background and is dropped.
func (u *TickerAnalysisUseCase) analyze(ctx context.Context, p TickerAnalysisParams, articles []models.Article, prices []models.PricePoint) (*models.AnalysisResult, error) {
	_, span := tracing.StartSpan(ctx, "analysis.fit", tracing.Ticker(p.Ticker))
	type outcome struct {
		res *models.AnalysisResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := u.analyzer.Analyze(p.Ticker, articles, prices, AnalyzeOptions{
			NewsLimit:    p.NewsLimit,
			Horizon:      p.Horizon,
			AllowPartial: p.AllowPartial,
		})
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		tracing.End(span, o.err)
		return o.res, o.err
	case <-ctx.Done():
		err := fmt.Errorf("analyze %s: %w", p.Ticker, ctx.Err())
		tracing.End(span, err)
		return nil, err
	}
}

// fanOut is best effort and survives cancellation of the request context.
func (u *TickerAnalysisUseCase) fanOut(ctx context.Context, res *models.AnalysisResult, ts time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if u.store != nil {
		if err := u.store.Save(ctx, res, ts.UnixMilli()); err != nil {
			u.metrics.RecordError("store")
			u.l.Error("store analysis failed", applogger.Ticker(res.Ticker), applogger.Error(err))
		}
	}
	ev := models.NewAnalysisEvent(res, ts)
	if u.publisher != nil {
		ctx, span := tracing.StartSpan(ctx, "analysis.publish", tracing.Ticker(res.Ticker))
		err := u.publisher.Publish(ctx, ev)
		tracing.End(span, err)
		if err != nil {
			u.metrics.RecordError("publish")
			u.l.Error("publish analysis failed", applogger.Ticker(res.Ticker), applogger.Error(err))
		}
	}
	if u.broadcaster != nil {
		u.broadcaster.Broadcast(ev)
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordAnalysis(string) {}
func (noopMetrics) RecordFitError(string) {}
func (noopMetrics) RecordSentiment(float64) {}
func (noopMetrics) RecordForecast(string, float64) {}
func (noopMetrics) RecordError(string) {}
func (noopMetrics) RecordLatency(string, float64) {}
