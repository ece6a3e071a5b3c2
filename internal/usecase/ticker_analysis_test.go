package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	"NewsVol/internal/services/news"
	"NewsVol/internal/services/sentiment"
)

type stubNews struct {
	articles []models.Article
	err      error
	gotQuery domrepo.NewsQuery
}

func (s *stubNews) Name() string { return "stub-news" }

func (s *stubNews) FetchArticles(_ context.Context, q domrepo.NewsQuery) ([]models.Article, error) {
	s.gotQuery = q
	return s.articles, s.err
}

type stubPrices struct {
	prices      []models.PricePoint
	err         error
	gotTicker   string
	gotLookback domrepo.Lookback
}

func (s *stubPrices) Name() string { return "stub-prices" }

func (s *stubPrices) FetchDailyCloses(_ context.Context, ticker string, lb domrepo.Lookback) ([]models.PricePoint, error) {
	s.gotTicker, s.gotLookback = ticker, lb
	return s.prices, s.err
}

type memStore struct {
	mu    sync.Mutex
	saved []*models.AnalysisResult
	ts    []int64
	err   error
}

func (s *memStore) Save(_ context.Context, r *models.AnalysisResult, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, r)
	s.ts = append(s.ts, ts)
	return s.err
}

func (s *memStore) History(context.Context, string, int) ([]models.StoredAnalysis, error) {
	return nil, nil
}

func (s *memStore) Health(context.Context) error { return nil }

type capturePublisher struct {
	events []models.AnalysisEvent
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, ev models.AnalysisEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

type captureBroadcaster struct {
	events []models.AnalysisEvent
}

func (b *captureBroadcaster) Broadcast(ev models.AnalysisEvent) { b.events = append(b.events, ev) }

type countingMetrics struct {
	noopMetrics
	outcomes  []string
	fitErrors []string
}

func (m *countingMetrics) RecordAnalysis(outcome string) { m.outcomes = append(m.outcomes, outcome) }

func (m *countingMetrics) RecordFitError(kind string) { m.fitErrors = append(m.fitErrors, kind) }

type blockingForecaster struct {
	release chan struct{}
}

func (f *blockingForecaster) Forecast([]float64, int) (models.VolatilityForecast, error) {
	<-f.release
	return models.VolatilityForecast{}, nil
}

func newTestUseCase(ns *stubNews, ps *stubPrices, fc *fakeForecaster, opts ...TickerAnalysisOption) *TickerAnalysisUseCase {
	o := NewAnalysisOrchestrator(news.NewAggregator(sentiment.Default()), fc)
	return NewTickerAnalysisUseCase(ns, ps, o, opts...)
}

func TestRunFansOutCompletedAnalysis(t *testing.T) {
	ns := &stubNews{articles: testArticles()}
	ps := &stubPrices{prices: gbmPrices(60, 7)}
	store := &memStore{}
	pub := &capturePublisher{}
	bc := &captureBroadcaster{}
	m := &countingMetrics{}

	uc := newTestUseCase(ns, ps, &fakeForecaster{},
		WithStore(store), WithPublisher(pub), WithBroadcaster(bc), WithMetrics(m))

	rep, err := uc.Run(context.Background(), TickerAnalysisParams{Ticker: " aapl ", Horizon: 4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if ps.gotTicker != "AAPL" || ps.gotLookback != domrepo.Lookback6mo {
		t.Fatalf("unexpected price request %s/%s", ps.gotTicker, ps.gotLookback)
	}
	if ns.gotQuery.Query != "AAPL" || ns.gotQuery.Language != "en" {
		t.Fatalf("unexpected news query %+v", ns.gotQuery)
	}
	if rep.Result == nil || rep.Result.Forecast == nil || len(rep.Result.Forecast.Variances) != 4 {
		t.Fatalf("unexpected result %+v", rep.Result)
	}
	if rep.Errors != nil {
		t.Fatalf("expected no errors, got %v", rep.Errors)
	}
	if len(rep.Prices) != 60 || rep.RealizedVol <= 0 || rep.Timestamp.IsZero() {
		t.Fatalf("report not populated: prices=%d vol=%v", len(rep.Prices), rep.RealizedVol)
	}
	if len(store.saved) != 1 || store.ts[0] != rep.Timestamp.UnixMilli() {
		t.Fatalf("expected one stored analysis at the report time")
	}
	if len(pub.events) != 1 || len(bc.events) != 1 || pub.events[0].Ticker != "AAPL" {
		t.Fatalf("expected one published and one broadcast event")
	}
	if len(m.outcomes) != 1 || m.outcomes[0] != "ok" {
		t.Fatalf("unexpected outcomes %v", m.outcomes)
	}
}

func TestRunNewsFailureDegradesToNoArticles(t *testing.T) {
	ns := &stubNews{err: errors.New("newsapi: status 426")}
	ps := &stubPrices{prices: gbmPrices(60, 8)}

	rep, err := newTestUseCase(ns, ps, &fakeForecaster{}).Run(context.Background(), TickerAnalysisParams{Ticker: "AAPL"})
	if err != nil {
		t.Fatalf("news failure must not fail the run: %v", err)
	}
	if len(rep.Result.Articles) != 0 || rep.Result.Articles == nil {
		t.Fatalf("expected empty article list, got %#v", rep.Result.Articles)
	}
	if rep.Errors["news"] == "" {
		t.Fatalf("news failure not reported")
	}
	if rep.Result.MeanSentiment() != 0 {
		t.Fatalf("mean sentiment without articles should be 0")
	}
}

func TestRunPriceFailureIsUpstreamError(t *testing.T) {
	ps := &stubPrices{err: errors.New("connection refused")}
	store := &memStore{}
	_, err := newTestUseCase(&stubNews{}, ps, &fakeForecaster{}, WithStore(store)).
		Run(context.Background(), TickerAnalysisParams{Ticker: "AAPL"})
	if !errors.Is(err, models.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("nothing should be stored on failure")
	}
}

func TestRunForecastFailure(t *testing.T) {
	fitErr := &models.ModelFitError{Reason: "did not converge"}
	ps := &stubPrices{prices: gbmPrices(60, 9)}
	m := &countingMetrics{}
	store := &memStore{}

	uc := newTestUseCase(&stubNews{articles: testArticles()}, ps, &fakeForecaster{err: fitErr}, WithMetrics(m), WithStore(store))
	if _, err := uc.Run(context.Background(), TickerAnalysisParams{Ticker: "AAPL"}); !errors.Is(err, models.ErrModelFit) {
		t.Fatalf("expected model fit error, got %v", err)
	}
	if len(m.fitErrors) != 1 || m.fitErrors[0] != "model_fit" {
		t.Fatalf("unexpected fit error metrics %v", m.fitErrors)
	}

	rep, err := uc.Run(context.Background(), TickerAnalysisParams{Ticker: "AAPL", AllowPartial: true})
	if err != nil {
		t.Fatalf("partial run: %v", err)
	}
	if rep.Result.Forecast != nil || rep.Result.ForecastError == "" || rep.Errors["forecast"] == "" {
		t.Fatalf("expected partial result, got %+v", rep.Result)
	}
	if len(rep.Result.Articles) != 2 {
		t.Fatalf("partial result should keep the sentiment view")
	}
	if len(store.saved) != 1 {
		t.Fatalf("partial result should be stored")
	}
	if m.outcomes[len(m.outcomes)-1] != "partial" {
		t.Fatalf("unexpected outcomes %v", m.outcomes)
	}
}

func TestRunSideEffectFailuresAreNotReturned(t *testing.T) {
	ps := &stubPrices{prices: gbmPrices(60, 10)}
	uc := newTestUseCase(&stubNews{}, ps, &fakeForecaster{},
		WithStore(&memStore{err: errors.New("clickhouse down")}),
		WithPublisher(&capturePublisher{err: errors.New("kafka down")}))
	if _, err := uc.Run(context.Background(), TickerAnalysisParams{Ticker: "AAPL"}); err != nil {
		t.Fatalf("store and publish failures must not fail the run: %v", err)
	}
}

func TestRunHonoursTimeout(t *testing.T) {
	bf := &blockingForecaster{release: make(chan struct{})}
	defer close(bf.release)

	o := NewAnalysisOrchestrator(news.NewAggregator(sentiment.Default()), bf)
	uc := NewTickerAnalysisUseCase(&stubNews{}, &stubPrices{prices: gbmPrices(60, 11)}, o, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := uc.Run(context.Background(), TickerAnalysisParams{Ticker: "AAPL"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("run did not return at the deadline")
	}
}

func TestRunRequiresTicker(t *testing.T) {
	_, err := newTestUseCase(&stubNews{}, &stubPrices{}, &fakeForecaster{}).Run(context.Background(), TickerAnalysisParams{Ticker: "  "})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestFromRequest(t *testing.T) {
	p := FromRequest(models.AnalysisRequest{Ticker: "MSFT", Lookback: "bogus", Horizon: 3, Partial: true})
	if p.Ticker != "MSFT" || p.Lookback != domrepo.Lookback6mo || p.Horizon != 3 || !p.AllowPartial {
		t.Fatalf("unexpected params %+v", p)
	}
}
