package usecase

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"NewsVol/internal/domain/models"
	"NewsVol/internal/services/analytics"
	"NewsVol/internal/services/news"
	"NewsVol/internal/services/sentiment"
)

type fakeForecaster struct {
	calls   int
	returns []float64
	err     error
}

func (f *fakeForecaster) Forecast(returns []float64, horizon int) (models.VolatilityForecast, error) {
	f.calls++
	f.returns = returns
	if f.err != nil {
		return models.VolatilityForecast{}, f.err
	}
	v := make([]float64, horizon)
	for i := range v {
		v[i] = 1
	}
	return models.VolatilityForecast{Horizon: horizon, Variances: v}, nil
}

func testArticles() []models.Article {
	return []models.Article{
		{Title: "Apple beats estimates", Description: models.StringPtr("Strong iPhone sales"), URL: "https://example.com/1"},
		{Title: "Apple faces lawsuit", URL: "https://example.com/2"},
	}
}

// gbmPrices builds a positive random-walk price history.
func gbmPrices(n int, seed int64) []models.PricePoint {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, n)
	price := 100.0
	for i := range out {
		price *= math.Exp(0.015 * rng.NormFloat64())
		out[i] = models.PricePoint{Date: start.AddDate(0, 0, i), Close: price}
	}
	return out
}

// garchPrices compounds returns drawn from a GARCH(1,1) into closes.
func garchPrices(n int, seed int64) []models.PricePoint {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	const omega, alpha, beta = 0.05, 0.1, 0.85
	s2 := omega / (1 - alpha - beta)
	e := 0.0
	price := 100.0
	out := make([]models.PricePoint, 0, n)
	for i := 0; i < n+200; i++ {
		s2 = omega + alpha*e*e + beta*s2
		e = math.Sqrt(s2) * rng.NormFloat64()
		price *= 1 + e/100
		if i >= 200 {
			out = append(out, models.PricePoint{Date: start.AddDate(0, 0, len(out)), Close: price})
		}
	}
	return out
}

func newRealOrchestrator(t *testing.T) *AnalysisOrchestrator {
	t.Helper()
	if err := sentiment.Init(); err != nil {
		t.Fatalf("sentiment init: %v", err)
	}
	return NewAnalysisOrchestrator(news.NewAggregator(sentiment.Default()), analytics.NewGarchForecaster())
}

func TestAnalyzeCombinesSignals(t *testing.T) {
	fv := &fakeForecaster{}
	o := NewAnalysisOrchestrator(news.NewAggregator(sentiment.Default()), fv)
	prices := gbmPrices(40, 3)
	res, err := o.Analyze("AAPL", testArticles(), prices, AnalyzeOptions{Horizon: 3})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Ticker != "AAPL" || len(res.Articles) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Forecast == nil || len(res.Forecast.Variances) != 3 {
		t.Fatalf("expected forecast with 3 variances, got %+v", res.Forecast)
	}
	if len(fv.returns) != len(prices)-1 {
		t.Fatalf("forecaster saw %d returns, want %d", len(fv.returns), len(prices)-1)
	}
}

func TestAnalyzeNoNewsIsNotAnError(t *testing.T) {
	o := NewAnalysisOrchestrator(news.NewAggregator(sentiment.Default()), &fakeForecaster{})
	res, err := o.Analyze("AAPL", nil, gbmPrices(40, 4), AnalyzeOptions{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(res.Articles) != 0 || res.MeanSentiment() != 0 {
		t.Fatalf("expected empty sentiment view, got %+v", res.Articles)
	}
}

func TestAnalyzeSurfacesForecastFailure(t *testing.T) {
	fitErr := &models.ModelFitError{Reason: "optimizer did not converge"}
	o := NewAnalysisOrchestrator(news.NewAggregator(sentiment.Default()), &fakeForecaster{err: fitErr})

	res, err := o.Analyze("AAPL", testArticles(), gbmPrices(40, 5), AnalyzeOptions{})
	if res != nil {
		t.Fatalf("expected no result without partial opt-in")
	}
	if !errors.Is(err, models.ErrModelFit) {
		t.Fatalf("expected model fit error, got %v", err)
	}

	res, err = o.Analyze("AAPL", testArticles(), gbmPrices(40, 5), AnalyzeOptions{AllowPartial: true})
	var pe *models.PartialResultError
	if !errors.As(err, &pe) {
		t.Fatalf("expected partial result error, got %v", err)
	}
	if !errors.Is(err, models.ErrModelFit) {
		t.Fatalf("partial error must keep the cause, got %v", err)
	}
	if res == nil || res.Forecast != nil || res.ForecastError == "" || len(res.Articles) != 2 {
		t.Fatalf("unexpected partial result %+v", res)
	}
	if pe.Result != res {
		t.Fatalf("partial error should carry the returned result")
	}
}

func TestAnalyzeNoUsablePrices(t *testing.T) {
	fv := &fakeForecaster{}
	o := NewAnalysisOrchestrator(news.NewAggregator(sentiment.Default()), fv)
	prices := []models.PricePoint{
		{Date: time.Now(), Close: math.NaN()},
		{Date: time.Now(), Close: 0},
	}
	_, err := o.Analyze("AAPL", testArticles(), prices, AnalyzeOptions{})
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
	if fv.calls != 0 {
		t.Fatalf("forecaster should not run without usable prices")
	}
}

func TestAnalyzeRequiresTicker(t *testing.T) {
	o := NewAnalysisOrchestrator(news.NewAggregator(sentiment.Default()), &fakeForecaster{})
	if _, err := o.Analyze("  ", nil, gbmPrices(40, 1), AnalyzeOptions{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	o := newRealOrchestrator(t)
	prices := garchPrices(1500, 11)
	a, errA := o.Analyze("MSFT", testArticles(), prices, AnalyzeOptions{})
	b, errB := o.Analyze("MSFT", testArticles(), prices, AnalyzeOptions{})
	if errA != nil || errB != nil {
		t.Fatalf("analyze errors: %v %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("repeated analyses differ:\n%+v\n%+v", a, b)
	}
	if a.Forecast == nil || len(a.Forecast.Variances) != DefaultHorizon {
		t.Fatalf("expected default horizon forecast, got %+v", a.Forecast)
	}
}
