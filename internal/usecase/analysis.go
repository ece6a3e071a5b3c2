package usecase

import (
	"fmt"
	"strings"

	"NewsVol/internal/domain/models"
	domsvc "NewsVol/internal/domain/service"
	"NewsVol/internal/services/features"
)

const (
	DefaultNewsLimit = 5
	DefaultHorizon   = 5
)

// AnalyzeOptions controls a single analysis. AllowPartial lets a caller keep
// the sentiment view when the forecast fails; the failure is still returned.
type AnalyzeOptions struct {
	NewsLimit    int
	Horizon      int
	AllowPartial bool
}

// AnalysisOrchestrator combines article sentiment and the variance forecast
// for one ticker. It performs no I/O and keeps no state between calls.
type AnalysisOrchestrator struct {
	news domsvc.NewsAggregator
	vol  domsvc.VolatilityForecaster
}

func NewAnalysisOrchestrator(news domsvc.NewsAggregator, vol domsvc.VolatilityForecaster) *AnalysisOrchestrator {
	return &AnalysisOrchestrator{news: news, vol: vol}
}

// Analyze scores the first NewsLimit articles and forecasts Horizon variances
// from the price history. A forecast failure is returned as a typed error;
// with AllowPartial the result is also returned, wrapped in
// *models.PartialResultError.
func (o *AnalysisOrchestrator) Analyze(ticker string, articles []models.Article, prices []models.PricePoint, opts AnalyzeOptions) (*models.AnalysisResult, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return nil, &models.InvalidInputError{Field: "ticker", Reason: "required"}
	}
	if opts.NewsLimit <= 0 {
		opts.NewsLimit = DefaultNewsLimit
	}
	if opts.Horizon == 0 {
		opts.Horizon = DefaultHorizon
	}

	res := &models.AnalysisResult{
		Ticker:   ticker,
		Articles: o.news.Aggregate(articles, opts.NewsLimit),
	}

	fc, err := o.forecast(prices, opts.Horizon)
	if err != nil {
		if !opts.AllowPartial {
			return nil, fmt.Errorf("forecast %s: %w", ticker, err)
		}
		res.ForecastError = err.Error()
		return res, &models.PartialResultError{Result: res, Err: err}
	}
	res.Forecast = &fc
	return res, nil
}

func (o *AnalysisOrchestrator) forecast(prices []models.PricePoint, horizon int) (models.VolatilityForecast, error) {
	if usable := len(features.UsablePrices(prices)); usable < 2 {
		return models.VolatilityForecast{}, &models.InsufficientDataError{What: "usable prices", Need: 2, Got: usable}
	}
	returns := features.BuildReturns(prices)
	return o.vol.Forecast(returns.Values(), horizon)
}
