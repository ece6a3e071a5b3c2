package models

import (
	"math"
	"time"
)

// GarchParams are fitted GARCH(1,1) parameters with a constant mean.
type GarchParams struct {
	Mu    float64 `json:"mu"`
	Omega float64 `json:"omega"`
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// Persistence is alpha + beta.
func (p GarchParams) Persistence() float64 { return p.Alpha + p.Beta }

// LongRunVariance is omega / (1 - alpha - beta), or +Inf for a non-stationary fit.
func (p GarchParams) LongRunVariance() float64 {
	if p.Persistence() >= 1 {
		return math.Inf(1)
	}
	return p.Omega / (1 - p.Persistence())
}

// VolatilityForecast is the variance path for the steps following the last
// observed return, most distant step last. Units are squared percent.
type VolatilityForecast struct {
	Horizon       int         `json:"horizon"`
	Variances     []float64   `json:"variances"`
	Params        GarchParams `json:"params"`
	LogLikelihood float64     `json:"log_likelihood"`
	Observations  int         `json:"observations"`
	Iterations    int         `json:"iterations"`
	Model         string      `json:"model"`
}

// Volatilities returns the square roots of the forecast variances.
func (f VolatilityForecast) Volatilities() []float64 {
	out := make([]float64, len(f.Variances))
	for i, v := range f.Variances {
		out[i] = math.Sqrt(v)
	}
	return out
}

// LongRunVariance of the fitted model.
func (f VolatilityForecast) LongRunVariance() float64 { return f.Params.LongRunVariance() }

// AnalysisResult combines the per-article sentiment view and the variance
// forecast for one ticker. Forecast is nil only for an explicitly requested
// partial result, in which case ForecastError says why.
type AnalysisResult struct {
	Ticker        string              `json:"ticker"`
	Articles      []ScoredArticle     `json:"articles"`
	Forecast      *VolatilityForecast `json:"forecast,omitempty"`
	ForecastError string              `json:"forecast_error,omitempty"`
}

// MeanSentiment averages the article scores; zero when there are no articles.
func (r AnalysisResult) MeanSentiment() float64 {
	if len(r.Articles) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range r.Articles {
		sum += a.Score
	}
	return sum / float64(len(r.Articles))
}

// AnalysisReport is what the service shell returns after fetching collaborator
// data and running the analysis.
type AnalysisReport struct {
	Result    *AnalysisResult   `json:"result"`
	Prices    []PricePoint      `json:"prices,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Duration  time.Duration     `json:"duration_ns"`

	// RealizedVol is the sample volatility of the last returns window, in
	// percent, for comparison with the model forecast.
	RealizedVol float64 `json:"realized_volatility"`
}

// AnalysisEvent is published on the results topic and the WebSocket stream.
type AnalysisEvent struct {
	Ticker        string          `json:"ticker"`
	Timestamp     time.Time       `json:"timestamp"`
	MeanSentiment float64         `json:"mean_sentiment"`
	Articles      []ScoredArticle `json:"articles"`
	Variances     []float64       `json:"variances,omitempty"`
	Params        *GarchParams    `json:"params,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// NewAnalysisEvent flattens a result into an event.
func NewAnalysisEvent(r *AnalysisResult, ts time.Time) AnalysisEvent {
	ev := AnalysisEvent{
		Ticker:        r.Ticker,
		Timestamp:     ts,
		MeanSentiment: r.MeanSentiment(),
		Articles:      r.Articles,
		Error:         r.ForecastError,
	}
	if r.Forecast != nil {
		ev.Variances = r.Forecast.Variances
		p := r.Forecast.Params
		ev.Params = &p
	}
	return ev
}

// StoredAnalysis is a row read back from the analysis history.
type StoredAnalysis struct {
	Ticker        string      `json:"ticker"`
	Timestamp     time.Time   `json:"timestamp"`
	MeanSentiment float64     `json:"mean_sentiment"`
	ArticleCount  int         `json:"article_count"`
	Horizon       int         `json:"horizon"`
	Variances     []float64   `json:"variances"`
	Params        GarchParams `json:"params"`
	LogLikelihood float64     `json:"log_likelihood"`
	Error         string      `json:"error,omitempty"`
}
