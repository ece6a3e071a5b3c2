package models

import "time"

// Requests for the analysis HTTP endpoints and the request stream.

type AnalysisQuery struct {
	Ticker    string `param:"ticker" validate:"required,ticker"`
	NewsLimit int    `query:"news_limit" default:"5" validate:"gte=1,lte=100"`
	Horizon   int    `query:"horizon" default:"5" validate:"gte=1,lte=250"`
	Lookback  string `query:"lookback" default:"6mo" validate:"oneof=1mo 3mo 6mo 1y 2y 5y 10y ytd max"`
	Query     string `query:"query" validate:"max=200"`
	Language  string `query:"language" default:"en" validate:"len=2"`
	Partial   bool   `query:"partial"`
}

// AnalysisRequest is the body of async job submissions and the payload of the
// Kafka requests topic.
type AnalysisRequest struct {
	Ticker    string `json:"ticker" validate:"required,ticker"`
	Query     string `json:"query,omitempty" validate:"max=200"`
	Language  string `json:"language,omitempty" default:"en" validate:"len=2"`
	Lookback  string `json:"lookback,omitempty" default:"6mo" validate:"oneof=1mo 3mo 6mo 1y 2y 5y 10y ytd max"`
	NewsLimit int    `json:"news_limit,omitempty" default:"5" validate:"gte=1,lte=100"`
	Horizon   int    `json:"horizon,omitempty" default:"5" validate:"gte=1,lte=250"`
	Partial   bool   `json:"partial,omitempty"`
}

// PriceInput is a caller-supplied close. A null close means missing.
type PriceInput struct {
	Date  string   `json:"date" validate:"required"`
	Close *float64 `json:"close"`
}

// AnalyzeRequest runs the analysis over caller-supplied data only.
type AnalyzeRequest struct {
	Ticker    string       `json:"ticker" validate:"required,ticker"`
	Articles  []Article    `json:"articles"`
	Prices    []PriceInput `json:"prices" validate:"required,min=1,dive"`
	NewsLimit int          `json:"news_limit" default:"5" validate:"gte=1,lte=100"`
	Horizon   int          `json:"horizon" default:"5" validate:"gte=1,lte=250"`
	Partial   bool         `json:"partial"`
}

type SentimentRequest struct {
	Text *string `json:"text"`
}

type VolatilityRequest struct {
	Returns []float64    `json:"returns" validate:"required_without=Prices"`
	Prices  []PriceInput `json:"prices" validate:"required_without=Returns,dive"`
	Horizon int          `json:"horizon" default:"5" validate:"gte=1,lte=250"`
}

type PricesQuery struct {
	Ticker   string `param:"ticker" validate:"required,ticker"`
	Lookback string `query:"lookback" default:"6mo" validate:"oneof=1mo 3mo 6mo 1y 2y 5y 10y ytd max"`
}

type HistoryQuery struct {
	Ticker string `param:"ticker" validate:"required,ticker"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=500"`
}

// ForecastView adds the derived volatility figures to a forecast.
type ForecastView struct {
	VolatilityForecast
	Volatilities    []float64 `json:"volatilities"`
	LongRunVariance float64   `json:"long_run_variance"`
}

func NewForecastView(f VolatilityForecast) *ForecastView {
	return &ForecastView{
		VolatilityForecast: f,
		Volatilities:       f.Volatilities(),
		LongRunVariance:    f.LongRunVariance(),
	}
}

// AnalysisResponse is the API view of an analysis.
type AnalysisResponse struct {
	Ticker             string            `json:"ticker"`
	MeanSentiment      float64           `json:"mean_sentiment"`
	Articles           []ScoredArticle   `json:"articles"`
	Forecast           *ForecastView     `json:"forecast,omitempty"`
	ForecastError      string            `json:"forecast_error,omitempty"`
	RealizedVolatility *float64          `json:"realized_volatility,omitempty"`
	Errors             map[string]string `json:"errors,omitempty"`
	Timestamp          *time.Time        `json:"timestamp,omitempty"`
	DurationMs         int64             `json:"duration_ms,omitempty"`
}

func NewAnalysisResponse(r *AnalysisResult) *AnalysisResponse {
	out := &AnalysisResponse{
		Ticker:        r.Ticker,
		MeanSentiment: r.MeanSentiment(),
		Articles:      r.Articles,
		ForecastError: r.ForecastError,
	}
	if r.Forecast != nil {
		out.Forecast = NewForecastView(*r.Forecast)
	}
	return out
}

// NewReportResponse also carries the service-shell fields of a report.
func NewReportResponse(rep *AnalysisReport) *AnalysisResponse {
	out := NewAnalysisResponse(rep.Result)
	vol := rep.RealizedVol
	ts := rep.Timestamp
	out.RealizedVolatility = &vol
	out.Errors = rep.Errors
	out.Timestamp = &ts
	out.DurationMs = rep.Duration.Milliseconds()
	return out
}

type SentimentResponse struct {
	Score float64 `json:"score"`
}

type JobAccepted struct {
	JobID  string `json:"job_id"`
	Type   string `json:"type"`
	Ticker string `json:"ticker"`
}
