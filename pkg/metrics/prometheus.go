package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	analysesTotal *prometheus.CounterVec
	fitErrors     *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	sentiment     prometheus.Histogram
	lastVariance  *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		analysesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsvol_analyses_total",
				Help: "Completed analyses by outcome",
			},
			[]string{"outcome"},
		),
		fitErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsvol_forecast_errors_total",
				Help: "Volatility forecast failures by kind",
			},
			[]string{"kind"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsvol_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		sentiment: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "newsvol_article_sentiment",
				Help:    "Compound sentiment of scored articles",
				Buckets: prometheus.LinearBuckets(-1, 0.25, 9),
			},
		),
		lastVariance: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "newsvol_forecast_variance",
				Help: "One-step-ahead forecast variance of the last analysis, in squared percent",
			},
			[]string{"ticker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsvol_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAnalysis counts an analysis with outcome ok, partial or error.
func (r *Recorder) RecordAnalysis(outcome string) {
	r.analysesTotal.WithLabelValues(outcome).Inc()
}

// RecordFitError counts a forecast failure (insufficient_data, model_fit, invalid_input).
func (r *Recorder) RecordFitError(kind string) {
	r.fitErrors.WithLabelValues(kind).Inc()
}

// RecordSentiment observes one article score.
func (r *Recorder) RecordSentiment(score float64) {
	r.sentiment.Observe(score)
}

// RecordForecast sets the latest one-step variance for ticker.
func (r *Recorder) RecordForecast(ticker string, variance float64) {
	r.lastVariance.WithLabelValues(ticker).Set(variance)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
