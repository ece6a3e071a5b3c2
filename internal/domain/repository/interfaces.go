package repository

import (
	"context"

	"NewsVol/internal/domain/models"
)

// NewsQuery parameterises a news search.
type NewsQuery struct {
	Query    string
	Language string
}

// NewsSource fetches articles in the provider's order.
type NewsSource interface {
	Name() string
	FetchArticles(ctx context.Context, q NewsQuery) ([]models.Article, error)
}

// PriceSource fetches daily closes, oldest first.
type PriceSource interface {
	Name() string
	FetchDailyCloses(ctx context.Context, ticker string, lookback Lookback) ([]models.PricePoint, error)
}

// AnalysisStore keeps a history of completed analyses.
type AnalysisStore interface {
	Save(ctx context.Context, r *models.AnalysisResult, ts int64) error
	History(ctx context.Context, ticker string, limit int) ([]models.StoredAnalysis, error)
	Health(ctx context.Context) error
}

// AnalysisPublisher emits completed analyses to downstream consumers.
type AnalysisPublisher interface {
	Publish(ctx context.Context, ev models.AnalysisEvent) error
	Close() error
}

// Broadcaster pushes events to live subscribers.
type Broadcaster interface {
	Broadcast(ev models.AnalysisEvent)
}

type Metrics interface {
	RecordAnalysis(outcome string)
	RecordFitError(kind string)
	RecordSentiment(score float64)
	RecordForecast(ticker string, variance float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
