package service

import "NewsVol/internal/domain/models"

// SentimentScorer maps text to a compound polarity in [-1, 1].
type SentimentScorer interface {
	Score(text string) float64
}

// NewsAggregator scores the first limit articles in arrival order.
type NewsAggregator interface {
	Aggregate(articles []models.Article, limit int) []models.ScoredArticle
}

// VolatilityForecaster fits a conditional-variance model to percentage
// returns and projects variance horizon steps ahead.
type VolatilityForecaster interface {
	Forecast(returns []float64, horizon int) (models.VolatilityForecast, error)
}
