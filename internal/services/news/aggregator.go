package news

import (
	"NewsVol/internal/domain/models"
	domsvc "NewsVol/internal/domain/service"
)

const DefaultLimit = 5

// Aggregator scores articles with a SentimentScorer. It keeps the order the
// news collaborator delivered and performs no ranking.
type Aggregator struct {
	scorer domsvc.SentimentScorer
}

var _ domsvc.NewsAggregator = (*Aggregator)(nil)

func NewAggregator(scorer domsvc.SentimentScorer) *Aggregator {
	return &Aggregator{scorer: scorer}
}

// Aggregate drops articles without a title, then scores the first limit
// remaining ones from title + " " + description. A non-positive limit falls
// back to DefaultLimit. Empty input gives an empty, non-nil slice.
func (a *Aggregator) Aggregate(articles []models.Article, limit int) []models.ScoredArticle {
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := make([]models.ScoredArticle, 0, min(limit, len(articles)))
	for _, art := range articles {
		if len(out) == limit {
			break
		}
		if !art.Valid() {
			continue
		}
		out = append(out, models.ScoredArticle{
			Article: art,
			Score:   a.scorer.Score(art.Text()),
		})
	}
	return out
}
