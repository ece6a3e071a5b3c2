package news

import (
	"fmt"
	"testing"

	"NewsVol/internal/domain/models"
)

// recordingScorer scores by text length and remembers what it saw.
type recordingScorer struct {
	seen []string
}

func (r *recordingScorer) Score(text string) float64 {
	r.seen = append(r.seen, text)
	return float64(len(text)) / 1000
}

func TestAggregateKeepsArrivalOrder(t *testing.T) {
	articles := make([]models.Article, 10)
	for i := range articles {
		articles[i] = models.Article{
			Title:       fmt.Sprintf("headline %d", i),
			Description: models.StringPtr(fmt.Sprintf("desc %d", i)),
			URL:         fmt.Sprintf("https://example.com/%d", i),
		}
	}
	sc := &recordingScorer{}
	got := NewAggregator(sc).Aggregate(articles, 5)
	if len(got) != 5 {
		t.Fatalf("expected 5 scored articles, got %d", len(got))
	}
	for i, s := range got {
		if s.Article.URL != articles[i].URL {
			t.Fatalf("position %d: got %s want %s", i, s.Article.URL, articles[i].URL)
		}
		want := fmt.Sprintf("headline %d desc %d", i, i)
		if sc.seen[i] != want {
			t.Fatalf("scored text %q, want %q", sc.seen[i], want)
		}
		if s.Score != float64(len(want))/1000 {
			t.Fatalf("score %v not taken from scorer", s.Score)
		}
	}
}

func TestAggregateNilDescription(t *testing.T) {
	sc := &recordingScorer{}
	NewAggregator(sc).Aggregate([]models.Article{{Title: "Stocks rally"}}, 5)
	if len(sc.seen) != 1 || sc.seen[0] != "Stocks rally " {
		t.Fatalf("expected title plus separator, got %q", sc.seen)
	}
}

func TestAggregateEmptyAndInvalid(t *testing.T) {
	agg := NewAggregator(&recordingScorer{})
	got := agg.Aggregate(nil, 5)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}

	articles := []models.Article{
		{Title: "  "},
		{Title: "first"},
		{Title: ""},
		{Title: "second"},
	}
	got = agg.Aggregate(articles, 2)
	if len(got) != 2 || got[0].Article.Title != "first" || got[1].Article.Title != "second" {
		t.Fatalf("unexpected aggregation %#v", got)
	}
}

func TestAggregateLimitLargerThanInput(t *testing.T) {
	got := NewAggregator(&recordingScorer{}).Aggregate([]models.Article{{Title: "a b"}, {Title: "c d"}}, 50)
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
}
