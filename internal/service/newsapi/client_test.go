package newsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
)

const everythingBody = `{
  "status": "ok",
  "totalResults": 3,
  "articles": [
    {"source": {"id": null, "name": "Reuters"}, "title": "Apple beats estimates", "description": "Strong quarter", "url": "https://a/1", "publishedAt": "2024-05-02T21:05:00Z"},
    {"source": {"id": null, "name": "Blog"}, "title": "Apple event", "description": null, "url": "https://a/2", "publishedAt": ""},
    {"source": {"id": null, "name": "Wire"}, "title": "", "description": "untitled", "url": "https://a/3", "publishedAt": "2024-05-01T10:00:00Z"}
  ]
}`

func TestFetchArticlesMapsResponse(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/everything" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(everythingBody))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, APIKey: "secret", PageSize: 10, RPS: 100, Burst: 10})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	arts, err := c.FetchArticles(context.Background(), domrepo.NewsQuery{Query: "AAPL", Language: "en"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("api key header not sent")
	}
	for _, want := range []string{"q=AAPL", "language=en", "pageSize=10"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}

	if len(arts) != 3 {
		t.Fatalf("expected all 3 articles in provider order, got %d", len(arts))
	}
	if arts[0].Title != "Apple beats estimates" || arts[0].Description == nil || *arts[0].Description != "Strong quarter" {
		t.Fatalf("unexpected first article %+v", arts[0])
	}
	if arts[0].Source != "Reuters" || arts[0].PublishedAt == nil || arts[0].PublishedAt.Day() != 2 {
		t.Fatalf("unexpected metadata %+v", arts[0])
	}
	if arts[1].Description != nil || arts[1].PublishedAt != nil {
		t.Fatalf("null description and empty date should stay nil: %+v", arts[1])
	}
}

func TestFetchArticlesNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"bad key"}`))
	}))
	defer srv.Close()

	c, _ := New(Config{BaseURL: srv.URL, APIKey: "bad", RPS: 100, Burst: 10})
	_, err := c.FetchArticles(context.Background(), domrepo.NewsQuery{Query: "AAPL"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestFetchArticlesRequiresQuery(t *testing.T) {
	c, _ := New(Config{APIKey: "k"})
	_, err := c.FetchArticles(context.Background(), domrepo.NewsQuery{Query: "  "})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
