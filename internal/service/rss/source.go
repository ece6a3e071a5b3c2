package rss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	"NewsVol/internal/service/metrics"
	applogger "NewsVol/pkg/logger"
)

const (
	SourceName = "rss"

	// TickerPlaceholder in a feed URL is replaced by the escaped query.
	TickerPlaceholder = "{ticker}"
)

// Source reads headlines from RSS or Atom feeds. Feeds are fetched
// concurrently; items keep feed order, then item order.
type Source struct {
	feeds   []string
	timeout time.Duration
	parser  *gofeed.Parser
	l       *applogger.Logger
}

var _ domrepo.NewsSource = (*Source)(nil)

func New(feeds []string, timeout time.Duration, l *applogger.Logger) (*Source, error) {
	if len(feeds) == 0 {
		return nil, fmt.Errorf("rss: at least one feed url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if l == nil {
		l = applogger.Nop()
	}
	fp := gofeed.NewParser()
	fp.Client = &http.Client{Timeout: timeout}
	return &Source{feeds: feeds, timeout: timeout, parser: fp, l: l}, nil
}

func (s *Source) Name() string { return SourceName }

// FetchArticles fails only when every feed fails.
func (s *Source) FetchArticles(ctx context.Context, q domrepo.NewsQuery) (out []models.Article, err error) {
	start := time.Now()
	defer func() { metrics.ObserveFetch(SourceName, start, err) }()

	query := strings.TrimSpace(q.Query)
	results := make([][]models.Article, len(s.feeds))
	errs := make([]error, len(s.feeds))

	var wg sync.WaitGroup
	for i, raw := range s.feeds {
		wg.Add(1)
		go func(i int, feedURL string) {
			defer wg.Done()
			results[i], errs[i] = s.fetchFeed(ctx, feedURL)
		}(i, expandURL(raw, query))
	}
	wg.Wait()

	failed := 0
	for i, ferr := range errs {
		if ferr != nil {
			failed++
			s.l.Warn("rss feed failed",
				applogger.String("feed", s.feeds[i]),
				applogger.Ticker(query),
				applogger.Error(ferr),
			)
			continue
		}
		out = append(out, results[i]...)
	}
	if failed == len(s.feeds) {
		return nil, fmt.Errorf("rss: all %d feeds failed: %w", failed, errs[0])
	}
	if out == nil {
		out = []models.Article{}
	}
	return out, nil
}

func (s *Source) fetchFeed(ctx context.Context, feedURL string) ([]models.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		out = append(out, toArticle(item, feed.Title))
	}
	return out, nil
}

func toArticle(item *gofeed.Item, feedTitle string) models.Article {
	art := models.Article{
		Title:       strings.TrimSpace(item.Title),
		URL:         item.Link,
		Source:      feedTitle,
		PublishedAt: item.PublishedParsed,
	}
	if desc := strings.TrimSpace(item.Description); desc != "" {
		art.Description = &desc
	}
	if art.PublishedAt == nil {
		art.PublishedAt = item.UpdatedParsed
	}
	return art
}

func expandURL(raw, query string) string {
	return strings.ReplaceAll(raw, TickerPlaceholder, url.QueryEscape(query))
}
