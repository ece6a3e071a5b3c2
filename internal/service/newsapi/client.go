package newsapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	"NewsVol/internal/service/metrics"
	"NewsVol/internal/service/ratelimit"
	xhttp "NewsVol/pkg/http"
	xutil "NewsVol/pkg/util"
)

const (
	SourceName      = "newsapi"
	DefaultBaseURL  = "https://newsapi.org"
	DefaultPageSize = 20

	everythingPath = "/v2/everything"
)

// Config for the NewsAPI client.
type Config struct {
	BaseURL      string
	APIKey       string
	PageSize     int
	Timeout      time.Duration
	RPS          float64
	Burst        int
	Retries      int
	RetryBackoff time.Duration
}

// Client searches NewsAPI's /v2/everything endpoint.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
}

var _ domrepo.NewsSource = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("newsapi: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout), xhttp.WithRetry(cfg.Retries, cfg.RetryBackoff)),
		limiter: ratelimit.New(cfg.RPS, cfg.Burst),
	}, nil
}

func (c *Client) Name() string { return SourceName }

type everythingResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string  `json:"title"`
		Description *string `json:"description"`
		URL         string  `json:"url"`
		PublishedAt string  `json:"publishedAt"`
	} `json:"articles"`
}

// FetchArticles returns articles in NewsAPI's order. A missing description
// stays nil.
func (c *Client) FetchArticles(ctx context.Context, q domrepo.NewsQuery) (out []models.Article, err error) {
	start := time.Now()
	defer func() { metrics.ObserveFetch(SourceName, start, err) }()

	query := strings.TrimSpace(q.Query)
	if query == "" {
		return nil, &models.InvalidInputError{Field: "query", Reason: "required"}
	}
	lang := q.Language
	if lang == "" {
		lang = "en"
	}

	if err := c.limiter.Wait(ctx, SourceName); err != nil {
		return nil, fmt.Errorf("newsapi: rate limit wait: %w", err)
	}

	var resp everythingResponse
	err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    strings.TrimRight(c.cfg.BaseURL, "/") + everythingPath,
		Headers: map[string]string{
			"X-Api-Key": c.cfg.APIKey,
		},
		QueryParams: map[string][]string{
			"q":        {query},
			"language": {lang},
			"pageSize": {fmt.Sprintf("%d", c.cfg.PageSize)},
		},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("newsapi: status %d: %w", se.Code, err)
		}
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi: %s: %s", resp.Code, resp.Message)
	}

	out = make([]models.Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		art := models.Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
		}
		if ts, ok := xutil.ParseTime(a.PublishedAt); ok {
			art.PublishedAt = &ts
		}
		out = append(out, art)
	}
	return out, nil
}
