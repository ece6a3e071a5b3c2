package yahoo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	"NewsVol/internal/service/metrics"
	"NewsVol/internal/service/ratelimit"
	"NewsVol/internal/services/features"
	xhttp "NewsVol/pkg/http"
	xutil "NewsVol/pkg/util"
)

const (
	SourceName       = "yahoo"
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultUserAgent = "Mozilla/5.0 (compatible; newsvol/1.0)"
)

// ErrUnknownTicker is returned when the chart API has no data for a symbol.
var ErrUnknownTicker = fmt.Errorf("yahoo: unknown ticker: %w", models.ErrNotFound)

type Config struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	RPS          float64
	Burst        int
	Retries      int
	RetryBackoff time.Duration
}

// Client reads daily closes from the v8 chart API.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
}

var _ domrepo.PriceSource = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout), xhttp.WithUserAgent(cfg.UserAgent), xhttp.WithRetry(cfg.Retries, cfg.RetryBackoff)),
		limiter: ratelimit.New(cfg.RPS, cfg.Burst),
	}
}

func (c *Client) Name() string { return SourceName }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDailyCloses returns one point per trading day, oldest first. Days the
// provider reports without a close carry NaN.
func (c *Client) FetchDailyCloses(ctx context.Context, ticker string, lookback domrepo.Lookback) (out []models.PricePoint, err error) {
	start := time.Now()
	defer func() { metrics.ObserveFetch(SourceName, start, err) }()

	ticker = xutil.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, &models.InvalidInputError{Field: "ticker", Reason: "required"}
	}
	if !domrepo.IsValidLookback(lookback) {
		lookback = domrepo.DefaultLookback()
	}

	if err := c.limiter.Wait(ctx, SourceName); err != nil {
		return nil, fmt.Errorf("yahoo: rate limit wait: %w", err)
	}

	var resp chartResponse
	err = c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    strings.TrimRight(c.cfg.BaseURL, "/") + "/v8/finance/chart/" + url.PathEscape(ticker),
		QueryParams: map[string][]string{
			"interval": {"1d"},
			"range":    {string(lookback)},
		},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == 404 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart %s: %s: %s", ticker, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}

	res := resp.Chart.Result[0]
	var closes []*float64
	if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}
	if len(closes) != len(res.Timestamp) {
		return nil, fmt.Errorf("yahoo chart %s: %d timestamps but %d closes", ticker, len(res.Timestamp), len(closes))
	}

	offset := time.Duration(res.Meta.GMTOffset) * time.Second
	out = make([]models.PricePoint, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		p := models.PricePoint{
			Date:  xutil.TruncateDay(time.Unix(ts, 0).Add(offset)),
			Close: math.NaN(),
		}
		if closes[i] != nil {
			p.Close = *closes[i]
		}
		out = append(out, p)
	}
	return features.NormalizePrices(out), nil
}
