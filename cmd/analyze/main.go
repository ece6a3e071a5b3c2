// Command analyze runs one news-sentiment and volatility analysis for a ticker
// and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"NewsVol/internal/di"
	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	"NewsVol/internal/usecase"
	"NewsVol/pkg/config"
	applogger "NewsVol/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config/config.yaml", "config file path")
	ticker := fs.String("ticker", "", "ticker symbol, e.g. AAPL")
	horizon := fs.Int("horizon", 0, "forecast horizon in trading days (default from config)")
	newsLimit := fs.Int("news-limit", 0, "number of articles to score (default from config)")
	lookback := fs.String("lookback", "", "price history range: 1mo 3mo 6mo 1y 2y 5y 10y ytd max")
	query := fs.String("query", "", "news search query (defaults to the ticker)")
	partial := fs.Bool("partial", false, "print the sentiment view even when the forecast fails")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*ticker) == "" {
		fmt.Fprintln(stderr, "analyze: -ticker is required")
		fs.Usage()
		return 2
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(stderr, "analyze: dotenv: %v\n", err)
	}
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "analyze: %v\n", err)
		return 1
	}
	// one-shot runs never share a cache
	cfg.Cache.Enabled = false

	l := applogger.NewWithWriter(stderr, "warn")
	uc, err := buildUseCase(cfg, l)
	if err != nil {
		fmt.Fprintf(stderr, "analyze: %v\n", err)
		return 1
	}

	p := usecase.TickerAnalysisParams{
		Ticker:       *ticker,
		Query:        *query,
		Language:     cfg.News.Language,
		Lookback:     domrepo.NormalizeLookback(cfg.Analysis.Lookback),
		NewsLimit:    cfg.Analysis.NewsLimit,
		Horizon:      cfg.Analysis.Horizon,
		AllowPartial: *partial,
	}
	if *lookback != "" {
		lb := domrepo.Lookback(*lookback)
		if !domrepo.IsValidLookback(lb) {
			fmt.Fprintf(stderr, "analyze: unknown lookback %q\n", *lookback)
			return 2
		}
		p.Lookback = lb
	}
	if *newsLimit != 0 {
		p.NewsLimit = *newsLimit
	}
	if *horizon != 0 {
		p.Horizon = *horizon
	}

	rep, err := uc.Run(context.Background(), p)
	if err != nil {
		fmt.Fprintf(stderr, "analyze: %s: %v\n", models.ErrorKind(err), err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(models.NewReportResponse(rep)); err != nil {
		fmt.Fprintf(stderr, "analyze: encode result: %v\n", err)
		return 1
	}
	return 0
}

func buildUseCase(cfg *config.Config, l *applogger.Logger) (*usecase.TickerAnalysisUseCase, error) {
	newsSrc, err := di.ProvideNewsSource(cfg, nil, l)
	if err != nil {
		return nil, err
	}
	scorer, err := di.ProvideScorer()
	if err != nil {
		return nil, err
	}
	orch := di.ProvideOrchestrator(scorer, di.ProvideForecaster(cfg))
	return usecase.NewTickerAnalysisUseCase(newsSrc, di.ProvidePriceSource(cfg, nil), orch,
		usecase.WithLogger(l),
		usecase.WithTimeout(cfg.Analysis.Timeout),
	), nil
}
