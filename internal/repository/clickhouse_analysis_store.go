package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	pkgch "NewsVol/pkg/clickhouse"
	applogger "NewsVol/pkg/logger"
)

const (
	analysesTable      = "analyses"
	articleScoresTable = "article_scores"
)

// AnalysisSchema is the DDL for the analysis history. Statements are idempotent.
var AnalysisSchema = []string{
	`CREATE TABLE IF NOT EXISTS analyses (
		ticker         LowCardinality(String),
		ts             DateTime64(3, 'UTC'),
		mean_sentiment Float64,
		article_count  UInt16,
		horizon        UInt16,
		variances      Array(Float64),
		omega          Float64,
		alpha          Float64,
		beta           Float64,
		mu             Float64,
		loglik         Float64,
		error          String
	) ENGINE = MergeTree
	ORDER BY (ticker, ts)`,
	`CREATE TABLE IF NOT EXISTS article_scores (
		ticker LowCardinality(String),
		ts     DateTime64(3, 'UTC'),
		title  String,
		url    String,
		score  Float64
	) ENGINE = MergeTree
	ORDER BY (ticker, ts)`,
}

// CHAnalysisStore implements AnalysisStore backed by ClickHouse.
type CHAnalysisStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

var _ domrepo.AnalysisStore = (*CHAnalysisStore)(nil)

func NewCHAnalysisStore(ch *pkgch.Client) *CHAnalysisStore {
	return &CHAnalysisStore{ch: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHAnalysisStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the tables when missing.
func (s *CHAnalysisStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, AnalysisSchema)
}

// Save writes one analysis row and its article scores. ts is unix milliseconds.
func (s *CHAnalysisStore) Save(ctx context.Context, r *models.AnalysisResult, ts int64) error {
	if r == nil {
		return fmt.Errorf("save analysis: nil result")
	}
	start := time.Now()
	at := time.UnixMilli(ts).UTC()

	const q = `INSERT INTO analyses
		(ticker, ts, mean_sentiment, article_count, horizon, variances, omega, alpha, beta, mu, loglik, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, analysisRow(r, at)...); err != nil {
		s.logError("clickhouse save_analysis error", analysesTable, r.Ticker, err)
		return fmt.Errorf("insert analysis: %w", err)
	}

	if err := s.saveArticleScores(ctx, r, at); err != nil {
		s.logError("clickhouse save_article_scores error", articleScoresTable, r.Ticker, err)
		return fmt.Errorf("insert article scores: %w", err)
	}

	if s.l != nil {
		s.l.Debug("clickhouse save_analysis ok",
			applogger.Ticker(r.Ticker),
			applogger.Int("articles", len(r.Articles)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// saveArticleScores batches the rows in one transaction, which the driver
// sends as a single block.
func (s *CHAnalysisStore) saveArticleScores(ctx context.Context, r *models.AnalysisResult, at time.Time) error {
	if len(r.Articles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO article_scores (ticker, ts, title, url, score)")
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, a := range r.Articles {
		if _, err := stmt.ExecContext(ctx, r.Ticker, at, a.Article.Title, a.Article.URL, a.Score); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// History returns the latest stored analyses for ticker, newest first.
func (s *CHAnalysisStore) History(ctx context.Context, ticker string, limit int) ([]models.StoredAnalysis, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 20
	}
	const q = `
		SELECT ticker, ts, mean_sentiment, article_count, horizon, variances,
		       omega, alpha, beta, mu, loglik, error
		FROM analyses
		WHERE ticker = ?
		ORDER BY ts DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, q, ticker, limit)
	if err != nil {
		s.logError("clickhouse history query error", analysesTable, ticker, err)
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]models.StoredAnalysis, 0, limit)
	for rows.Next() {
		var (
			a        models.StoredAnalysis
			articles uint16
			horizon  uint16
		)
		if err := rows.Scan(&a.Ticker, &a.Timestamp, &a.MeanSentiment, &articles, &horizon, &a.Variances,
			&a.Params.Omega, &a.Params.Alpha, &a.Params.Beta, &a.Params.Mu, &a.LogLikelihood, &a.Error); err != nil {
			s.logError("clickhouse history scan error", analysesTable, ticker, err)
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		a.ArticleCount = int(articles)
		a.Horizon = int(horizon)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		s.logError("clickhouse history rows error", analysesTable, ticker, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse history ok",
			applogger.Ticker(ticker),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHAnalysisStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHAnalysisStore) logError(msg, table, ticker string, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", table),
		applogger.Ticker(ticker),
		applogger.Error(err),
	)
}

// analysisRow flattens a result into the analyses column order. A partial
// result stores zero parameters, an empty variance path and the error text.
func analysisRow(r *models.AnalysisResult, at time.Time) []interface{} {
	var (
		horizon   uint16
		variances = []float64{}
		params    models.GarchParams
		loglik    float64
	)
	if fc := r.Forecast; fc != nil {
		horizon = uint16(fc.Horizon)
		variances = fc.Variances
		params = fc.Params
		loglik = fc.LogLikelihood
	}
	return []interface{}{
		r.Ticker,
		at,
		r.MeanSentiment(),
		uint16(len(r.Articles)),
		horizon,
		variances,
		params.Omega,
		params.Alpha,
		params.Beta,
		params.Mu,
		loglik,
		r.ForecastError,
	}
}
