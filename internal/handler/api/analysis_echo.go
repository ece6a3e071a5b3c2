package api

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/labstack/echo/v4"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	domsvc "NewsVol/internal/domain/service"
	"NewsVol/internal/services/features"
	"NewsVol/internal/usecase"
	xhttp "NewsVol/pkg/http"
	xlogger "NewsVol/pkg/logger"
	"NewsVol/pkg/queue"
	xutil "NewsVol/pkg/util"
)

// AnalysisEchoHandler serves the analysis API.
type AnalysisEchoHandler struct {
	logger     *xlogger.Logger
	runner     usecase.TickerAnalyzer
	analyzer   *usecase.AnalysisOrchestrator
	scorer     domsvc.SentimentScorer
	forecaster domsvc.VolatilityForecaster
	prices     domrepo.PriceSource
	store      domrepo.AnalysisStore
	jobs       queue.QueueService
}

// AnalysisHandlerDeps groups the handler's collaborators. Store and Jobs are
// optional; their routes answer 503 without them.
type AnalysisHandlerDeps struct {
	Runner     usecase.TickerAnalyzer
	Analyzer   *usecase.AnalysisOrchestrator
	Scorer     domsvc.SentimentScorer
	Forecaster domsvc.VolatilityForecaster
	Prices     domrepo.PriceSource
	Store      domrepo.AnalysisStore
	Jobs       queue.QueueService
}

func NewAnalysisEchoHandler(logger *xlogger.Logger, deps AnalysisHandlerDeps) *AnalysisEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &AnalysisEchoHandler{
		logger:     logger,
		runner:     deps.Runner,
		analyzer:   deps.Analyzer,
		scorer:     deps.Scorer,
		forecaster: deps.Forecaster,
		prices:     deps.Prices,
		store:      deps.Store,
		jobs:       deps.Jobs,
	}
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/analysis/:ticker", h.AnalyzeTicker)
	g.POST("/analysis", h.Analyze)
	g.POST("/analysis/jobs", h.SubmitJob)
	g.POST("/sentiment", h.Sentiment)
	g.POST("/volatility", h.Volatility)
	g.GET("/prices/:ticker", h.Prices)
	g.GET("/history/:ticker", h.History)
}

// AnalyzeTicker fetches news and prices and runs the full analysis.
func (h *AnalysisEchoHandler) AnalyzeTicker(c echo.Context) error {
	req := &models.AnalysisQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rep, err := h.runner.Run(c.Request().Context(), usecase.TickerAnalysisParams{
		Ticker:       req.Ticker,
		Query:        req.Query,
		Language:     req.Language,
		Lookback:     domrepo.NormalizeLookback(req.Lookback),
		NewsLimit:    req.NewsLimit,
		Horizon:      req.Horizon,
		AllowPartial: req.Partial,
	})
	if err != nil {
		return h.fail(c, "analysis usecase error", err, xlogger.Ticker(req.Ticker))
	}
	return xhttp.SuccessResponse(c, models.NewReportResponse(rep))
}

// Analyze runs the analysis over caller-supplied articles and prices only.
func (h *AnalysisEchoHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	prices, err := toPricePoints(req.Prices)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	articles := req.Articles
	if articles == nil {
		articles = []models.Article{}
	}

	res, err := h.analyzer.Analyze(xutil.NormalizeTicker(req.Ticker), articles, prices, usecase.AnalyzeOptions{
		NewsLimit:    req.NewsLimit,
		Horizon:      req.Horizon,
		AllowPartial: req.Partial,
	})
	var partial *models.PartialResultError
	switch {
	case err == nil:
	case errors.As(err, &partial):
		res = partial.Result
	default:
		return h.fail(c, "analyze error", err, xlogger.Ticker(req.Ticker))
	}
	return xhttp.SuccessResponse(c, models.NewAnalysisResponse(res))
}

// SubmitJob queues an analysis and answers 202 with the job id.
func (h *AnalysisEchoHandler) SubmitJob(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("job queue is disabled"))
	}
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	req.Ticker = xutil.NormalizeTicker(req.Ticker)

	id, err := h.jobs.Enqueue(c.Request().Context(), usecase.AnalysisJobType, req)
	if err != nil {
		h.logger.Error("enqueue analysis job failed", xlogger.Ticker(req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("could not queue the job").WithError(err))
	}
	return xhttp.AcceptedResponse(c, models.JobAccepted{JobID: id, Type: usecase.AnalysisJobType, Ticker: req.Ticker})
}

// Sentiment scores one text. A missing text scores 0.
func (h *AnalysisEchoHandler) Sentiment(c echo.Context) error {
	req := &models.SentimentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	score := 0.0
	if req.Text != nil {
		score = h.scorer.Score(*req.Text)
	}
	return xhttp.SuccessResponse(c, models.SentimentResponse{Score: score})
}

// Volatility forecasts from caller-supplied returns, or from prices when no
// returns are given.
func (h *AnalysisEchoHandler) Volatility(c echo.Context) error {
	req := &models.VolatilityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	returns := req.Returns
	if len(returns) == 0 {
		prices, err := toPricePoints(req.Prices)
		if err != nil {
			return xhttp.AppErrorResponse(c, toAppError(err))
		}
		usable := features.UsablePrices(prices)
		if len(usable) < 2 {
			return xhttp.AppErrorResponse(c, toAppError(&models.InsufficientDataError{What: "usable prices", Need: 2, Got: len(usable)}))
		}
		returns = features.BuildReturns(prices).Values()
	}

	fc, err := h.forecaster.Forecast(returns, req.Horizon)
	if err != nil {
		return h.fail(c, "volatility forecast error", err)
	}
	return xhttp.SuccessResponse(c, models.NewForecastView(fc))
}

// Prices returns the raw daily closes for a ticker.
func (h *AnalysisEchoHandler) Prices(c echo.Context) error {
	req := &models.PricesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := xutil.NormalizeTicker(req.Ticker)
	prices, err := h.prices.FetchDailyCloses(c.Request().Context(), ticker, domrepo.NormalizeLookback(req.Lookback))
	if err != nil {
		if !usecase.IsPermanent(err) {
			err = &models.UpstreamError{Source: h.prices.Name(), Err: err}
		}
		return h.fail(c, "price fetch error", err, xlogger.Ticker(ticker))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.ListResponse(c, prices, int64(len(prices)))
}

// History lists stored analyses, newest first.
func (h *AnalysisEchoHandler) History(c echo.Context) error {
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("analysis history is disabled"))
	}
	req := &models.HistoryQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := xutil.NormalizeTicker(req.Ticker)
	rows, err := h.store.History(c.Request().Context(), ticker, req.Limit)
	if err != nil {
		h.logger.Error("history query failed", xlogger.Ticker(ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("analysis history is unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *AnalysisEchoHandler) Health(c echo.Context) error {
	status := map[string]string{"status": "ok"}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Health(ctx); err != nil {
			status["store"] = err.Error()
			status["status"] = "degraded"
		} else {
			status["store"] = "ok"
		}
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *AnalysisEchoHandler) fail(c echo.Context, msg string, err error, fields ...xlogger.Field) error {
	appErr := toAppError(err)
	fields = append(fields, xlogger.Error(err), xlogger.String("code", appErr.Code))
	if appErr.Status >= 500 {
		h.logger.Error(msg, fields...)
	} else {
		h.logger.Warn(msg, fields...)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toPricePoints parses caller-supplied closes; a null close becomes a
// missing (NaN) close. The result is sorted with duplicate dates collapsed.
func toPricePoints(in []models.PriceInput) ([]models.PricePoint, error) {
	out := make([]models.PricePoint, 0, len(in))
	for _, p := range in {
		d, ok := xutil.ParseDate(p.Date)
		if !ok {
			return nil, &models.InvalidInputError{Field: "prices.date", Reason: "unparseable date " + p.Date}
		}
		v := math.NaN()
		if p.Close != nil {
			v = *p.Close
		}
		out = append(out, models.PricePoint{Date: d, Close: v})
	}
	return features.NormalizePrices(out), nil
}
