package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"NewsVol/internal/domain/models"
	domrepo "NewsVol/internal/domain/repository"
	"NewsVol/internal/services/news"
	"NewsVol/internal/usecase"
)

type constScorer float64

func (s constScorer) Score(string) float64 { return float64(s) }

type stubForecaster struct {
	returns []float64
	err     error
}

func (f *stubForecaster) Forecast(returns []float64, horizon int) (models.VolatilityForecast, error) {
	f.returns = returns
	if f.err != nil {
		return models.VolatilityForecast{}, f.err
	}
	v := make([]float64, horizon)
	for i := range v {
		v[i] = 4
	}
	return models.VolatilityForecast{
		Horizon:   horizon,
		Variances: v,
		Params:    models.GarchParams{Omega: 0.1, Alpha: 0.1, Beta: 0.85},
		Model:     "GARCH(1,1)",
	}, nil
}

type stubRunner struct {
	got usecase.TickerAnalysisParams
	err error
}

func (r *stubRunner) Run(_ context.Context, p usecase.TickerAnalysisParams) (*models.AnalysisReport, error) {
	r.got = p
	if r.err != nil {
		return nil, r.err
	}
	return &models.AnalysisReport{
		Result: &models.AnalysisResult{
			Ticker:   "AAPL",
			Articles: []models.ScoredArticle{{Article: models.Article{Title: "t"}, Score: 0.4}},
			Forecast: &models.VolatilityForecast{Horizon: 1, Variances: []float64{9}},
		},
		RealizedVol: 1.5,
		Timestamp:   time.Date(2024, 5, 3, 21, 0, 0, 0, time.UTC),
		Duration:    250 * time.Millisecond,
	}, nil
}

type stubPriceSource struct {
	prices []models.PricePoint
	err    error
}

func (s *stubPriceSource) Name() string { return "stub" }

func (s *stubPriceSource) FetchDailyCloses(context.Context, string, domrepo.Lookback) ([]models.PricePoint, error) {
	return s.prices, s.err
}

type stubStore struct {
	rows     []models.StoredAnalysis
	gotLimit int
}

func (s *stubStore) Save(context.Context, *models.AnalysisResult, int64) error { return nil }

func (s *stubStore) History(_ context.Context, _ string, limit int) ([]models.StoredAnalysis, error) {
	s.gotLimit = limit
	return s.rows, nil
}

func (s *stubStore) Health(context.Context) error { return nil }

type stubQueue struct {
	msgType string
	payload interface{}
}

func (q *stubQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	q.msgType, q.payload = msgType, payload
	return "job-1", nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(deps AnalysisHandlerDeps) *echo.Echo {
	if deps.Scorer == nil {
		deps.Scorer = constScorer(0.5)
	}
	if deps.Forecaster == nil {
		deps.Forecaster = &stubForecaster{}
	}
	if deps.Analyzer == nil {
		deps.Analyzer = usecase.NewAnalysisOrchestrator(news.NewAggregator(deps.Scorer), deps.Forecaster)
	}
	if deps.Runner == nil {
		deps.Runner = &stubRunner{}
	}
	if deps.Prices == nil {
		deps.Prices = &stubPriceSource{}
	}
	e := echo.New()
	NewAnalysisEchoHandler(nil, deps).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, target, rec.Body.String(), err)
	}
	return rec.Code, env
}

func errorCode(t *testing.T, env envelope) string {
	t.Helper()
	var errs []struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(env.Data, &errs); err != nil || len(errs) == 0 {
		t.Fatalf("expected an error list, got %s", env.Data)
	}
	return errs[0].Code
}

func TestAnalyzeTickerAppliesQueryDefaults(t *testing.T) {
	r := &stubRunner{}
	e := newTestServer(AnalysisHandlerDeps{Runner: r})

	code, env := do(t, e, http.MethodGet, "/api/analysis/aapl?horizon=3&partial=true", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, env.Data)
	}
	if r.got.Ticker != "aapl" || r.got.Horizon != 3 || r.got.NewsLimit != 5 || r.got.Lookback != domrepo.Lookback6mo || !r.got.AllowPartial {
		t.Fatalf("unexpected params %+v", r.got)
	}
	var resp models.AnalysisResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ticker != "AAPL" || resp.MeanSentiment != 0.4 || resp.Forecast == nil || resp.Forecast.Volatilities[0] != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.RealizedVolatility == nil || *resp.RealizedVolatility != 1.5 || resp.DurationMs != 250 {
		t.Fatalf("report fields missing: %+v", resp)
	}
}

func TestAnalyzeTickerRejectsBadQuery(t *testing.T) {
	e := newTestServer(AnalysisHandlerDeps{})
	for _, target := range []string{
		"/api/analysis/AAPL?horizon=999",
		"/api/analysis/AAPL?lookback=2w",
		"/api/analysis/AAPL?news_limit=-1",
	} {
		if code, _ := do(t, e, http.MethodGet, target, ""); code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, code)
		}
	}
}

func TestAnalyzeTickerMapsErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("forecast AAPL: %w", &models.InsufficientDataError{What: "returns", Need: 30, Got: 12}), http.StatusUnprocessableEntity, "ERR_INSUFFICIENT_DATA"},
		{&models.ModelFitError{Reason: "did not converge"}, http.StatusUnprocessableEntity, "ERR_MODEL_FIT"},
		{&models.UpstreamError{Source: "yahoo", Err: errors.New("503")}, http.StatusBadGateway, "ERR_UPSTREAM"},
		{&models.UpstreamError{Source: "yahoo", Err: fmt.Errorf("x: %w", models.ErrNotFound)}, http.StatusNotFound, "ERR_NOT_FOUND"},
		{fmt.Errorf("analyze AAPL: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "ERR_TIMEOUT"},
		{errors.New("unexpected"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		e := newTestServer(AnalysisHandlerDeps{Runner: &stubRunner{err: tc.err}})
		code, env := do(t, e, http.MethodGet, "/api/analysis/AAPL", "")
		if code != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, code)
			continue
		}
		if got := errorCode(t, env); got != tc.code {
			t.Errorf("%v: expected code %s, got %s", tc.err, tc.code, got)
		}
	}
}

func TestAnalyzeWithSuppliedData(t *testing.T) {
	fc := &stubForecaster{}
	e := newTestServer(AnalysisHandlerDeps{Forecaster: fc})

	body := `{
		"ticker": "aapl",
		"articles": [{"title": "Good", "description": null, "url": "u"}, {"title": "", "url": "v"}],
		"prices": [
			{"date": "2024-01-03", "close": 110},
			{"date": "2024-01-02", "close": 100},
			{"date": "2024-01-04", "close": null},
			{"date": "2024-01-05", "close": 99}
		],
		"horizon": 2
	}`
	code, env := do(t, e, http.MethodPost, "/api/analysis", body)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, env.Data)
	}
	var resp models.AnalysisResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ticker != "AAPL" || len(resp.Articles) != 1 || resp.Forecast == nil || len(resp.Forecast.Variances) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(fc.returns) != 2 || math.Abs(fc.returns[0]-10) > 1e-9 || math.Abs(fc.returns[1]-(-10)) > 1e-9 {
		t.Fatalf("expected sorted returns skipping the gap, got %v", fc.returns)
	}
}

func TestAnalyzePartialResult(t *testing.T) {
	fc := &stubForecaster{err: &models.ModelFitError{Reason: "flat"}}
	e := newTestServer(AnalysisHandlerDeps{Forecaster: fc})
	prices := `[{"date":"2024-01-02","close":100},{"date":"2024-01-03","close":101}]`

	code, env := do(t, e, http.MethodPost, "/api/analysis", `{"ticker":"AAPL","prices":`+prices+`}`)
	if code != http.StatusUnprocessableEntity || errorCode(t, env) != "ERR_MODEL_FIT" {
		t.Fatalf("expected 422 model fit, got %d", code)
	}

	code, env = do(t, e, http.MethodPost, "/api/analysis", `{"ticker":"AAPL","partial":true,"prices":`+prices+`}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200 for partial, got %d", code)
	}
	var resp models.AnalysisResponse
	_ = json.Unmarshal(env.Data, &resp)
	if resp.Forecast != nil || resp.ForecastError == "" {
		t.Fatalf("expected partial response, got %+v", resp)
	}
}

func TestAnalyzeRejectsBadDate(t *testing.T) {
	e := newTestServer(AnalysisHandlerDeps{})
	code, env := do(t, e, http.MethodPost, "/api/analysis", `{"ticker":"AAPL","prices":[{"date":"yesterday","close":1}]}`)
	if code != http.StatusBadRequest || errorCode(t, env) != "ERR_INVALID_INPUT" {
		t.Fatalf("expected 400 invalid input, got %d", code)
	}
}

func TestSentiment(t *testing.T) {
	e := newTestServer(AnalysisHandlerDeps{Scorer: constScorer(0.7)})

	_, env := do(t, e, http.MethodPost, "/api/sentiment", `{"text":"great"}`)
	var resp models.SentimentResponse
	_ = json.Unmarshal(env.Data, &resp)
	if resp.Score != 0.7 {
		t.Fatalf("expected scorer output, got %v", resp.Score)
	}

	_, env = do(t, e, http.MethodPost, "/api/sentiment", `{"text":null}`)
	_ = json.Unmarshal(env.Data, &resp)
	if resp.Score != 0 {
		t.Fatalf("missing text should score 0, got %v", resp.Score)
	}
}

func TestVolatility(t *testing.T) {
	fc := &stubForecaster{}
	e := newTestServer(AnalysisHandlerDeps{Forecaster: fc})

	code, env := do(t, e, http.MethodPost, "/api/volatility", `{"returns":[1,-0.5,0.25],"horizon":2}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, env.Data)
	}
	var view models.ForecastView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Variances) != 2 || view.Volatilities[1] != 2 || math.Abs(view.LongRunVariance-2) > 1e-9 {
		t.Fatalf("unexpected view %+v", view)
	}
	if len(fc.returns) != 3 {
		t.Fatalf("returns not forwarded")
	}

	code, env = do(t, e, http.MethodPost, "/api/volatility", `{"prices":[{"date":"2024-01-02","close":100},{"date":"2024-01-03","close":null}]}`)
	if code != http.StatusUnprocessableEntity || errorCode(t, env) != "ERR_INSUFFICIENT_DATA" {
		t.Fatalf("expected 422 insufficient data, got %d", code)
	}

	if code, _ := do(t, e, http.MethodPost, "/api/volatility", `{"horizon":2}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without returns or prices, got %d", code)
	}
}

func TestPricesEncodesMissingCloseAsNull(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ps := &stubPriceSource{prices: []models.PricePoint{{Date: day, Close: 170}, {Date: day.AddDate(0, 0, 1), Close: math.NaN()}}}
	e := newTestServer(AnalysisHandlerDeps{Prices: ps})

	code, env := do(t, e, http.MethodGet, "/api/prices/AAPL?lookback=1mo", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(string(env.Data), `"close":null`) || !strings.Contains(string(env.Data), `"total":2`) {
		t.Fatalf("unexpected body %s", env.Data)
	}

	ps.err = errors.New("connection reset")
	if code, _ := do(t, e, http.MethodGet, "/api/prices/AAPL", ""); code != http.StatusBadGateway {
		t.Fatalf("expected 502 on provider failure, got %d", code)
	}
}

func TestHistory(t *testing.T) {
	if code, _ := do(t, newTestServer(AnalysisHandlerDeps{}), http.MethodGet, "/api/history/AAPL", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a store, got %d", code)
	}

	store := &stubStore{rows: []models.StoredAnalysis{{Ticker: "AAPL", Horizon: 5}}}
	e := newTestServer(AnalysisHandlerDeps{Store: store})
	code, env := do(t, e, http.MethodGet, "/api/history/aapl", "")
	if code != http.StatusOK || store.gotLimit != 20 {
		t.Fatalf("unexpected status %d or limit %d", code, store.gotLimit)
	}
	var list struct {
		Rows  []models.StoredAnalysis `json:"rows"`
		Total int64                   `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil || list.Total != 1 || list.Rows[0].Horizon != 5 {
		t.Fatalf("unexpected list %s", env.Data)
	}
}

func TestSubmitJob(t *testing.T) {
	if code, _ := do(t, newTestServer(AnalysisHandlerDeps{}), http.MethodPost, "/api/analysis/jobs", `{"ticker":"AAPL"}`); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a queue, got %d", code)
	}

	q := &stubQueue{}
	e := newTestServer(AnalysisHandlerDeps{Jobs: q})
	code, env := do(t, e, http.MethodPost, "/api/analysis/jobs", `{"ticker":"msft","horizon":10}`)
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", code, env.Data)
	}
	var acc models.JobAccepted
	_ = json.Unmarshal(env.Data, &acc)
	if acc.JobID != "job-1" || acc.Ticker != "MSFT" || q.msgType != usecase.AnalysisJobType {
		t.Fatalf("unexpected acceptance %+v (type %s)", acc, q.msgType)
	}
	req, ok := q.payload.(*models.AnalysisRequest)
	if !ok || req.Horizon != 10 || req.NewsLimit != 5 {
		t.Fatalf("unexpected payload %#v", q.payload)
	}

	if code, _ := do(t, e, http.MethodPost, "/api/analysis/jobs", `{}`); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without ticker, got %d", code)
	}
}

func TestHealth(t *testing.T) {
	code, env := do(t, newTestServer(AnalysisHandlerDeps{Store: &stubStore{}}), http.MethodGet, "/api/health", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"store":"ok"`) {
		t.Fatalf("unexpected health %d %s", code, env.Data)
	}
}
