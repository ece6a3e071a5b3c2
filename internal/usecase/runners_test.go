package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"NewsVol/internal/domain/models"
	"NewsVol/pkg/cache"
	pkgkafka "NewsVol/pkg/kafka"
	"NewsVol/pkg/queue"
)

type fakeRunner struct {
	mu       sync.Mutex
	params   []TickerAnalysisParams
	errs     map[string]error
	delay    time.Duration
	inFlight int32
	maxSeen  int32
}

func (r *fakeRunner) Run(_ context.Context, p TickerAnalysisParams) (*models.AnalysisReport, error) {
	cur := atomic.AddInt32(&r.inFlight, 1)
	defer atomic.AddInt32(&r.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&r.maxSeen)
		if cur <= prev || atomic.CompareAndSwapInt32(&r.maxSeen, prev, cur) {
			break
		}
	}
	time.Sleep(r.delay)

	r.mu.Lock()
	r.params = append(r.params, p)
	r.mu.Unlock()
	if err := r.errs[p.Ticker]; err != nil {
		return nil, err
	}
	return &models.AnalysisReport{Result: &models.AnalysisResult{Ticker: p.Ticker}}, nil
}

func TestKafkaRequestsHandlerAppliesDefaults(t *testing.T) {
	r := &fakeRunner{}
	h := NewKafkaRequestsHandler("newsvol.requests", r, nil)
	if h.Topic() != "newsvol.requests" {
		t.Fatalf("unexpected topic %s", h.Topic())
	}
	if err := h.Handle(context.Background(), []byte(`{"ticker":"msft","horizon":3}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	p := r.params[0]
	if p.Ticker != "msft" || p.Horizon != 3 || p.NewsLimit != 5 || p.Language != "en" || p.Lookback != "6mo" {
		t.Fatalf("unexpected params %+v", p)
	}
}

func TestKafkaRequestsHandlerErrors(t *testing.T) {
	r := &fakeRunner{errs: map[string]error{
		"BAD":  &models.InsufficientDataError{What: "returns", Need: 30, Got: 4},
		"DOWN": &models.UpstreamError{Source: "yahoo", Err: errors.New("503")},
	}}
	h := NewKafkaRequestsHandler("t", r, nil)

	cases := []struct {
		name      string
		payload   string
		wantErr   bool
		permanent bool
	}{
		{"malformed json", `{"ticker":`, true, true},
		{"missing ticker", `{"horizon":3}`, true, true},
		{"bad lookback", `{"ticker":"AAPL","lookback":"3d"}`, true, true},
		{"insufficient data", `{"ticker":"BAD"}`, true, true},
		{"upstream failure", `{"ticker":"DOWN"}`, true, false},
		{"ok", `{"ticker":"AAPL"}`, false, false},
	}
	for _, tc := range cases {
		err := h.Handle(context.Background(), []byte(tc.payload))
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: unexpected error %v", tc.name, err)
			continue
		}
		if pkgkafka.IsNonRetryable(err) != tc.permanent {
			t.Errorf("%s: non-retryable=%v, want %v", tc.name, pkgkafka.IsNonRetryable(err), tc.permanent)
		}
	}
}

func TestAnalysisJob(t *testing.T) {
	r := &fakeRunner{errs: map[string]error{
		"FLAT": &models.ModelFitError{Reason: "returns are near-constant"},
		"DOWN": &models.UpstreamError{Source: "newsapi", Err: errors.New("timeout")},
	}}
	j := NewAnalysisJob(r)
	if j.Type() != AnalysisJobType {
		t.Fatalf("unexpected type %s", j.Type())
	}

	var perm *queue.PermanentError
	if err := j.Handle(context.Background(), json.RawMessage(`{"ticker":"AAPL","partial":true}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !r.params[0].AllowPartial {
		t.Fatalf("partial flag lost")
	}
	if err := j.Handle(context.Background(), nil); !errors.As(err, &perm) {
		t.Fatalf("empty payload should be permanent, got %v", err)
	}
	if err := j.Handle(context.Background(), json.RawMessage(`{"ticker":""}`)); !errors.As(err, &perm) {
		t.Fatalf("invalid payload should be permanent, got %v", err)
	}
	if err := j.Handle(context.Background(), json.RawMessage(`{"ticker":"FLAT"}`)); !errors.As(err, &perm) {
		t.Fatalf("model fit failure should be permanent, got %v", err)
	}
	err := j.Handle(context.Background(), json.RawMessage(`{"ticker":"DOWN"}`))
	if err == nil || errors.As(err, &perm) {
		t.Fatalf("upstream failure should be retried, got %v", err)
	}
}

func TestSchedulerRunNowBoundsConcurrency(t *testing.T) {
	r := &fakeRunner{delay: 30 * time.Millisecond, errs: map[string]error{"NVDA": errors.New("boom")}}
	s, err := NewScheduler(ScheduleConfig{
		Cron:        "0 30 21 * * 1-5",
		Watchlist:   []string{"aapl", "MSFT", " nvda ", "GOOG", ""},
		Concurrency: 2,
		Horizon:     5,
	}, r, nil, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	errs := s.RunNow(context.Background())
	if len(errs) != 4 {
		t.Fatalf("expected 4 tickers run, got %v", errs)
	}
	if errs["NVDA"] == nil || errs["AAPL"] != nil {
		t.Fatalf("unexpected errors %v", errs)
	}
	if peak := atomic.LoadInt32(&r.maxSeen); peak > 2 {
		t.Fatalf("concurrency limit exceeded: %d", peak)
	}
	tickers := make([]string, 0, len(r.params))
	for _, p := range r.params {
		tickers = append(tickers, p.Ticker)
		if p.Horizon != 5 {
			t.Fatalf("horizon not forwarded")
		}
	}
	sort.Strings(tickers)
	if len(tickers) != 4 || tickers[0] != "AAPL" || tickers[3] != "NVDA" {
		t.Fatalf("unexpected tickers %v", tickers)
	}
}

func TestSchedulerSkipsLockedTickers(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()

	ok, _ := mc.TryLock(context.Background(), cache.Key("lock", "analysis", "MSFT"), time.Minute)
	if !ok {
		t.Fatalf("could not take lock")
	}

	r := &fakeRunner{}
	s, err := NewScheduler(ScheduleConfig{Cron: "@every 1h", Watchlist: []string{"AAPL", "MSFT"}}, r, mc, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	errs := s.RunNow(context.Background())
	if _, ran := errs["MSFT"]; ran || len(errs) != 1 {
		t.Fatalf("locked ticker should be skipped, got %v", errs)
	}
	if exists, _ := mc.Exists(context.Background(), cache.Key("lock", "analysis", "AAPL")); exists {
		t.Fatalf("lock should be released after the run")
	}
}

func TestSchedulerRejectsBadConfig(t *testing.T) {
	if _, err := NewScheduler(ScheduleConfig{Cron: "0 30 21 * * 1-5"}, &fakeRunner{}, nil, nil); err == nil {
		t.Fatalf("expected error for empty watchlist")
	}
	if _, err := NewScheduler(ScheduleConfig{Cron: "not a cron", Watchlist: []string{"AAPL"}}, &fakeRunner{}, nil, nil); err == nil {
		t.Fatalf("expected error for bad cron")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler(ScheduleConfig{Cron: "@every 1h", Watchlist: []string{"AAPL"}}, &fakeRunner{}, nil, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
