package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	domrepo "NewsVol/internal/domain/repository"
	"NewsVol/pkg/cache"
	applogger "NewsVol/pkg/logger"
	xutil "NewsVol/pkg/util"
)

const DefaultScheduleLockTTL = 10 * time.Minute

// ScheduleConfig describes the recurring watchlist analysis.
type ScheduleConfig struct {
	Cron        string
	Watchlist   []string
	Concurrency int
	NewsLimit   int
	Horizon     int
	Lookback    domrepo.Lookback
	LockTTL     time.Duration
}

// Scheduler analyses every watchlist ticker on a cron schedule. With a lock
// cache, a ticker already being analysed by another instance is skipped.
type Scheduler struct {
	cron   *cron.Cron
	cfg    ScheduleConfig
	runner TickerAnalyzer
	locks  cache.Service
	l      *applogger.Logger

	mu      sync.Mutex
	running bool
}

func NewScheduler(cfg ScheduleConfig, runner TickerAnalyzer, locks cache.Service, l *applogger.Logger) (*Scheduler, error) {
	if len(cfg.Watchlist) == 0 {
		return nil, fmt.Errorf("scheduler: watchlist is empty")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultScheduleLockTTL
	}
	if l == nil {
		l = applogger.Nop()
	}
	s := &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		cfg:    cfg,
		runner: runner,
		locks:  locks,
		l:      l,
	}
	if _, err := s.cron.AddFunc(cfg.Cron, s.tick); err != nil {
		return nil, fmt.Errorf("register watchlist task: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started",
		applogger.String("cron", s.cfg.Cron),
		applogger.Strings("watchlist", s.cfg.Watchlist),
	)
}

// Stop prevents new runs and waits for a running one, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.l.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.l.Warn("previous watchlist run still in progress, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.RunNow(context.Background())
}

// RunNow analyses the whole watchlist once and returns the per-ticker errors.
// Tickers skipped because of a held lock are absent from the map.
func (s *Scheduler) RunNow(ctx context.Context) map[string]error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = map[string]error{}
		sem  = make(chan struct{}, s.cfg.Concurrency)
	)
	for _, ticker := range xutil.NormalizeTickers(s.cfg.Watchlist) {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			ran, err := s.runTicker(ctx, ticker)
			if !ran {
				return
			}
			mu.Lock()
			errs[ticker] = err
			mu.Unlock()
		}()
	}
	wg.Wait()
	return errs
}

func (s *Scheduler) runTicker(ctx context.Context, ticker string) (bool, error) {
	if s.locks != nil {
		key := cache.Key("lock", "analysis", ticker)
		ok, err := s.locks.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			s.l.Warn("scheduler lock failed, running anyway", applogger.Ticker(ticker), applogger.Error(err))
		} else if !ok {
			s.l.Debug("ticker locked by another run", applogger.Ticker(ticker))
			return false, nil
		} else {
			defer func() { _ = s.locks.Unlock(context.WithoutCancel(ctx), key) }()
		}
	}

	_, err := s.runner.Run(ctx, TickerAnalysisParams{
		Ticker:    ticker,
		NewsLimit: s.cfg.NewsLimit,
		Horizon:   s.cfg.Horizon,
		Lookback:  s.cfg.Lookback,
	})
	if err != nil {
		s.l.Error("scheduled analysis failed", applogger.Ticker(ticker), applogger.Error(err))
	}
	return true, err
}
