package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NewsVol/internal/handler/api"
	"NewsVol/internal/usecase"
	xhttp "NewsVol/pkg/http"
	pkgkafka "NewsVol/pkg/kafka"
	applogger "NewsVol/pkg/logger"
	"NewsVol/pkg/queue"
	"NewsVol/pkg/tracing"
)

const defaultShutdownTimeout = 15 * time.Second

// Components groups everything the App starts and stops. Only HTTP is
// required; the rest are nil when disabled in config.
type Components struct {
	HTTP      *xhttp.Server
	Consumer  *pkgkafka.Consumer
	Requests  pkgkafka.MessageHandler
	Queue     *queue.RedisQueue
	Scheduler *usecase.Scheduler
	Stream    *api.StreamHub
	Tracing   *tracing.Provider

	// Closers are closed in order after every worker has stopped.
	Closers []NamedCloser
}

// NamedCloser labels a resource for shutdown logs.
type NamedCloser struct {
	Name   string
	Closer io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	c               Components
	l               *applogger.Logger
	shutdownTimeout time.Duration
}

// New creates a new App instance with all dependencies.
func New(l *applogger.Logger, c Components, shutdownTimeout time.Duration) *App {
	if l == nil {
		l = applogger.Nop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &App{c: c, l: l, shutdownTimeout: shutdownTimeout}
}

// Run starts every component and blocks until ctx is cancelled or the process
// receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(); err != nil {
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) start() error {
	if a.c.Consumer != nil && a.c.Requests != nil {
		a.c.Consumer.RegisterHandler(a.c.Requests)
		if err := a.c.Consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.c.Requests.Topic()))
	}

	if a.c.Queue != nil {
		if err := a.c.Queue.Start(); err != nil {
			a.l.Error("job queue start error", applogger.Error(err))
			return err
		}
	}

	if a.c.Scheduler != nil {
		a.c.Scheduler.Start()
	}

	if err := a.c.HTTP.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

// shutdown stops intake first, then workers, then closes shared clients.
func (a *App) shutdown() {
	a.l.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if a.c.HTTP != nil {
		if err := a.c.HTTP.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.c.Stream != nil {
		a.c.Stream.Close()
	}
	if a.c.Scheduler != nil {
		if err := a.c.Scheduler.Stop(ctx); err != nil {
			a.l.Warn("scheduler stop error", applogger.Error(err))
		}
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.c.Queue != nil {
		if err := a.c.Queue.Stop(ctx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// flush collected warn/error logs while the producer is still open
	a.l.RemoveCollector()

	for _, nc := range a.c.Closers {
		if nc.Closer == nil {
			continue
		}
		if err := nc.Closer.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", nc.Name), applogger.Error(err))
		}
	}

	if a.c.Tracing != nil {
		if err := a.c.Tracing.Shutdown(ctx); err != nil {
			a.l.Warn("tracing shutdown error", applogger.Error(err))
		}
	}
	a.l.Info("shutdown complete")
}
