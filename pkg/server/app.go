package server

import (
	"context"
	"errors"
	"time"

	"FxSignal/internal/middleware"
	xhttp "FxSignal/pkg/http"
	pkgkafka "FxSignal/pkg/kafka"
	applogger "FxSignal/pkg/logger"
)

const consumerStopTimeout = 15 * time.Second

// App runs serve mode: the HTTP API plus, when Kafka is enabled, the bar
// consumer feeding the price book and bar store.
type App struct {
	l          *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	ingest     *middleware.IngestBuffer
}

// New builds the App. consumer, kh and ingest may be nil.
func New(l *applogger.Logger, httpServer *xhttp.Server, consumer *pkgkafka.Consumer, kh pkgkafka.MessageHandler, ingest *middleware.IngestBuffer) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{l: l, httpServer: httpServer, consumer: consumer, kh: kh, ingest: ingest}
}

// Run starts every component and blocks until ctx is cancelled or the HTTP
// listener fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if a.ingest != nil {
		a.ingest.Start(ctx)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.l.Info("app.consumer_started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("app.http_start", applogger.Error(err))
		a.shutdown()
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("app.shutdown_signal")
	case err := <-a.httpServer.Err():
		a.l.Error("app.http_failed", applogger.Error(err))
		runErr = err
	}
	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown order: HTTP server, consumer, ingest buffer.
func (a *App) shutdown() error {
	var errs []error
	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.l.Error("app.http_shutdown", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), consumerStopTimeout)
		defer cancel()
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("app.consumer_stop", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.ingest != nil {
		a.ingest.Stop()
	}
	a.l.Info("app.shutdown_complete")
	return errors.Join(errs...)
}
