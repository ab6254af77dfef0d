package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avoronov/compliance-kb/internal/bootstrap"
	"github.com/avoronov/compliance-kb/internal/config"
	"github.com/avoronov/compliance-kb/internal/observability/logging"
	"github.com/avoronov/compliance-kb/internal/observability/metrics"
)

const (
	serviceName    = "worker"
	processTimeout = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logging.Setup("ckb-worker", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.NewWithOptions(ctx, cfg, bootstrap.Options{
		BreakerStateListener: func(operation, from, to string) {
			slog.Warn("breaker_transition", "operation", operation, "from", from, "to", to)
		},
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	metricsServer := &http.Server{
		Addr:        ":" + cfg.WorkerMetricsPort,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
		return app.Queue.SubscribeDocumentIngested(gctx, func(handlerCtx context.Context, documentID string) error {
			return processDocument(handlerCtx, app, workerMetrics, documentID)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker_terminated", "error", err)
		app.Close()
		os.Exit(1)
	}
}

func processDocument(ctx context.Context, app *bootstrap.App, m *metrics.WorkerMetrics, documentID string) error {
	processCtx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	if doc, err := app.Repo.GetByID(processCtx, documentID); err == nil {
		m.ObserveQueueLag(serviceName, time.Since(doc.CreatedAt))
	}

	m.StartDocument()
	start := time.Now()
	processErr := app.ProcessUC.ProcessByID(processCtx, documentID)
	m.FinishDocument(serviceName, time.Since(start), processErr)
	if processErr != nil {
		return processErr
	}

	if doc, err := app.Repo.GetByID(processCtx, documentID); err == nil {
		m.AddPassagesIndexed(serviceName, doc.PassageCount)
	}

	// Tell the query-serving replicas to reload their corpus now
	// instead of waiting out the scheduled refresh; their interval
	// reload covers a lost event.
	if err := app.Queue.PublishDocumentProcessed(processCtx, documentID); err != nil {
		slog.Warn("processed_event_publish_failed", "document_id", documentID, "error", err)
	}
	return nil
}
