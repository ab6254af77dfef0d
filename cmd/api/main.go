package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/avoronov/compliance-kb/internal/adapters/http"
	mcpadapter "github.com/avoronov/compliance-kb/internal/adapters/mcp"
	"github.com/avoronov/compliance-kb/internal/bootstrap"
	"github.com/avoronov/compliance-kb/internal/config"
	"github.com/avoronov/compliance-kb/internal/observability/logging"
	"github.com/avoronov/compliance-kb/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	mcpMode := flag.Bool("mcp", false, "serve the MCP tools over stdio instead of HTTP")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logging.Setup("ckb-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.NewWithOptions(ctx, cfg, bootstrap.Options{
		BreakerStateListener: func(operation, from, to string) {
			httpMetrics.RecordBreakerTransition(serviceName, operation, from, to)
		},
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Refresher.Run(gctx, cfg.CorpusRefreshInterval)
	})
	g.Go(func() error {
		// Fan-out reload signal from the worker; the interval reload
		// above covers lost events.
		return app.Queue.SubscribeDocumentProcessed(gctx, func(eventCtx context.Context, _ string) error {
			return app.Refresher.Load(eventCtx)
		})
	})

	if *mcpMode {
		// Stdio transport: the MCP host owns the process lifetime and
		// stdout carries the protocol, so no HTTP or metrics endpoint.
		g.Go(func() error {
			return mcpadapter.NewServer(app.AskUC, app.Retriever).Serve(gctx)
		})
	} else {
		httpMetrics.RegisterCacheGauges(serviceName, func() (int, float64) {
			stats := app.AskUC.CacheStats()
			return stats.Entries, stats.HitRate
		})

		router := httpadapter.NewRouterWithOptions(cfg, app.IngestUC, app.AskUC, app.Repo, httpadapter.RouterOptions{
			Metrics: httpMetrics,
		})
		server := &http.Server{
			Addr:         ":" + cfg.APIPort,
			Handler:      router.Handler(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error {
			slog.Info("api_listening", "port", cfg.APIPort)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("api_terminated", "error", err)
		app.Close()
		os.Exit(1)
	}
}
