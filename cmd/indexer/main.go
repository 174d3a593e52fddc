package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/youthdesk/policy-rag/internal/bootstrap"
	"github.com/youthdesk/policy-rag/internal/config"
	"github.com/youthdesk/policy-rag/internal/observability/logging"
	"github.com/youthdesk/policy-rag/internal/observability/metrics"
)

func main() {
	rebuild := flag.Bool("rebuild", false, "reindex every stored policy and exit")
	flag.Parse()

	cfg := config.Load()
	logger := logging.Setup("indexer", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if *rebuild {
		indexed, err := app.IndexUC.ReindexAll(ctx)
		if err != nil {
			log.Fatalf("reindex error after %d policies: %v", indexed, err)
		}
		logger.Info("reindex finished", "indexed", indexed)
		return
	}

	indexerMetrics := metrics.NewIndexerMetrics("indexer")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.IndexerMetricsPort,
		Handler: indexerMetrics.Handler(),
	}
	go func() {
		logger.Info("indexer metrics listening", "port", cfg.IndexerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("indexer subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribePolicyCollected(ctx, func(handlerCtx context.Context, policyID string) error {
		indexCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		if rec, err := app.Repo.GetByID(indexCtx, policyID); err == nil {
			indexerMetrics.ObserveQueueLag("indexer", time.Since(rec.CollectedAt))
		}

		indexerMetrics.StartPolicy()
		start := time.Now()
		indexErr := app.IndexUC.IndexByID(indexCtx, policyID)
		indexerMetrics.FinishPolicy("indexer", time.Since(start), indexErr)
		return indexErr
	})
	if err != nil {
		log.Fatalf("indexer subscribe error: %v", err)
	}
}
