package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/memento/internal/config"
	"github.com/example/memento/internal/dispatch"
	"github.com/example/memento/internal/domain/rental"
	"github.com/example/memento/internal/infrastructure/kafka"
	"github.com/example/memento/internal/infrastructure/store"
	"github.com/example/memento/internal/memento"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cfg config.Worker
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("[Worker] Failed to load configuration: %v", err)
	}

	log.Println("[Worker] ========================================")
	log.Println("[Worker] Memento Capture Worker")
	log.Println("[Worker] ========================================")
	log.Printf("[Worker] Store: %s", cfg.Store.Backend)
	log.Printf("[Worker] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[Worker] Topic: %s", cfg.CaptureTopic)
	log.Printf("[Worker] Group: %s", cfg.ConsumerGroup)

	snapshots, err := store.NewStoreFromConfig(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("[Worker] Failed to initialize snapshot store: %v", err)
	}
	if closer, ok := snapshots.(io.Closer); ok {
		defer closer.Close()
	}

	registry := memento.NewRegistry()
	if err := rental.RegisterTypes(registry); err != nil {
		log.Fatalf("[Worker] Failed to register types: %v", err)
	}

	// The worker has no row store; agreements are rehydrated from their
	// latest snapshot before re-capture.
	hydrator := rental.NewHydrator(registry, snapshots)

	worker := dispatch.NewWorker()
	worker.RegisterCapture(rental.AgreementType, hydrator.CaptureSubject)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.CaptureTopic, cfg.ConsumerGroup)
	defer consumer.Close()

	go func() {
		log.Println("[Worker] Starting capture request consumer...")
		if err := consumer.Consume(ctx, worker.HandleRequest); err != nil && ctx.Err() == nil {
			log.Printf("[Worker] Consumer error: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		log.Printf("[Worker] Metrics on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[Worker] Metrics server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Worker] Shutting down...")
	cancel()
	metricsServer.Close()
}
