package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/memento/internal/api"
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

	var cfg config.API
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("[API] Failed to load configuration: %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] Memento Snapshot Service")
	log.Println("[API] ========================================")
	log.Printf("[API] Store: %s", cfg.Store.Backend)
	log.Printf("[API] Kafka: %v", cfg.KafkaBrokers)
	log.Printf("[API] Capture topic: %s", cfg.CaptureTopic)

	snapshots, err := store.NewStoreFromConfig(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("[API] Failed to initialize snapshot store: %v", err)
	}
	if closer, ok := snapshots.(io.Closer); ok {
		defer closer.Close()
	}

	registry := memento.NewRegistry()
	if err := rental.RegisterTypes(registry); err != nil {
		log.Fatalf("[API] Failed to register types: %v", err)
	}

	serializer := memento.NewSerializer(registry, snapshots)
	repo := rental.NewRepository()
	svc := rental.NewService(repo, registry, serializer, snapshots)

	// Deferred captures flow through Kafka and back into this process.
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.CaptureTopic)
	defer producer.Close()
	requester := dispatch.NewRequester(producer)

	worker := dispatch.NewWorker()
	worker.RegisterCapture(rental.AgreementType, svc.CaptureSubject)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.CaptureTopic, cfg.ConsumerGroup)
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("[API] Starting capture request consumer...")
		if err := consumer.Consume(ctx, worker.HandleRequest); err != nil {
			if ctx.Err() == nil {
				log.Printf("[API] Consumer error: %v", err)
			}
		}
	}()

	handlers := api.NewHandlers(svc, requester)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.NewRouter(handlers))

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	wg.Wait()
}
