package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/insights/internal/config"
	"example.com/insights/internal/consumer"
	"example.com/insights/internal/events"
	persistence "example.com/insights/internal/persistence/postgres"
	"example.com/insights/internal/tracker"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	track := tracker.New(repo, tracker.WithMaxDuration(cfg.MaxDurationSeconds()))

	registry := consumer.NewRegistry(nil)
	registry.Register(events.TypeWindowChanged, consumer.NewWindowHandler(track))
	registry.Register(events.TypeUsageRecorded, consumer.NewUsageHandler(repo, track))
	registry.Register(events.TypeSamplingAnswered, consumer.NewSamplingHandler(repo))
	registry.Register(events.TypeInputAggregated, consumer.NewInputHandler(repo))

	// A single reader over all observation topics keeps exactly one message
	// in flight, which is what lets the tracker run lock-free.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		GroupTopics:     cfg.ConsumerTopics,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})

	proc := consumer.NewProcessor(reader, registry)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("consumer metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer reader.Close()

		log.Printf("consumer started (topics=%v, group=%s)", cfg.ConsumerTopics, cfg.ConsumerGroupID)
		if err := proc.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("consumer stopped with error: %v", err)
		}
	}()

	<-stop
	log.Println("consumer shutdown requested")
	cancel()
	<-done

	// Close the open interval so a restart does not inherit a stale one. The
	// processing loop has exited, so this is the only writer.
	finalizeCtx, finalizeCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer finalizeCancel()
	if err := track.Finalize(finalizeCtx); err != nil {
		log.Printf("finalize on shutdown failed: %v", err)
	}

	if err := metricsSrv.Shutdown(finalizeCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}
