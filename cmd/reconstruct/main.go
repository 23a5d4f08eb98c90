// Command reconstruct runs the batch derivation passes once and exits. It is
// intended to be scheduled (cron, CI job) or run by hand after importing a
// legacy usage log.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/insights/internal/config"
	"example.com/insights/internal/observability"
	persistence "example.com/insights/internal/persistence/postgres"
	"example.com/insights/internal/reconstruct"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("reconstruction interrupted, cancelling")
		cancel()
	}()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	reconstructor := reconstruct.New(repo, reconstruct.WithMaxDuration(cfg.MaxDurationSeconds()))

	started := time.Now()
	result, err := reconstructor.Run(ctx)
	if err != nil {
		log.Fatalf("reconstruction failed: %v", err)
	}

	observability.RecordReconstructionRun(time.Now())
	log.Printf("reconstruction finished in %s (sessions inserted=%d deleted=%d, activities backfilled=%d)",
		time.Since(started).Round(time.Millisecond),
		result.SessionsInserted, result.SessionsDeleted, result.ActivitiesBackfilled)
}
