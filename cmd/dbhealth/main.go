package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/freight-intake/internal/app"
	repo "github.com/joseph-ayodele/freight-intake/internal/repository"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	db, err := repo.Open(ctx, repo.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		log.Fatalf("opening DB: %v", err)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, 1*time.Second, logger); err != nil {
		log.Fatalf("DB health: FAIL (%v)", err)
	}
	log.Printf("DB health: OK (%s)", db.Dialect)

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	intakes, err := repo.NewIntakeRepository(db, logger).List(ctx, 10)
	if err != nil {
		log.Fatalf("listing intakes: %v", err)
	}
	log.Printf("recent intakes: %d", len(intakes))
	for _, in := range intakes {
		log.Printf("- %s [%s] docs=%d/%d created=%s", in.ID, in.Status, in.ProcessedDocuments, in.TotalDocuments, in.CreatedAt.Format(time.RFC3339))
	}
}
