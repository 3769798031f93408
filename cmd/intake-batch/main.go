package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/freight-intake/constants"
	"github.com/joseph-ayodele/freight-intake/internal/app"
	"github.com/joseph-ayodele/freight-intake/internal/core/async"
	"github.com/joseph-ayodele/freight-intake/internal/entity"
	"github.com/joseph-ayodele/freight-intake/internal/ingest"
)

func main() {
	var (
		dir        = flag.String("dir", "", "root directory to ingest (required)")
		skipHidden = flag.Bool("skip-hidden", true, "skip dotfiles and dot-directories")
		watch      = flag.Bool("watch", false, "keep watching the directory for new files after the initial pass")
		debounce   = flag.Duration("debounce", 500*time.Millisecond, "coalesce write bursts per file in watch mode")
		summary    = flag.String("summary", "", "write an XLSX summary of recent intakes here when done")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *dir == "" {
		logger.Error("missing -dir")
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithResultFunc(func(job async.Job, rec *entity.AggregatedRecord, err error) {
			if err != nil {
				logger.Error("intake processing failed", "intake_id", job.IntakeID, "error", err)
				return
			}
			logger.Info("intake processed",
				"intake_id", job.IntakeID,
				"documents", rec.Metadata.DocumentCount,
				"confidence", rec.Metadata.Confidence,
				"wait_ms", time.Since(job.SubmittedAt).Milliseconds(),
			)
		}),
	)

	fsi := ingest.NewFSIngestor(a.Processor, constants.SourceChannelBatch, logger)
	start := time.Now()
	results, touched, stats, err := fsi.IngestDirectory(ctx, *dir, *skipHidden)
	if err != nil {
		logger.Error("ingest failed", "error", err)
	}
	for _, r := range results {
		if r.Err != "" {
			logger.Warn("file failed", "path", r.SourcePath, "error", r.Err)
		}
	}
	logger.Info("ingest complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
		"intakes", stats.Intakes,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	for _, id := range touched {
		if err := queue.Enqueue(ctx, async.Job{IntakeID: id}); err != nil {
			logger.Error("enqueue failed", "intake_id", id, "error", err)
		}
	}

	if *watch {
		if err := watchLoop(ctx, *dir, *debounce, fsi, a, queue, logger); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watcher stopped", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	queue.Shutdown(shutdownCtx)

	if *summary != "" {
		b, err := a.Exporter.ExportSummaryXLSX(shutdownCtx, 500)
		if err != nil {
			logger.Error("summary export failed", "error", err)
			return
		}
		if err := os.WriteFile(*summary, b, 0o644); err != nil {
			logger.Error("write summary failed", "path", *summary, "error", err)
			return
		}
		logger.Info("summary written", "path", *summary, "bytes", len(b))
	}
}

// watchLoop submits new files as they land, keeping one intake per group for the
// lifetime of the process.
func watchLoop(ctx context.Context, root string, debounce time.Duration, fsi *ingest.FSIngestor, a *app.App, q async.Queue, logger *slog.Logger) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:    []string{root},
		Debounce: debounce,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	logger.Info("watching for new files", "root", root)

	groups := map[string]uuid.UUID{}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return ctx.Err()
			}
			logger.Warn("watch error", "error", err)
		case path, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			key := ingest.GroupKey(root, path)
			id, seen := groups[key]
			if !seen {
				in, err := a.Processor.CreateIntake(ctx, constants.SourceChannelBatch)
				if err != nil {
					logger.Error("create intake failed", "group", key, "error", err)
					continue
				}
				id = in.ID
				groups[key] = id
			}
			res, err := fsi.IngestPath(ctx, id, path)
			if err != nil {
				logger.Warn("file failed", "path", path, "error", err)
				continue
			}
			if res.Deduplicated {
				logger.Info("duplicate skipped", "path", path, "message", res.Message)
				continue
			}
			if err := q.Enqueue(ctx, async.Job{IntakeID: id}); err != nil {
				return err
			}
		}
	}
}
