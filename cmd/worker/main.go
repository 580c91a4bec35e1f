package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/akarpov/docsync/internal/audit"
	"github.com/akarpov/docsync/internal/config"
	"github.com/akarpov/docsync/internal/convert"
	"github.com/akarpov/docsync/internal/database"
	"github.com/akarpov/docsync/internal/file"
	"github.com/akarpov/docsync/internal/index"
	"github.com/akarpov/docsync/internal/queue"
	"github.com/akarpov/docsync/internal/queue/workers"
	"github.com/akarpov/docsync/internal/route"
	"github.com/akarpov/docsync/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := storage.NewS3Storage(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to set up object storage", "error", err)
		os.Exit(1)
	}
	idx := index.NewOpenAIIndex(cfg.Index.OpenAIKey, cfg.Index.Timeout)
	converter := convert.New(cfg.Converter)

	routeRepo := route.NewPgRepository(db)
	resolver := route.NewResolver(routeRepo)
	auditSvc := audit.NewService(db)
	fileRepo := file.NewPgRepository(db)
	fileSvc := file.NewService(
		fileRepo, store, idx, converter, resolver, auditSvc,
		cfg.Storage.Bucket, cfg.Upload.MaxFileSize, cfg.Upload.ScratchDir,
	)
	processor := file.NewEventProcessor(fileRepo, store, resolver, auditSvc)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			"default": 1,
		},
	})

	registry := queue.NewHandlersRegistry()

	uploadWorker := workers.NewUploadWorker(fileRepo, fileSvc, cfg.Workers.BatchSize)
	indexingWorker := workers.NewIndexingWorker(fileRepo, idx, cfg.Workers.IndexingBatch)
	deleteWorker := workers.NewDeleteWorker(fileRepo, fileSvc, cfg.Workers.BatchSize)
	sweepWorker := workers.NewSweepWorker(
		routeRepo, store, processor,
		cfg.Workers.SweepLookback, cfg.Workers.SweepBatchSize, cfg.Workers.SweepRatePerSec,
	)

	registry.Register(queue.TypeUploadSync, asynq.HandlerFunc(uploadWorker.ProcessTask))
	registry.Register(queue.TypeIndexingPoll, asynq.HandlerFunc(indexingWorker.ProcessTask))
	registry.Register(queue.TypeDeleteSweep, asynq.HandlerFunc(deleteWorker.ProcessTask))
	registry.Register(queue.TypeStorageSweep, asynq.HandlerFunc(sweepWorker.ProcessTask))

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	entries := []struct {
		spec     string
		taskType string
		timeout  time.Duration
		stagger  time.Duration
	}{
		{every(cfg.Workers.UploadInterval), queue.TypeUploadSync, 10 * time.Minute, 0},
		{every(cfg.Workers.IndexingInterval), queue.TypeIndexingPoll, 5 * time.Minute, 30 * time.Second},
		{every(cfg.Workers.DeleteInterval), queue.TypeDeleteSweep, 10 * time.Minute, time.Minute},
		{cfg.Workers.SweepCron, queue.TypeStorageSweep, 30 * time.Minute, 90 * time.Second},
	}
	for _, e := range entries {
		// Unique keeps overlapping schedules from stacking the same pass;
		// the staggered offsets keep the passes from all firing at once.
		_, err := scheduler.Register(e.spec, asynq.NewTask(e.taskType, nil),
			asynq.Unique(e.timeout), asynq.Timeout(e.timeout), asynq.MaxRetry(1),
			asynq.ProcessIn(e.stagger))
		if err != nil {
			slog.Error("failed to register scheduled task", "task", e.taskType, "error", err)
			os.Exit(1)
		}
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			slog.Error("scheduler error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("starting worker",
		"upload_interval", cfg.Workers.UploadInterval,
		"indexing_interval", cfg.Workers.IndexingInterval,
		"delete_interval", cfg.Workers.DeleteInterval,
		"sweep_cron", cfg.Workers.SweepCron,
	)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
