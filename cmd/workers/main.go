package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"farmfund/funding-portal/funding-portal-backend/internal/app"
	"farmfund/funding-portal/funding-portal-backend/internal/config"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/settlement"
	"farmfund/funding-portal/funding-portal-backend/internal/store"
	"farmfund/funding-portal/funding-portal-backend/pkg/storage"
)

const jobTimeout = 10 * time.Minute

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.String("once", "", "run a single job (reconcile, backup, overdue) and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	platform, err := app.Build(ctx, cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to build platform", zap.Error(err))
	}
	defer platform.Close(context.Background())

	jobs, err := buildJobs(ctx, platform)
	if err != nil {
		logger.Fatal("Failed to configure jobs", zap.Error(err))
	}

	scheduler := NewScheduler(logger.Named("scheduler"), jobTimeout)
	if *once != "" {
		job, ok := jobs[*once]
		if !ok {
			logger.Fatal("Unknown or disabled job", zap.String("job", *once))
		}
		if err := scheduler.runJob(ctx, *once, job); err != nil {
			os.Exit(1)
		}
		return
	}

	schedules := map[string]string{
		"reconcile": cfg.Worker.ReconcileSchedule,
		"backup":    cfg.Worker.BackupSchedule,
		"overdue":   cfg.Worker.OverdueSchedule,
	}
	for name, job := range jobs {
		if err := scheduler.Add(ctx, name, schedules[name], job); err != nil {
			logger.Fatal("Failed to schedule job", zap.Error(err))
		}
	}

	logger.Info("Workers starting")
	scheduler.Start(ctx)
	logger.Info("Workers stopped")
}

// buildJobs wires each job to the platform. The backup job exists only when a bucket is configured.
func buildJobs(ctx context.Context, p *app.Platform) (map[string]Job, error) {
	cfg := p.Config.Worker
	jobs := map[string]Job{
		"reconcile": NewReconcileWorker(
			settlement.NewReconciler(p.Orchestrator, cfg.StaleAfter.Duration),
			p.Reports,
			p.Logger.Named("reconcile"),
		),
		"overdue": NewOverdueWorker(p.Reports, p.Logger.Named("overdue")),
	}

	if cfg.BackupBucket == "" {
		p.Logger.Info("Snapshot backups disabled; no bucket configured")
		return jobs, nil
	}
	s3Client, err := storage.NewS3Client(ctx, storage.S3Config{
		Bucket:   cfg.BackupBucket,
		Region:   p.Config.Notifications.AWSRegion,
		Endpoint: cfg.S3Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("configure s3: %w", err)
	}
	jobs["backup"] = NewBackupWorker(
		store.NewBackup(p.Repository, s3Client, cfg.BackupPrefix, p.Logger.Named("backup")),
		p.Logger.Named("backup"),
	)
	return jobs, nil
}
