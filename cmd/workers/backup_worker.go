package main

import (
	"context"

	"go.uber.org/zap"
)

// SnapshotBackup uploads one copy of the platform snapshot
type SnapshotBackup interface {
	Run(ctx context.Context) (string, error)
}

// BackupWorker copies the snapshot to object storage
type BackupWorker struct {
	backup SnapshotBackup
	logger *zap.Logger
}

func NewBackupWorker(backup SnapshotBackup, logger *zap.Logger) *BackupWorker {
	return &BackupWorker{backup: backup, logger: logger}
}

func (w *BackupWorker) Run(ctx context.Context) error {
	location, err := w.backup.Run(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("Snapshot backed up", zap.String("location", location))
	return nil
}
