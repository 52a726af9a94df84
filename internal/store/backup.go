package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ObjectUploader is the subset of the object storage client the backup needs
type ObjectUploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Backup copies the current snapshot to object storage
type Backup struct {
	repo     *Repository
	uploader ObjectUploader
	prefix   string
	logger   *zap.Logger
	now      func() time.Time
}

func NewBackup(repo *Repository, uploader ObjectUploader, prefix string, logger *zap.Logger) *Backup {
	if prefix == "" {
		prefix = "snapshots"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backup{
		repo:     repo,
		uploader: uploader,
		prefix:   strings.TrimSuffix(prefix, "/"),
		logger:   logger,
		now:      time.Now,
	}
}

// Run uploads snapshots/<timestamp>.json and returns the object location
func (b *Backup) Run(ctx context.Context) (string, error) {
	snapshot, err := b.repo.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s.json", b.prefix, b.now().UTC().Format("20060102T150405Z"))
	location, err := b.uploader.Upload(ctx, key, data, "application/json")
	if err != nil {
		return "", fmt.Errorf("upload snapshot backup: %w", err)
	}

	b.logger.Info("Snapshot backed up",
		zap.String("key", key),
		zap.Int("campaigns", len(snapshot.Campaigns)),
		zap.Int("investments", len(snapshot.Investments)),
		zap.Int("microloans", len(snapshot.Microloans)),
	)
	return location, nil
}
