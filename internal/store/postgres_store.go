package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const defaultSnapshotKey = "platform"

// snapshotRow holds the whole document in a jsonb column
type snapshotRow struct {
	Key       string         `gorm:"primaryKey;size:64"`
	Document  datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (snapshotRow) TableName() string { return "platform_snapshots" }

// PostgresStore keeps the snapshot document in a single Postgres row
type PostgresStore struct {
	db  *gorm.DB
	key string
}

// ConnectPostgres opens a gorm connection and verifies it with a ping
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore migrates the snapshot table and returns a store bound to it
func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot table: %w", err)
	}
	return &PostgresStore{db: db, key: defaultSnapshotKey}, nil
}

func (p *PostgresStore) Load(ctx context.Context) (*financing.Snapshot, error) {
	var row snapshotRow
	err := p.db.WithContext(ctx).First(&row, "key = ?", p.key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return financing.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot row: %w", err)
	}
	return DecodeSnapshot(row.Document)
}

func (p *PostgresStore) Save(ctx context.Context, snapshot *financing.Snapshot) error {
	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	row := snapshotRow{Key: p.key, Document: datatypes.JSON(data), UpdatedAt: time.Now().UTC()}
	if err := p.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("save snapshot row: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
