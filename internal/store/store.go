package store

import (
	"context"
	"encoding/json"
	"fmt"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
)

// Store persists the platform snapshot as one document
type Store interface {
	// Load returns the stored snapshot, or a fresh one when nothing was saved yet
	Load(ctx context.Context) (*financing.Snapshot, error)
	Save(ctx context.Context, snapshot *financing.Snapshot) error
}

// Closer is implemented by stores holding connections
type Closer interface {
	Close(ctx context.Context) error
}

// EncodeSnapshot renders the snapshot in the persisted JSON layout
func EncodeSnapshot(snapshot *financing.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a persisted document and repairs missing sections
func DecodeSnapshot(data []byte) (*financing.Snapshot, error) {
	snapshot := financing.NewSnapshot()
	if len(data) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	snapshot.Normalize()
	return snapshot, nil
}
