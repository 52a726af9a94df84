package store

import (
	"context"
	"sync"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"go.uber.org/zap"
)

// Repository is the single critical section around the snapshot.
// Update holds the process mutex, and the optional cross-process locker,
// for the whole load, mutate and save sequence.
type Repository struct {
	store  Store
	locker Locker
	logger *zap.Logger
	mu     sync.Mutex
}

func NewRepository(store Store, locker Locker, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		store:  store,
		locker: locker,
		logger: logger,
	}
}

// View loads a private copy of the snapshot and hands it to fn
func (r *Repository) View(ctx context.Context, fn func(*financing.Snapshot) error) error {
	r.mu.Lock()
	snapshot, err := r.store.Load(ctx)
	r.mu.Unlock()
	if err != nil {
		return financing.StoreError("load snapshot", err)
	}
	return fn(snapshot)
}

// Update runs fn against the current snapshot and saves the result.
// If fn returns an error nothing is written and the error is returned unchanged.
func (r *Repository) Update(ctx context.Context, fn func(*financing.Snapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx)
		if err != nil {
			return financing.StoreError("lock snapshot", err)
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				r.logger.Warn("Failed to release snapshot lock", zap.Error(err))
			}
		}()
	}

	snapshot, err := r.store.Load(ctx)
	if err != nil {
		return financing.StoreError("load snapshot", err)
	}
	if err := fn(snapshot); err != nil {
		return err
	}
	if err := r.store.Save(ctx, snapshot); err != nil {
		r.logger.Error("Failed to save snapshot", zap.Error(err))
		return financing.StoreError("save snapshot", err)
	}
	return nil
}

// Snapshot returns a copy of the current state
func (r *Repository) Snapshot(ctx context.Context) (*financing.Snapshot, error) {
	var out *financing.Snapshot
	err := r.View(ctx, func(s *financing.Snapshot) error {
		out = s
		return nil
	})
	return out, err
}
