package notifications

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Publisher delivers settlement events to one channel
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Service fans events out to every configured channel.
// A failing channel is logged and never blocks the others or the caller's saga.
type Service struct {
	channels []Publisher
	logger   *zap.Logger
}

func NewService(logger *zap.Logger, channels ...Publisher) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	var active []Publisher
	for _, ch := range channels {
		if ch != nil {
			active = append(active, ch)
		}
	}
	return &Service{channels: active, logger: logger}
}

// Publish returns the joined channel errors after attempting all channels
func (s *Service) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, ch := range s.channels {
		if err := ch.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish event",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.Type),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Channels returns the number of active channels
func (s *Service) Channels() int { return len(s.channels) }

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
