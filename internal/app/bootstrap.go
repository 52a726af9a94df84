package app

import (
	"context"
	"errors"
	"fmt"

	"farmfund/funding-portal/funding-portal-backend/internal/config"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/calculation"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/ledger"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/settlement"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/tokenization"
	"farmfund/funding-portal/funding-portal-backend/internal/notifications"
	"farmfund/funding-portal/funding-portal-backend/internal/notifications/websocket"
	"farmfund/funding-portal/funding-portal-backend/internal/reports"
	"farmfund/funding-portal/funding-portal-backend/internal/store"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Platform is the wired object graph shared by the API server and the workers
type Platform struct {
	Config       *config.Config
	Logger       *zap.Logger
	Repository   *store.Repository
	Ledger       ledger.Client
	Engine       *calculation.Engine
	Orchestrator *settlement.Orchestrator
	Tokenization *tokenization.Service
	Reports      *reports.Service
	Events       *notifications.Service
	WebSocket    *websocket.Manager

	closers []func(context.Context) error
}

// NewLogger builds the process logger from the logging section
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

// Build connects every backend named by cfg and wires the services.
// withWebSocket adds the in-process websocket event stream.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, withWebSocket bool) (*Platform, error) {
	p := &Platform{Config: cfg, Logger: logger}

	snapshots, err := p.openStore(ctx)
	if err != nil {
		p.Close(ctx)
		return nil, err
	}

	var locker, sagaLocker store.Locker
	if cfg.Store.RedisURL != "" {
		client, err := store.ConnectRedis(ctx, cfg.Store.RedisURL)
		if err != nil {
			p.Close(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		p.closers = append(p.closers, func(context.Context) error { return client.Close() })
		locker = store.NewRedisLocker(client, "", cfg.Store.LockTTL.Duration)
		sagaLocker = store.NewRedisLocker(client, "funding-portal:saga-lock", cfg.Store.SagaLockTTL.Duration)
		logger.Info("Using redis snapshot and saga locks")
	}
	p.Repository = store.NewRepository(snapshots, locker, logger.Named("store"))

	p.Ledger, err = p.openLedger()
	if err != nil {
		p.Close(ctx)
		return nil, err
	}

	var channels []notifications.Publisher
	if withWebSocket {
		p.WebSocket = websocket.NewManager(logger.Named("ws"))
		channels = append(channels, p.WebSocket)
		p.closers = append(p.closers, func(context.Context) error { p.WebSocket.Close(); return nil })
	}
	if cfg.Notifications.SNSTopicARN != "" {
		snsPublisher, err := notifications.NewSNSPublisherFromEnv(ctx, cfg.Notifications.AWSRegion, cfg.Notifications.SNSTopicARN)
		if err != nil {
			p.Close(ctx)
			return nil, fmt.Errorf("configure sns: %w", err)
		}
		channels = append(channels, snsPublisher)
	}
	p.Events = notifications.NewService(logger.Named("events"), channels...)

	p.Engine = calculation.NewEngine(calculation.Policy{
		EscrowReleaseDelay:   cfg.Settlement.EscrowReleaseDelay.Duration,
		EscrowCancelAfter:    cfg.Settlement.EscrowCancelAfter.Duration,
		TrustLimitMultiplier: cfg.Settlement.TrustLimitMultiplier,
		TokenRatio:           cfg.Settlement.TokenRatio,
		MicroloanGraceDays:   cfg.Settlement.MicroloanGraceDays,
		ReserveXRP:           cfg.Settlement.ReserveXRP,
	})
	p.Orchestrator = settlement.NewOrchestrator(p.Repository, p.Ledger, p.Engine, p.Events, logger.Named("settlement"),
		settlement.WithLedgerTimeout(cfg.Ledger.OperationTimeout.Duration),
		settlement.WithSagaLocker(sagaLocker))
	p.Tokenization = tokenization.NewService(p.Ledger, p.Engine.Validator(), logger.Named("tokenization"), cfg.Ledger.OperationTimeout.Duration)
	p.Reports = reports.NewService(p.Orchestrator, p.Engine, cfg.Worker.SummaryCacheTTL.Duration, logger.Named("reports"))

	logger.Info("Platform ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("ledger", cfg.Ledger.Mode),
		zap.Int("event_channels", p.Events.Channels()),
	)
	return p, nil
}

func (p *Platform) openStore(ctx context.Context) (store.Store, error) {
	cfg := p.Config.Store
	switch cfg.Driver {
	case "memory":
		p.Logger.Warn("Using in-memory store; state is lost on exit")
		return store.NewMemoryStore(), nil
	case "file":
		return store.NewFileStore(cfg.Path)
	case "postgres":
		db, err := store.ConnectPostgres(cfg.Database.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg, err := store.NewPostgresStore(db)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, pg.Close)
		return pg, nil
	case "mongo":
		m, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		p.closers = append(p.closers, m.Close)
		return m, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func (p *Platform) openLedger() (ledger.Client, error) {
	cfg := p.Config.Ledger
	if cfg.Mode == "simulated" {
		p.Logger.Warn("Using simulated ledger")
		return ledger.NewSimulated(nil), nil
	}
	return ledger.NewXRPLClient(&ledger.XRPLConfig{
		RPCURL:              cfg.RPCURL,
		FaucetURL:           cfg.FaucetURL,
		RequestTimeout:      cfg.RequestTimeout.Duration,
		ConfirmationTimeout: cfg.ConfirmationTimeout.Duration,
		PollInterval:        cfg.PollInterval.Duration,
		LastLedgerOffset:    cfg.LastLedgerOffset,
		MaxFeeDrops:         cfg.MaxFeeDrops,
	}, p.Logger.Named("xrpl"))
}

// Close releases backend connections in reverse order of opening
func (p *Platform) Close(ctx context.Context) error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
