package settlement

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/calculation"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/ledger"
	"farmfund/funding-portal/funding-portal-backend/internal/notifications"
	"farmfund/funding-portal/funding-portal-backend/internal/store"
)

const defaultLedgerTimeout = 90 * time.Second

// Orchestrator runs the settlement sagas. Every mutating saga performs its
// ledger effect first and commits local state only after the effect succeeded.
// Sagas are serialized by sagaMu, and by the saga locker across instances, so
// the pre-checks and the ledger effect of one saga never interleave with another.
type Orchestrator struct {
	repo          *store.Repository
	ledger        ledger.Client
	engine        *calculation.Engine
	events        notifications.Publisher
	logger        *zap.Logger
	ledgerTimeout time.Duration
	now           func() time.Time

	sagaMu      sync.Mutex
	sagaLocker  store.Locker
	sagaRelease func(context.Context) error
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces time.Now, mostly for tests driving a simulated ledger
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLedgerTimeout bounds every ledger round trip. Expiry surfaces as ledger.ErrTimeout.
func WithLedgerTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.ledgerTimeout = d
		}
	}
}

// WithSagaLocker serializes sagas across every process sharing l. It must not
// share a key with the repository's snapshot locker.
func WithSagaLocker(l store.Locker) Option {
	return func(o *Orchestrator) { o.sagaLocker = l }
}

// NewOrchestrator wires the saga engine. A nil publisher discards events.
func NewOrchestrator(repo *store.Repository, client ledger.Client, engine *calculation.Engine, events notifications.Publisher, logger *zap.Logger, opts ...Option) *Orchestrator {
	if engine == nil {
		engine = calculation.NewEngine(calculation.DefaultPolicy())
	}
	if events == nil {
		events = notifications.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		repo:          repo,
		ledger:        client,
		engine:        engine,
		events:        events,
		logger:        logger,
		ledgerTimeout: defaultLedgerTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Engine exposes the terms engine used for statements and previews
func (o *Orchestrator) Engine() *calculation.Engine { return o.engine }

func (o *Orchestrator) clock() time.Time { return o.now().UTC() }

// ledgerCtx bounds one ledger call
func (o *Orchestrator) ledgerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.ledgerTimeout)
}

// lockSaga must be paired with unlockSaga
func (o *Orchestrator) lockSaga(ctx context.Context) error {
	o.sagaMu.Lock()
	if o.sagaLocker == nil {
		return nil
	}
	release, err := o.sagaLocker.Lock(ctx)
	if err != nil {
		o.sagaMu.Unlock()
		return financing.StoreError("lock saga", err)
	}
	o.sagaRelease = release
	return nil
}

func (o *Orchestrator) unlockSaga() {
	if o.sagaRelease != nil {
		if err := o.sagaRelease(context.Background()); err != nil {
			o.logger.Warn("Failed to release saga lock", zap.Error(err))
		}
		o.sagaRelease = nil
	}
	o.sagaMu.Unlock()
}

// sagaLogger tags every line of one saga run with a correlation id
func (o *Orchestrator) sagaLogger(operation string, fields ...zap.Field) *zap.Logger {
	fields = append([]zap.Field{
		zap.String("saga_id", uuid.New().String()),
		zap.String("operation", operation),
	}, fields...)
	return o.logger.With(fields...)
}

// fail logs the failed step, announces it, and builds the StepError
func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, operation, step string, refs map[string]string, err error) error {
	serr := stepError(operation, step, refs, err)
	fields := []zap.Field{zap.String("step", step), zap.Error(err), zap.Bool("ledger_timeout", ledger.IsTimeout(err))}
	for k, v := range serr.Refs {
		fields = append(fields, zap.String(k, v))
	}
	log.Error("Saga step failed", fields...)

	data := map[string]interface{}{"operation": operation, "step": step, "error": err.Error()}
	for k, v := range serr.Refs {
		data[k] = v
	}
	o.publish(ctx, notifications.NewEvent(notifications.EventSagaStepFailed, operation, data))
	return serr
}

// publish never fails the saga; delivery problems are only logged
func (o *Orchestrator) publish(ctx context.Context, event notifications.Event) {
	if err := o.events.Publish(ctx, event); err != nil {
		o.logger.Warn("Event not delivered", zap.String("event_type", event.Type), zap.Error(err))
	}
}

// =====================================================
// Read side
// =====================================================

// Snapshot returns a copy of the full persisted state
func (o *Orchestrator) Snapshot(ctx context.Context) (*financing.Snapshot, error) {
	return o.repo.Snapshot(ctx)
}

// ListCampaigns returns all campaigns, newest first
func (o *Orchestrator) ListCampaigns(ctx context.Context) ([]financing.Campaign, error) {
	snapshot, err := o.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	campaigns := snapshot.Campaigns
	sort.SliceStable(campaigns, func(i, j int) bool {
		if campaigns[i].CreatedAt.Equal(campaigns[j].CreatedAt) {
			return campaigns[i].ID > campaigns[j].ID
		}
		return campaigns[i].CreatedAt.After(campaigns[j].CreatedAt)
	})
	return campaigns, nil
}

func (o *Orchestrator) GetCampaign(ctx context.Context, id int64) (*financing.Campaign, error) {
	snapshot, err := o.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	campaign := snapshot.FindCampaign(id)
	if campaign == nil {
		return nil, financing.NotFound("campaign", id)
	}
	return campaign, nil
}

// InvestmentFilter narrows ListInvestments; zero fields match everything
type InvestmentFilter struct {
	CampaignID      int64
	InvestorAddress string
	Status          financing.InvestmentStatus
}

func (f InvestmentFilter) matches(inv *financing.Investment) bool {
	if f.CampaignID != 0 && inv.CampaignID != f.CampaignID {
		return false
	}
	if f.InvestorAddress != "" && inv.InvestorAddress != f.InvestorAddress {
		return false
	}
	if f.Status != "" && inv.Status != f.Status {
		return false
	}
	return true
}

func (o *Orchestrator) ListInvestments(ctx context.Context, filter InvestmentFilter) ([]financing.Investment, error) {
	snapshot, err := o.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]financing.Investment, 0, len(snapshot.Investments))
	for i := range snapshot.Investments {
		if filter.matches(&snapshot.Investments[i]) {
			out = append(out, snapshot.Investments[i])
		}
	}
	return out, nil
}

func (o *Orchestrator) GetInvestment(ctx context.Context, id int64) (*financing.Investment, error) {
	snapshot, err := o.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	inv := snapshot.FindInvestment(id)
	if inv == nil {
		return nil, financing.NotFound("investment", id)
	}
	return inv, nil
}

// ListMicroloans returns microloans, optionally only those with status
func (o *Orchestrator) ListMicroloans(ctx context.Context, status financing.MicroloanStatus) ([]financing.Microloan, error) {
	snapshot, err := o.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]financing.Microloan, 0, len(snapshot.Microloans))
	for _, loan := range snapshot.Microloans {
		if status == "" || loan.Status == status {
			out = append(out, loan)
		}
	}
	return out, nil
}

func (o *Orchestrator) GetMicroloan(ctx context.Context, id int64) (*financing.Microloan, error) {
	snapshot, err := o.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	loan := snapshot.FindMicroloan(id)
	if loan == nil {
		return nil, financing.NotFound("microloan", id)
	}
	return loan, nil
}

func idRef(id int64) string { return strconv.FormatInt(id, 10) }

func seqRef(seq uint32) string { return fmt.Sprintf("%d", seq) }
