package calculation

import (
	"math"
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/ledger"
)

// Policy holds the settlement constants applied to every investment and microloan
type Policy struct {
	EscrowReleaseDelay   time.Duration `json:"escrow_release_delay"`
	EscrowCancelAfter    time.Duration `json:"escrow_cancel_after"`
	TrustLimitMultiplier int64         `json:"trust_limit_multiplier"`
	TokenRatio           int64         `json:"token_ratio"`
	MicroloanGraceDays   int           `json:"microloan_grace_days"`
	ReserveXRP           int64         `json:"reserve_xrp"`
}

// DefaultPolicy returns the platform defaults: two-minute release, 10x trust
// headroom, tokens minted 1:1 and a seven-day microloan grace period.
func DefaultPolicy() Policy {
	return Policy{
		EscrowReleaseDelay:   120 * time.Second,
		EscrowCancelAfter:    30 * 24 * time.Hour,
		TrustLimitMultiplier: 10,
		TokenRatio:           1,
		MicroloanGraceDays:   7,
		ReserveXRP:           2,
	}
}

// Engine derives the ledger parameters of investments and microloans
type Engine struct {
	policy    Policy
	validator *Validator
}

// CalculationStep records one derivation for statements and audit logs
type CalculationStep struct {
	StepNumber int            `json:"step_number"`
	Name       string         `json:"name"`
	Formula    string         `json:"formula"`
	Inputs     map[string]any `json:"inputs"`
	Outputs    map[string]any `json:"outputs"`
}

// InvestmentTerms are the lock window and token amounts for one investment
type InvestmentTerms struct {
	Amount       int64             `json:"amount"`
	TokenAmount  int64             `json:"token_amount"`
	TrustLimit   int64             `json:"trust_limit"`
	ReleaseAfter time.Time         `json:"release_after"`
	CancelAfter  *time.Time        `json:"cancel_after"`
	Steps        []CalculationStep `json:"steps"`
}

// MicroloanTerms are the lock window and balance requirement for one microloan
type MicroloanTerms struct {
	LoanAmount    int64             `json:"loan_amount"`
	RepaymentDays int               `json:"repayment_days"`
	ReleaseAfter  time.Time         `json:"release_after"`
	CancelAfter   time.Time         `json:"cancel_after"`
	RequiredDrops int64             `json:"required_drops"`
	Steps         []CalculationStep `json:"steps"`
}

// NewEngine creates a new settlement terms engine. Unset policy fields take defaults.
func NewEngine(policy Policy) *Engine {
	defaults := DefaultPolicy()
	if policy.EscrowReleaseDelay <= 0 {
		policy.EscrowReleaseDelay = defaults.EscrowReleaseDelay
	}
	if policy.EscrowCancelAfter <= policy.EscrowReleaseDelay {
		policy.EscrowCancelAfter = defaults.EscrowCancelAfter
	}
	if policy.TrustLimitMultiplier <= 0 {
		policy.TrustLimitMultiplier = defaults.TrustLimitMultiplier
	}
	if policy.TokenRatio <= 0 {
		policy.TokenRatio = defaults.TokenRatio
	}
	if policy.MicroloanGraceDays <= 0 {
		policy.MicroloanGraceDays = defaults.MicroloanGraceDays
	}
	if policy.ReserveXRP < 0 {
		policy.ReserveXRP = defaults.ReserveXRP
	}

	return &Engine{
		policy:    policy,
		validator: NewValidator(),
	}
}

// Policy returns the effective policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Validator returns the request validator shared by the engine
func (e *Engine) Validator() *Validator {
	return e.validator
}

// InvestmentTerms computes the fund lock window, trust limit and token amount for amount XRP
func (e *Engine) InvestmentTerms(amount int64, now time.Time) (*InvestmentTerms, error) {
	if err := e.validator.ValidateAmount("amount", amount); err != nil {
		return nil, err
	}
	if amount > math.MaxInt64/e.policy.TrustLimitMultiplier ||
		amount > math.MaxInt64/e.policy.TokenRatio ||
		amount > math.MaxInt64/ledger.DropsPerXRP {
		return nil, financing.InvalidInput("amount %d is too large", amount)
	}

	terms := &InvestmentTerms{
		Amount:       amount,
		TokenAmount:  amount * e.policy.TokenRatio,
		TrustLimit:   amount * e.policy.TrustLimitMultiplier,
		ReleaseAfter: now.Add(e.policy.EscrowReleaseDelay),
	}
	cancelAfter := now.Add(e.policy.EscrowCancelAfter)
	terms.CancelAfter = &cancelAfter

	terms.Steps = []CalculationStep{
		{
			StepNumber: 1,
			Name:       "fund_lock_window",
			Formula:    "release_after = now + release_delay; cancel_after = now + cancel_after",
			Inputs:     map[string]any{"release_delay": e.policy.EscrowReleaseDelay.String(), "cancel_after": e.policy.EscrowCancelAfter.String()},
			Outputs:    map[string]any{"release_after": terms.ReleaseAfter, "cancel_after": cancelAfter},
		},
		{
			StepNumber: 2,
			Name:       "trust_limit",
			Formula:    "limit = amount * multiplier",
			Inputs:     map[string]any{"amount": amount, "multiplier": e.policy.TrustLimitMultiplier},
			Outputs:    map[string]any{"trust_limit": terms.TrustLimit},
		},
		{
			StepNumber: 3,
			Name:       "token_amount",
			Formula:    "tokens = amount * ratio",
			Inputs:     map[string]any{"amount": amount, "ratio": e.policy.TokenRatio},
			Outputs:    map[string]any{"token_amount": terms.TokenAmount},
		},
	}
	return terms, nil
}

// MicroloanTerms computes the repayment window and the balance the investor must hold
func (e *Engine) MicroloanTerms(amount int64, repaymentDays int, now time.Time) (*MicroloanTerms, error) {
	if err := e.validator.ValidateAmount("loan_amount", amount); err != nil {
		return nil, err
	}
	if err := e.validator.ValidateRepaymentDays(repaymentDays); err != nil {
		return nil, err
	}
	if amount > math.MaxInt64/ledger.DropsPerXRP-e.policy.ReserveXRP {
		return nil, financing.InvalidInput("loan_amount %d is too large", amount)
	}

	day := 24 * time.Hour
	terms := &MicroloanTerms{
		LoanAmount:    amount,
		RepaymentDays: repaymentDays,
		ReleaseAfter:  now.Add(time.Duration(repaymentDays) * day),
		CancelAfter:   now.Add(time.Duration(repaymentDays+e.policy.MicroloanGraceDays) * day),
		RequiredDrops: ledger.XRPToDrops(amount + e.policy.ReserveXRP),
	}

	terms.Steps = []CalculationStep{
		{
			StepNumber: 1,
			Name:       "repayment_window",
			Formula:    "release_after = now + days; cancel_after = release_after + grace_days",
			Inputs:     map[string]any{"repayment_days": repaymentDays, "grace_days": e.policy.MicroloanGraceDays},
			Outputs:    map[string]any{"release_after": terms.ReleaseAfter, "cancel_after": terms.CancelAfter},
		},
		{
			StepNumber: 2,
			Name:       "required_balance",
			Formula:    "required = (loan_amount + reserve) * 1e6 drops",
			Inputs:     map[string]any{"loan_amount": amount, "reserve_xrp": e.policy.ReserveXRP},
			Outputs:    map[string]any{"required_drops": terms.RequiredDrops},
		},
	}
	return terms, nil
}

// Covers reports whether a balance in drops can fund the loan and keep the reserve
func (t *MicroloanTerms) Covers(balanceDrops int64) bool {
	return balanceDrops >= t.RequiredDrops
}
