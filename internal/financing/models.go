package financing

import (
	"time"
)

// CampaignStatus represents the lifecycle status of a funding campaign
type CampaignStatus string

const (
	CampaignStatusPending  CampaignStatus = "pending"
	CampaignStatusApproved CampaignStatus = "approved"
)

// InvestmentStatus mirrors the lifecycle of the fund lock behind an investment
type InvestmentStatus string

const (
	InvestmentStatusLocked    InvestmentStatus = "locked"
	InvestmentStatusSettled   InvestmentStatus = "settled"
	InvestmentStatusReleased  InvestmentStatus = "released"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// MicroloanStatus represents the status of an escrow-backed microloan
type MicroloanStatus string

const (
	MicroloanStatusActive    MicroloanStatus = "active"
	MicroloanStatusCompleted MicroloanStatus = "completed"
	MicroloanStatusCancelled MicroloanStatus = "cancelled"
)

// Campaign represents a farmer's funding campaign
type Campaign struct {
	ID            int64          `json:"id"`
	FarmerName    string         `json:"farmer_name"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	FundingGoal   int64          `json:"funding_goal"` // XRP
	FarmerAddress string         `json:"farmer_address"`
	FarmerSecret  string         `json:"farmer_secret,omitempty"`
	TokenSymbol   *string        `json:"token_symbol"`
	Status        CampaignStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	ApprovedAt    *time.Time     `json:"approved_at,omitempty"`
}

// IsApproved reports whether investments may be made in the campaign
func (c *Campaign) IsApproved() bool {
	return c.Status == CampaignStatusApproved
}

// Investment records an investor's locked funds and the tokens distributed for them.
// The escrow fields are required to finish or cancel the lock on the ledger.
type Investment struct {
	ID              int64  `json:"id"`
	CampaignID      int64  `json:"campaign_id"`
	InvestorAddress string `json:"investor_address"`
	Amount          int64  `json:"amount"` // XRP

	// Fund lock
	EscrowOwner     string     `json:"escrow_owner"`
	EscrowSequence  uint32     `json:"escrow_sequence"`
	EscrowTxHash    string     `json:"escrow_tx_hash"`
	EscrowCondition string     `json:"escrow_condition,omitempty"`
	ReleaseAfter    time.Time  `json:"release_after"`
	CancelAfter     *time.Time `json:"cancel_after,omitempty"`

	// Token distribution
	TokenSymbol   string `json:"token_symbol"`
	TokenAmount   int64  `json:"token_amount"`
	TrustTxHash   string `json:"trust_tx_hash,omitempty"`
	TokenTxHash   string `json:"token_tx_hash,omitempty"`
	FailedStep    string `json:"failed_step,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`

	Status      InvestmentStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	SettledAt   *time.Time       `json:"settled_at,omitempty"`
	ReleasedAt  *time.Time       `json:"released_at,omitempty"`
	CancelledAt *time.Time       `json:"cancelled_at,omitempty"`
}

// IsTerminal reports whether the underlying lock has been finished or cancelled
func (i *Investment) IsTerminal() bool {
	return i.Status == InvestmentStatusReleased || i.Status == InvestmentStatusCancelled
}

// Microloan represents a time-locked loan from an investor to a farmer
type Microloan struct {
	ID              int64           `json:"id"`
	FarmerAddress   string          `json:"farmer_address"`
	InvestorAddress string          `json:"investor_address"`
	LoanAmount      int64           `json:"loan_amount"` // XRP
	RepaymentDays   int             `json:"repayment_days"`
	EscrowOwner     string          `json:"escrow_owner"`
	EscrowSequence  uint32          `json:"escrow_sequence"`
	EscrowTxHash    string          `json:"escrow_tx_hash"`
	ReleaseAfter    time.Time       `json:"release_after"`
	CancelAfter     time.Time       `json:"cancel_after"`
	Status          MicroloanStatus `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
}

// Snapshot is the complete persisted state of the platform
type Snapshot struct {
	Campaigns        []Campaign   `json:"campaigns"`
	Investments      []Investment `json:"investments"`
	Microloans       []Microloan  `json:"microloans"`
	NextCampaignID   int64        `json:"next_campaign_id"`
	NextInvestmentID int64        `json:"next_investment_id"`
	NextMicroloanID  int64        `json:"next_microloan_id"`
}

// NewSnapshot returns an empty snapshot with all counters seeded at 1
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Campaigns:        []Campaign{},
		Investments:      []Investment{},
		Microloans:       []Microloan{},
		NextCampaignID:   1,
		NextInvestmentID: 1,
		NextMicroloanID:  1,
	}
}

// Normalize repairs documents written before microloans existed or with missing counters
func (s *Snapshot) Normalize() {
	if s.Campaigns == nil {
		s.Campaigns = []Campaign{}
	}
	if s.Investments == nil {
		s.Investments = []Investment{}
	}
	if s.Microloans == nil {
		s.Microloans = []Microloan{}
	}
	if s.NextCampaignID < 1 {
		s.NextCampaignID = 1
	}
	if s.NextInvestmentID < 1 {
		s.NextInvestmentID = 1
	}
	if s.NextMicroloanID < 1 {
		s.NextMicroloanID = 1
	}
}

// Clone returns a deep copy so callers can mutate without aliasing the stored state
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Campaigns:        make([]Campaign, len(s.Campaigns)),
		Investments:      make([]Investment, len(s.Investments)),
		Microloans:       make([]Microloan, len(s.Microloans)),
		NextCampaignID:   s.NextCampaignID,
		NextInvestmentID: s.NextInvestmentID,
		NextMicroloanID:  s.NextMicroloanID,
	}
	for i, c := range s.Campaigns {
		if c.TokenSymbol != nil {
			sym := *c.TokenSymbol
			c.TokenSymbol = &sym
		}
		c.ApprovedAt = cloneTime(c.ApprovedAt)
		out.Campaigns[i] = c
	}
	for i, inv := range s.Investments {
		inv.CancelAfter = cloneTime(inv.CancelAfter)
		inv.SettledAt = cloneTime(inv.SettledAt)
		inv.ReleasedAt = cloneTime(inv.ReleasedAt)
		inv.CancelledAt = cloneTime(inv.CancelledAt)
		out.Investments[i] = inv
	}
	for i, ml := range s.Microloans {
		ml.CompletedAt = cloneTime(ml.CompletedAt)
		ml.CancelledAt = cloneTime(ml.CancelledAt)
		out.Microloans[i] = ml
	}
	return out
}

// FindCampaign returns a pointer into the snapshot or nil
func (s *Snapshot) FindCampaign(id int64) *Campaign {
	for i := range s.Campaigns {
		if s.Campaigns[i].ID == id {
			return &s.Campaigns[i]
		}
	}
	return nil
}

// FindInvestment returns a pointer into the snapshot or nil
func (s *Snapshot) FindInvestment(id int64) *Investment {
	for i := range s.Investments {
		if s.Investments[i].ID == id {
			return &s.Investments[i]
		}
	}
	return nil
}

// FindMicroloan returns a pointer into the snapshot or nil
func (s *Snapshot) FindMicroloan(id int64) *Microloan {
	for i := range s.Microloans {
		if s.Microloans[i].ID == id {
			return &s.Microloans[i]
		}
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
