package financing

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"farmfund/funding-portal/funding-portal-backend/pkg/workflows"
)

var (
	campaignFlow   = workflows.CampaignLifecycle()
	investmentFlow = workflows.InvestmentLifecycle()
	microloanFlow  = workflows.MicroloanLifecycle()
)

// CampaignFields are the caller-supplied attributes of a new campaign
type CampaignFields struct {
	FarmerName    string
	Title         string
	Description   string
	FundingGoal   int64
	FarmerAddress string
	FarmerSecret  string
}

// LockRef identifies a fund lock on the ledger
type LockRef struct {
	Owner        string
	Sequence     uint32
	TxHash       string
	Condition    string
	ReleaseAfter time.Time
	CancelAfter  *time.Time
}

// InvestmentFields describe an investment whose fund lock already exists
type InvestmentFields struct {
	CampaignID      int64
	InvestorAddress string
	Amount          int64
	TokenAmount     int64
	Lock            LockRef
}

// MicroloanFields describe a microloan whose fund lock already exists
type MicroloanFields struct {
	FarmerAddress   string
	InvestorAddress string
	LoanAmount      int64
	RepaymentDays   int
	Lock            LockRef
}

// =====================================================
// Campaigns
// =====================================================

// CreateCampaign appends a pending campaign and advances the campaign counter
func CreateCampaign(s *Snapshot, f CampaignFields, now time.Time) (Campaign, error) {
	if strings.TrimSpace(f.FarmerName) == "" {
		return Campaign{}, InvalidInput("farmer_name is required")
	}
	if strings.TrimSpace(f.Title) == "" {
		return Campaign{}, InvalidInput("title is required")
	}
	if f.FundingGoal <= 0 {
		return Campaign{}, InvalidInput("funding_goal must be a positive integer, got %d", f.FundingGoal)
	}
	if strings.TrimSpace(f.FarmerAddress) == "" {
		return Campaign{}, InvalidInput("farmer_address is required")
	}

	campaign := Campaign{
		ID:            s.NextCampaignID,
		FarmerName:    f.FarmerName,
		Title:         f.Title,
		Description:   f.Description,
		FundingGoal:   f.FundingGoal,
		FarmerAddress: f.FarmerAddress,
		FarmerSecret:  f.FarmerSecret,
		Status:        CampaignStatusPending,
		CreatedAt:     now,
	}
	s.Campaigns = append(s.Campaigns, campaign)
	s.NextCampaignID++
	return campaign, nil
}

// DeriveTokenSymbol returns the first three characters of the title, upper-cased.
// Two campaigns may derive the same symbol.
func DeriveTokenSymbol(title string) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return strings.ToUpper(string(runes))
}

// ValidateTokenSymbol checks the ledger's standard currency code rules
func ValidateTokenSymbol(symbol string) error {
	if len(symbol) != 3 {
		return InvalidInput("token symbol %q must be exactly 3 characters", symbol)
	}
	for _, r := range symbol {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return InvalidInput("token symbol %q must be alphanumeric ASCII", symbol)
		}
	}
	if symbol == "XRP" {
		return InvalidInput("token symbol XRP is reserved")
	}
	return nil
}

// ApproveCampaign moves a pending campaign to approved and assigns its token symbol.
// Approving an approved campaign re-derives the same symbol and changes nothing else.
func ApproveCampaign(s *Snapshot, id int64, now time.Time) (Campaign, error) {
	campaign := s.FindCampaign(id)
	if campaign == nil {
		return Campaign{}, NotFound("campaign", id)
	}

	symbol := DeriveTokenSymbol(campaign.Title)
	if err := ValidateTokenSymbol(symbol); err != nil {
		return Campaign{}, err
	}

	if campaign.IsApproved() {
		campaign.TokenSymbol = &symbol
		return *campaign, nil
	}
	if !campaignFlow.CanTransition(string(campaign.Status), string(CampaignStatusApproved)) {
		return Campaign{}, InvalidState("campaign", id, string(campaign.Status))
	}

	campaign.TokenSymbol = &symbol
	campaign.Status = CampaignStatusApproved
	approvedAt := now
	campaign.ApprovedAt = &approvedAt
	return *campaign, nil
}

// CampaignsWithSymbol lists approved campaigns other than exclude that use symbol
func CampaignsWithSymbol(s *Snapshot, symbol string, exclude int64) []int64 {
	var ids []int64
	for _, c := range s.Campaigns {
		if c.ID == exclude || c.TokenSymbol == nil {
			continue
		}
		if *c.TokenSymbol == symbol {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// =====================================================
// Investments
// =====================================================

// RequireApprovedCampaign returns the campaign if investments may be made in it
func RequireApprovedCampaign(s *Snapshot, campaignID int64) (Campaign, error) {
	campaign := s.FindCampaign(campaignID)
	if campaign == nil || !campaign.IsApproved() {
		return Campaign{}, &ValidationError{Reason: ErrCampaignNotApproved, Detail: "campaign " + strconv.FormatInt(campaignID, 10)}
	}
	return *campaign, nil
}

// RecordInvestment appends a locked investment. Only called once the fund lock exists.
func RecordInvestment(s *Snapshot, f InvestmentFields, now time.Time) (Investment, error) {
	campaign, err := RequireApprovedCampaign(s, f.CampaignID)
	if err != nil {
		return Investment{}, err
	}
	if f.Amount <= 0 {
		return Investment{}, InvalidInput("amount must be positive, got %d", f.Amount)
	}

	investment := Investment{
		ID:              s.NextInvestmentID,
		CampaignID:      f.CampaignID,
		InvestorAddress: f.InvestorAddress,
		Amount:          f.Amount,
		EscrowOwner:     f.Lock.Owner,
		EscrowSequence:  f.Lock.Sequence,
		EscrowTxHash:    f.Lock.TxHash,
		EscrowCondition: f.Lock.Condition,
		ReleaseAfter:    f.Lock.ReleaseAfter,
		CancelAfter:     cloneTime(f.Lock.CancelAfter),
		TokenSymbol:     *campaign.TokenSymbol,
		TokenAmount:     f.TokenAmount,
		Status:          InvestmentStatusLocked,
		CreatedAt:       now,
	}
	s.Investments = append(s.Investments, investment)
	s.NextInvestmentID++
	return investment, nil
}

// SettleInvestment records a completed token distribution
func SettleInvestment(s *Snapshot, id int64, trustTxHash, tokenTxHash string, now time.Time) (Investment, error) {
	inv, err := transitionInvestment(s, id, InvestmentStatusSettled)
	if err != nil {
		return Investment{}, err
	}
	inv.TrustTxHash = trustTxHash
	inv.TokenTxHash = tokenTxHash
	inv.FailedStep = ""
	inv.FailureReason = ""
	settledAt := now
	inv.SettledAt = &settledAt
	return *inv, nil
}

// MarkInvestmentStepFailed keeps the investment locked and notes where distribution stopped
func MarkInvestmentStepFailed(s *Snapshot, id int64, step, reason, trustTxHash string) (Investment, error) {
	inv := s.FindInvestment(id)
	if inv == nil {
		return Investment{}, NotFound("investment", id)
	}
	inv.FailedStep = step
	inv.FailureReason = reason
	if trustTxHash != "" {
		inv.TrustTxHash = trustTxHash
	}
	return *inv, nil
}

// RequireOpenInvestment returns the investment if its lock has not been finished or cancelled
func RequireOpenInvestment(s *Snapshot, id int64) (Investment, error) {
	inv := s.FindInvestment(id)
	if inv == nil {
		return Investment{}, NotFound("investment", id)
	}
	if investmentFlow.IsTerminal(string(inv.Status)) {
		return Investment{}, InvalidState("investment", id, string(inv.Status))
	}
	return *inv, nil
}

// ReleaseInvestment records that the fund lock was finished in the farmer's favour
func ReleaseInvestment(s *Snapshot, id int64, now time.Time) (Investment, error) {
	inv, err := transitionInvestment(s, id, InvestmentStatusReleased)
	if err != nil {
		return Investment{}, err
	}
	at := now
	inv.ReleasedAt = &at
	return *inv, nil
}

// CancelInvestment records that the fund lock was returned to the investor
func CancelInvestment(s *Snapshot, id int64, now time.Time) (Investment, error) {
	inv, err := transitionInvestment(s, id, InvestmentStatusCancelled)
	if err != nil {
		return Investment{}, err
	}
	at := now
	inv.CancelledAt = &at
	return *inv, nil
}

func transitionInvestment(s *Snapshot, id int64, to InvestmentStatus) (*Investment, error) {
	inv := s.FindInvestment(id)
	if inv == nil {
		return nil, NotFound("investment", id)
	}
	if !investmentFlow.CanTransition(string(inv.Status), string(to)) {
		return nil, InvalidState("investment", id, string(inv.Status))
	}
	inv.Status = to
	return inv, nil
}

// =====================================================
// Microloans
// =====================================================

// RecordMicroloan appends an active microloan. Only called once the fund lock exists.
func RecordMicroloan(s *Snapshot, f MicroloanFields, now time.Time) (Microloan, error) {
	if f.LoanAmount <= 0 {
		return Microloan{}, InvalidInput("loan_amount must be positive, got %d", f.LoanAmount)
	}
	if f.Lock.CancelAfter == nil {
		return Microloan{}, InvalidInput("microloan lock requires a cancel time")
	}

	loan := Microloan{
		ID:              s.NextMicroloanID,
		FarmerAddress:   f.FarmerAddress,
		InvestorAddress: f.InvestorAddress,
		LoanAmount:      f.LoanAmount,
		RepaymentDays:   f.RepaymentDays,
		EscrowOwner:     f.Lock.Owner,
		EscrowSequence:  f.Lock.Sequence,
		EscrowTxHash:    f.Lock.TxHash,
		ReleaseAfter:    f.Lock.ReleaseAfter,
		CancelAfter:     *f.Lock.CancelAfter,
		Status:          MicroloanStatusActive,
		CreatedAt:       now,
	}
	s.Microloans = append(s.Microloans, loan)
	s.NextMicroloanID++
	return loan, nil
}

// RequireActiveMicroloan returns the microloan if it can still be finished or cancelled
func RequireActiveMicroloan(s *Snapshot, id int64) (Microloan, error) {
	loan := s.FindMicroloan(id)
	if loan == nil {
		return Microloan{}, NotFound("microloan", id)
	}
	if loan.Status != MicroloanStatusActive {
		return Microloan{}, InvalidState("microloan", id, string(loan.Status))
	}
	return *loan, nil
}

// CompleteMicroloan transitions active -> completed
func CompleteMicroloan(s *Snapshot, id int64, now time.Time) (Microloan, error) {
	loan, err := transitionMicroloan(s, id, MicroloanStatusCompleted)
	if err != nil {
		return Microloan{}, err
	}
	at := now
	loan.CompletedAt = &at
	return *loan, nil
}

// CancelMicroloan transitions active -> cancelled
func CancelMicroloan(s *Snapshot, id int64, now time.Time) (Microloan, error) {
	loan, err := transitionMicroloan(s, id, MicroloanStatusCancelled)
	if err != nil {
		return Microloan{}, err
	}
	at := now
	loan.CancelledAt = &at
	return *loan, nil
}

func transitionMicroloan(s *Snapshot, id int64, to MicroloanStatus) (*Microloan, error) {
	loan := s.FindMicroloan(id)
	if loan == nil {
		return nil, NotFound("microloan", id)
	}
	if !microloanFlow.CanTransition(string(loan.Status), string(to)) {
		return nil, InvalidState("microloan", id, string(loan.Status))
	}
	loan.Status = to
	return loan, nil
}
