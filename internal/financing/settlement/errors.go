package settlement

import (
	"fmt"
	"sort"
	"strings"
)

// Saga step names reported in StepError and logs
const (
	StepProvisionAccount  = "provision_account"
	StepEnableIssuance    = "enable_token_issuance"
	StepCreateFundLock    = "create_fund_lock"
	StepRecordInvestment  = "record_investment"
	StepCreateTrustLine   = "create_trust_line"
	StepIssueTokens       = "issue_tokens"
	StepRecordSettlement  = "record_settlement"
	StepFinishFundLock    = "finish_fund_lock"
	StepCancelFundLock    = "cancel_fund_lock"
	StepCheckBalance      = "check_investor_balance"
	StepRecordMicroloan   = "record_microloan"
	StepRecordCampaign    = "record_campaign"
	StepRecordApproval    = "record_approval"
	StepRecordTermination = "record_termination"
)

// StepError reports the saga step that failed and the identifiers needed to
// reconcile by hand. Effects of earlier steps are not rolled back.
type StepError struct {
	Operation string
	Step      string
	Refs      map[string]string
	Err       error
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: step %s failed: %v", e.Operation, e.Step, e.Err)
	if len(e.Refs) > 0 {
		keys := make([]string, 0, len(e.Refs))
		for k := range e.Refs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Refs[k])
		}
		b.WriteString("]")
	}
	return b.String()
}

func (e *StepError) Unwrap() error { return e.Err }

func stepError(operation, step string, refs map[string]string, err error) *StepError {
	copied := make(map[string]string, len(refs))
	for k, v := range refs {
		if v != "" {
			copied[k] = v
		}
	}
	return &StepError{Operation: operation, Step: step, Refs: copied, Err: err}
}
