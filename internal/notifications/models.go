package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted by settlement sagas and the reconciler
const (
	EventCampaignCreated          = "campaign.created"
	EventCampaignApproved         = "campaign.approved"
	EventInvestmentLocked         = "investment.locked"
	EventInvestmentSettled        = "investment.settled"
	EventInvestmentReleased       = "investment.released"
	EventInvestmentCancelled      = "investment.cancelled"
	EventInvestmentNeedsReconcile = "investment.needs_reconciliation"
	EventMicroloanCreated         = "microloan.created"
	EventMicroloanCompleted       = "microloan.completed"
	EventMicroloanCancelled       = "microloan.cancelled"
	EventMicroloanRepaymentDue    = "microloan.repayment_due"
	EventSagaStepFailed           = "saga.step_failed"
	EventSnapshotBackupCompleted  = "snapshot.backup_completed"
)

// Event is a settlement notification fanned out to subscribers
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	CampaignID int64                  `json:"campaign_id,omitempty"`
	Subject    string                 `json:"subject,omitempty"` // entity reference, e.g. investment:12
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewEvent stamps an event with a fresh id and the current time
func NewEvent(eventType, subject string, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Subject:    subject,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// WithCampaign scopes the event to a campaign so filtered subscribers receive it
func (e Event) WithCampaign(id int64) Event {
	e.CampaignID = id
	return e
}

// WebSocket message types
const (
	WSMessageTypeSubscribe = "subscribe"
	WSMessageTypeStatus    = "status"
	WSMessageTypeEvent     = "event"
)

// WebSocketMessage represents WebSocket message format
type WebSocketMessage struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Event     *Event                 `json:"event,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Channel   string                 `json:"channel"`
	Target    string                 `json:"target,omitempty"`
}
