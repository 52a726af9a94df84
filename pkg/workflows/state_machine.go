package workflows

// StateMachine enforces status transitions for a single entity kind
type StateMachine struct {
	name               string
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine from an allowed-transition table
func NewStateMachine(name string, transitions map[string][]string) *StateMachine {
	return &StateMachine{
		name:               name,
		allowedTransitions: transitions,
	}
}

// CampaignLifecycle allows a single approval; campaigns never close
func CampaignLifecycle() *StateMachine {
	return NewStateMachine("campaign", map[string][]string{
		"pending":  {"approved"},
		"approved": {},
	})
}

// InvestmentLifecycle mirrors the fund lock: created, distributed, then finished or cancelled
func InvestmentLifecycle() *StateMachine {
	return NewStateMachine("investment", map[string][]string{
		"locked":    {"settled", "released", "cancelled"},
		"settled":   {"released", "cancelled"},
		"released":  {},
		"cancelled": {},
	})
}

// MicroloanLifecycle only leaves active once
func MicroloanLifecycle() *StateMachine {
	return NewStateMachine("microloan", map[string][]string{
		"active":    {"completed", "cancelled"},
		"completed": {},
		"cancelled": {},
	})
}

// Name returns the entity kind the machine governs
func (sm *StateMachine) Name() string {
	return sm.name
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the given status
func (sm *StateMachine) IsTerminal(status string) bool {
	allowed, exists := sm.allowedTransitions[status]
	return exists && len(allowed) == 0
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
