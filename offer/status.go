package offer

// Status enumerates the lifecycle states of a sent offer.
type Status string

const (
	StatusPending    Status = "pending"
	StatusFollowedUp Status = "followedUp"
	StatusEscalated  Status = "escalated"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusExpired    Status = "expired"
)

// Trigger records what caused a status transition.
type Trigger string

const (
	TriggerScheduledSweep Trigger = "scheduledSweep"
	TriggerCustomerAction Trigger = "customerAction"
	TriggerManualOverride Trigger = "manualOverride"
)

// transitions is the directed status graph. Nothing transitions into
// pending except creation, and nothing leaves a terminal state.
var transitions = map[Status][]Status{
	StatusPending:    {StatusFollowedUp, StatusEscalated, StatusExpired, StatusAccepted, StatusRejected},
	StatusFollowedUp: {StatusEscalated, StatusExpired, StatusAccepted, StatusRejected},
	StatusEscalated:  {StatusExpired, StatusAccepted, StatusRejected},
}

// automatedRank orders the states the sweep moves offers through.
var automatedRank = map[Status]int{
	StatusPending:    0,
	StatusFollowedUp: 1,
	StatusEscalated:  2,
	StatusExpired:    3,
}

// IsValid reports whether s is one of the known status values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusFollowedUp, StatusEscalated, StatusAccepted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted out of s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether the status graph permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
