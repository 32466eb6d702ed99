package domain

// Status is the project lifecycle state. Values are stored as plain strings
// in the projects table; the closed set below is the only source of truth.
type Status string

const (
	StatusQueued              Status = "queued"
	StatusMatching            Status = "matching"
	StatusAssigned            Status = "assigned"
	StatusPendingAgreement    Status = "pending_agreement"
	StatusPendingDownPayment  Status = "pending_down_payment"
	StatusInProgress          Status = "in_progress"
	StatusReadyForReview      Status = "ready_for_review"
	StatusApproved            Status = "approved"
	StatusAwaitingFinal       Status = "awaiting_final_payment"
	StatusCompleted           Status = "completed"
	StatusPayoutCompleted     Status = "payout_completed"
	StatusNoWorkerAvailable   Status = "no_worker_available"
	StatusCancelled           Status = "cancelled"
	StatusFlagged             Status = "flagged"
)

// transitions is the allowed next-state set for every status. A project may
// always move to cancelled or flagged from a non-terminal state; those edges
// are handled in CanTransition rather than listed per state.
var transitions = map[Status][]Status{
	StatusQueued:             {StatusMatching},
	StatusMatching:           {StatusAssigned, StatusNoWorkerAvailable},
	StatusAssigned:           {StatusPendingAgreement},
	StatusPendingAgreement:   {StatusPendingDownPayment, StatusAssigned},
	StatusPendingDownPayment: {StatusInProgress},
	StatusInProgress:         {StatusReadyForReview},
	StatusReadyForReview:     {StatusApproved},
	StatusApproved:           {StatusAwaitingFinal},
	StatusAwaitingFinal:      {StatusCompleted},
	StatusCompleted:          {StatusPayoutCompleted},
	StatusNoWorkerAvailable:  {StatusMatching},
	StatusPayoutCompleted:    {},
	StatusCancelled:          {},
	StatusFlagged:            {},
}

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is expected without
// operator intervention. no_worker_available is terminal-until-requeued and
// is deliberately not listed here.
func (s Status) Terminal() bool {
	return s == StatusPayoutCompleted || s == StatusCancelled
}

// CanTransition reports whether moving from one status to another is a
// legal lifecycle step.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == StatusCancelled || to == StatusFlagged {
		return !from.Terminal() && from != StatusFlagged
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WorkerRequired reports whether a project in this status must carry a
// non-null worker reference.
func (s Status) WorkerRequired() bool {
	switch s {
	case StatusAssigned, StatusPendingAgreement, StatusPendingDownPayment,
		StatusInProgress, StatusReadyForReview, StatusApproved,
		StatusAwaitingFinal, StatusCompleted, StatusPayoutCompleted:
		return true
	}
	return false
}
