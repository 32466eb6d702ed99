package domain

import (
	"errors"
	"time"
)

// Agreement is one price/scope/timeline proposal for a project. At most one
// agreement per project is active (superseded_at IS NULL); it becomes
// immutable the moment both sides have agreed and it is locked.
type Agreement struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"project_id"`
	ProposerID       string     `json:"proposer_id"` // the assigned worker
	Amount           int64      `json:"amount"`
	Deliverables     string     `json:"deliverables"`
	Timeline         string     `json:"timeline"`
	ClientAgreed     bool       `json:"client_agreed"`
	FreelancerAgreed bool       `json:"freelancer_agreed"`
	Locked           bool       `json:"locked"`
	SupersededAt     *time.Time `json:"superseded_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// BothAgreed reports whether the agreement is ready to lock.
func (a *Agreement) BothAgreed() bool {
	return a.ClientAgreed && a.FreelancerAgreed
}

var (
	ErrAgreementNotFound = errors.New("agreement not found")
	ErrAgreementLocked   = errors.New("agreement is locked")
	ErrNoActiveAgreement = errors.New("no active agreement for project")
	ErrInvalidRole       = errors.New("invalid accepting role")
	ErrNotAssignedWorker = errors.New("proposer is not the assigned worker")
)
