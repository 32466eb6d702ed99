package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/craftlink/marketplace-backend/internal/agreements/domain"
	"github.com/craftlink/marketplace-backend/internal/audit"
	"github.com/craftlink/marketplace-backend/internal/events"
	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
)

// AgreementStore is the slice of the agreement repository the negotiator
// drives.
type AgreementStore interface {
	Create(ctx context.Context, projectID, proposerID string, amount int64, deliverables, timeline string) (*domain.Agreement, error)
	GetByID(ctx context.Context, id string) (*domain.Agreement, error)
	GetActiveByProject(ctx context.Context, projectID string) (*domain.Agreement, error)
	SetAccepted(ctx context.Context, id string, role projdomain.Role) (*domain.Agreement, error)
	Lock(ctx context.Context, id string) (bool, error)
	Supersede(ctx context.Context, projectID string) error
}

type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*projdomain.Project, error)
	TransitionStatus(ctx context.Context, id string, from []projdomain.Status, to projdomain.Status) (bool, error)
}

type AuditLog interface {
	Record(ctx context.Context, e audit.Entry) error
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, ev events.StatusEvent) error
}

// Negotiator manages the price/scope handshake:
// no_agreement → proposed → accepted by each side → confirmed (locked), or
// rejected back to a fresh proposal cycle.
type Negotiator struct {
	agreements AgreementStore
	projects   ProjectStore
	auditLog   AuditLog
	pub        StatusPublisher
}

func NewNegotiator(agreements AgreementStore, projects ProjectStore, auditLog AuditLog, pub StatusPublisher) *Negotiator {
	return &Negotiator{
		agreements: agreements,
		projects:   projects,
		auditLog:   auditLog,
		pub:        pub,
	}
}

// Propose creates a new agreement from the assigned worker, superseding any
// unlocked active one, and moves the project into pending_agreement.
func (n *Negotiator) Propose(ctx context.Context, projectID, workerID string, amount int64, deliverables, timeline string) (*domain.Agreement, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	p, err := n.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status != projdomain.StatusAssigned && p.Status != projdomain.StatusPendingAgreement {
		return nil, fmt.Errorf("project %s in %s: %w", projectID, p.Status, projdomain.ErrInvalidTransition)
	}
	if p.WorkerID == nil || *p.WorkerID != workerID {
		return nil, domain.ErrNotAssignedWorker
	}

	a, err := n.agreements.Create(ctx, projectID, workerID, amount, deliverables, timeline)
	if err != nil {
		return nil, err
	}

	if p.Status == projdomain.StatusAssigned {
		moved, err := n.projects.TransitionStatus(ctx, projectID,
			[]projdomain.Status{projdomain.StatusAssigned}, projdomain.StatusPendingAgreement)
		if err != nil {
			return nil, err
		}
		if moved {
			n.publish(ctx, projectID, projdomain.StatusPendingAgreement, "")
		}
	}

	n.record(ctx, projectID, "agreement_proposed", map[string]any{
		"agreement_id": a.ID, "amount": a.Amount,
	})
	return a, nil
}

// Accept records one side's agreement. The both-sides decision is made on
// the row returned by the update, not on the caller's stale view, so two
// near-simultaneous accepts serialize correctly: both see fresh flags and
// the Lock compare-and-set lets exactly one of them confirm.
func (n *Negotiator) Accept(ctx context.Context, agreementID string, role projdomain.Role) (*domain.Agreement, error) {
	a, err := n.agreements.SetAccepted(ctx, agreementID, role)
	if err != nil {
		if errors.Is(err, domain.ErrAgreementLocked) {
			// Already confirmed; accepting again is a no-op.
			return a, nil
		}
		return nil, err
	}

	if a.BothAgreed() {
		if err := n.confirm(ctx, a); err != nil {
			return nil, err
		}
	}

	n.record(ctx, a.ProjectID, "agreement_accepted", map[string]any{
		"agreement_id": a.ID, "role": string(role),
	})
	return a, nil
}

// confirm locks the agreement and advances the project to the deposit gate.
// Idempotent: the loser of the Lock race does nothing.
func (n *Negotiator) confirm(ctx context.Context, a *domain.Agreement) error {
	won, err := n.agreements.Lock(ctx, a.ID)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	moved, err := n.projects.TransitionStatus(ctx, a.ProjectID,
		[]projdomain.Status{projdomain.StatusPendingAgreement}, projdomain.StatusPendingDownPayment)
	if err != nil {
		return err
	}
	if moved {
		n.publish(ctx, a.ProjectID, projdomain.StatusPendingDownPayment, "")
	}

	a.Locked = true
	n.record(ctx, a.ProjectID, "agreement_confirmed", map[string]any{
		"agreement_id": a.ID, "amount": a.Amount,
	})
	return nil
}

// RejectByID rejects the agreement with the given id, provided it is still
// the active proposal for its project.
func (n *Negotiator) RejectByID(ctx context.Context, agreementID, reason string) error {
	a, err := n.agreements.GetByID(ctx, agreementID)
	if err != nil {
		return err
	}
	active, err := n.agreements.GetActiveByProject(ctx, a.ProjectID)
	if err != nil {
		return err
	}
	if active.ID != a.ID {
		return fmt.Errorf("agreement %s superseded: %w", agreementID, domain.ErrNoActiveAgreement)
	}
	return n.Reject(ctx, a.ProjectID, reason)
}

// Reject clears the active agreement and returns the project to the
// assigned state for a new proposal cycle.
func (n *Negotiator) Reject(ctx context.Context, projectID, reason string) error {
	a, err := n.agreements.GetActiveByProject(ctx, projectID)
	if err != nil {
		return err
	}
	if a.Locked {
		return domain.ErrAgreementLocked
	}

	if err := n.agreements.Supersede(ctx, projectID); err != nil {
		return err
	}

	moved, err := n.projects.TransitionStatus(ctx, projectID,
		[]projdomain.Status{projdomain.StatusPendingAgreement}, projdomain.StatusAssigned)
	if err != nil {
		return err
	}
	if moved {
		n.publish(ctx, projectID, projdomain.StatusAssigned, reason)
	}

	n.record(ctx, projectID, "agreement_rejected", map[string]any{
		"agreement_id": a.ID, "reason": reason,
	})
	return nil
}

func (n *Negotiator) record(ctx context.Context, projectID, action string, detail map[string]any) {
	if n.auditLog == nil {
		return
	}
	if err := n.auditLog.Record(ctx, audit.Entry{ProjectID: projectID, Action: action, Detail: detail}); err != nil {
		log.Printf("[warn] operation=%s project_id=%s audit write failed: %v", action, projectID, err)
	}
}

func (n *Negotiator) publish(ctx context.Context, projectID string, status projdomain.Status, reason string) {
	if n.pub == nil {
		return
	}
	err := n.pub.PublishStatus(ctx, events.StatusEvent{
		ProjectID: projectID,
		Status:    string(status),
		Reason:    reason,
	})
	if err != nil {
		log.Printf("[warn] operation=negotiate project_id=%s status publish failed: %v", projectID, err)
	}
}
