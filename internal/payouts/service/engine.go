package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	agrdomain "github.com/craftlink/marketplace-backend/internal/agreements/domain"
	"github.com/craftlink/marketplace-backend/internal/audit"
	"github.com/craftlink/marketplace-backend/internal/events"
	"github.com/craftlink/marketplace-backend/internal/gateway"
	"github.com/craftlink/marketplace-backend/internal/payouts/domain"
	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
	wdomain "github.com/craftlink/marketplace-backend/internal/workers/domain"
)

type PayoutStore interface {
	GetByProject(ctx context.Context, projectID string) (*domain.Payout, error)
	Create(ctx context.Context, projectID, workerID string, totalAmount int64) (*domain.Payout, error)
	MarkPaid(ctx context.Context, id, transactionReference string) (*domain.Payout, error)
	MarkFailed(ctx context.Context, id, reason string) error
	ListRetryable(ctx context.Context, limit int) ([]*domain.Payout, error)
}

type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*projdomain.Project, error)
	TransitionStatus(ctx context.Context, id string, from []projdomain.Status, to projdomain.Status) (bool, error)
	ListByStatus(ctx context.Context, status projdomain.Status) ([]projdomain.Project, error)
}

type AgreementStore interface {
	GetActiveByProject(ctx context.Context, projectID string) (*agrdomain.Agreement, error)
}

type WorkerDirectory interface {
	GetByID(ctx context.Context, workerID string) (*wdomain.WorkerStats, error)
	ReleaseAssignment(ctx context.Context, workerID string) error
}

type Transferrer interface {
	InitiateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error)
}

type AuditLog interface {
	Record(ctx context.Context, e audit.Entry) error
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, ev events.StatusEvent) error
}

// Engine disburses the worker's share after the balance payment lands.
// A transfer failure never rolls back the payment: the payout row stays
// retryable and the project stays completed until the transfer goes through.
type Engine struct {
	payouts    PayoutStore
	projects   ProjectStore
	agreements AgreementStore
	workers    WorkerDirectory
	transfers  Transferrer
	auditLog   AuditLog
	pub        StatusPublisher
}

func NewEngine(payouts PayoutStore, projects ProjectStore, agreements AgreementStore,
	workers WorkerDirectory, transfers Transferrer, auditLog AuditLog, pub StatusPublisher) *Engine {
	return &Engine{
		payouts:    payouts,
		projects:   projects,
		agreements: agreements,
		workers:    workers,
		transfers:  transfers,
		auditLog:   auditLog,
		pub:        pub,
	}
}

// Payout runs the disbursement for a completed project. Idempotent: an
// already-paid payout is a no-op, a pending or failed one is attempted again.
func (e *Engine) Payout(ctx context.Context, projectID string) error {
	p, err := e.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}
	switch p.Status {
	case projdomain.StatusCompleted:
	case projdomain.StatusPayoutCompleted:
		// Transfer already settled; nothing left to do.
		return nil
	default:
		return fmt.Errorf("project %s in %s: %w", projectID, p.Status, projdomain.ErrInvalidTransition)
	}
	if p.WorkerID == nil {
		return fmt.Errorf("project %s has no worker: %w", projectID, projdomain.ErrInvalidStatus)
	}

	// The destination check runs before any payout row exists: a worker
	// without a recipient code refuses the payout outright instead of
	// leaving a doomed row behind.
	worker, err := e.workers.GetByID(ctx, *p.WorkerID)
	if err != nil {
		return err
	}
	if worker.RecipientCode == nil || *worker.RecipientCode == "" {
		e.record(ctx, projectID, "payout_refused", map[string]any{"reason": domain.ErrDestinationMissing.Error()})
		return domain.ErrDestinationMissing
	}

	agreement, err := e.agreements.GetActiveByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load agreement: %w", err)
	}

	payout, err := e.payouts.Create(ctx, projectID, *p.WorkerID, agreement.Amount)
	if err != nil {
		return err
	}
	if payout.Status == domain.StatusPaid {
		return e.settle(ctx, payout)
	}

	result, err := e.transfers.InitiateTransfer(ctx, gateway.TransferRequest{
		ProjectID:     projectID,
		WorkerID:      payout.WorkerID,
		Amount:        payout.WorkerShare,
		PlatformFee:   payout.PlatformFee,
		RecipientCode: *worker.RecipientCode,
		Reason:        fmt.Sprintf("project %s payout", projectID),
	})
	if err != nil {
		e.fail(ctx, payout, err.Error())
		return fmt.Errorf("initiate transfer: %w", err)
	}
	if !result.Success {
		e.fail(ctx, payout, "transfer rejected by gateway")
		return fmt.Errorf("transfer rejected for payout %s", payout.ID)
	}

	paid, err := e.payouts.MarkPaid(ctx, payout.ID, result.TransferReference)
	if err != nil && !errors.Is(err, domain.ErrAlreadyPaid) {
		return err
	}

	e.record(ctx, projectID, "payout_completed", map[string]any{
		"worker_share": paid.WorkerShare, "platform_fee": paid.PlatformFee,
		"transfer_reference": result.TransferReference,
	})
	return e.settle(ctx, paid)
}

// RetryPending sweeps retryable payouts and re-runs each one. Errors are
// logged per payout so one stuck transfer never blocks the rest.
func (e *Engine) RetryPending(ctx context.Context, limit int) {
	swept := make(map[string]bool)

	payouts, err := e.payouts.ListRetryable(ctx, limit)
	if err != nil {
		log.Printf("[error] operation=payout_sweep list failed: %v", err)
	} else {
		for _, p := range payouts {
			swept[p.ProjectID] = true
			if err := e.Payout(ctx, p.ProjectID); err != nil {
				log.Printf("[warn] operation=payout_sweep project_id=%s retry failed: %v", p.ProjectID, err)
			}
		}
	}

	// A payout that errored before its row was inserted leaves nothing for
	// ListRetryable to find; completed projects still waiting on a payout
	// are picked up here.
	completed, err := e.projects.ListByStatus(ctx, projdomain.StatusCompleted)
	if err != nil {
		log.Printf("[error] operation=payout_sweep completed scan failed: %v", err)
		return
	}
	for _, p := range completed {
		if swept[p.ID] {
			continue
		}
		if err := e.Payout(ctx, p.ID); err != nil {
			log.Printf("[warn] operation=payout_sweep project_id=%s payout failed: %v", p.ID, err)
		}
	}
}

// settle moves the project to its final state once the transfer is paid and
// frees the worker's capacity slot. Losing the transition race just means a
// concurrent settle already did this.
func (e *Engine) settle(ctx context.Context, payout *domain.Payout) error {
	moved, err := e.projects.TransitionStatus(ctx, payout.ProjectID,
		[]projdomain.Status{projdomain.StatusCompleted}, projdomain.StatusPayoutCompleted)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}

	if err := e.workers.ReleaseAssignment(ctx, payout.WorkerID); err != nil {
		log.Printf("[warn] operation=payout project_id=%s worker release failed: %v", payout.ProjectID, err)
	}
	e.publish(ctx, payout.ProjectID, projdomain.StatusPayoutCompleted)
	return nil
}

func (e *Engine) fail(ctx context.Context, payout *domain.Payout, reason string) {
	if err := e.payouts.MarkFailed(ctx, payout.ID, reason); err != nil {
		log.Printf("[error] operation=payout payout_id=%s mark failed errored: %v", payout.ID, err)
	}
	e.record(ctx, payout.ProjectID, "payout_failed", map[string]any{"reason": reason})
}

func (e *Engine) record(ctx context.Context, projectID, action string, detail map[string]any) {
	if e.auditLog == nil {
		return
	}
	if err := e.auditLog.Record(ctx, audit.Entry{ProjectID: projectID, Action: action, Detail: detail}); err != nil {
		log.Printf("[warn] operation=%s project_id=%s audit write failed: %v", action, projectID, err)
	}
}

func (e *Engine) publish(ctx context.Context, projectID string, status projdomain.Status) {
	if e.pub == nil {
		return
	}
	err := e.pub.PublishStatus(ctx, events.StatusEvent{ProjectID: projectID, Status: string(status)})
	if err != nil {
		log.Printf("[warn] operation=payout project_id=%s status publish failed: %v", projectID, err)
	}
}
