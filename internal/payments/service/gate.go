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
	"github.com/craftlink/marketplace-backend/internal/payments/domain"
	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
)

type PaymentStore interface {
	GetByReference(ctx context.Context, reference string) (*domain.Payment, error)
	GetConfirmed(ctx context.Context, projectID string, phase domain.Phase) (*domain.Payment, error)
	RecordConfirmed(ctx context.Context, projectID, payerID string, amount int64, phase domain.Phase, reference string) (*domain.Payment, error)
}

type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*projdomain.Project, error)
	TransitionStatus(ctx context.Context, id string, from []projdomain.Status, to projdomain.Status) (bool, error)
	Flag(ctx context.Context, id, reason string) error
}

type AgreementStore interface {
	GetActiveByProject(ctx context.Context, projectID string) (*agrdomain.Agreement, error)
}

// Verifier is the slice of the gateway client the gate needs.
type Verifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*gateway.VerifyResult, error)
}

// PayoutEngine is invoked after a final payment confirms. Its failure is
// contained: the payment stays confirmed either way.
type PayoutEngine interface {
	Payout(ctx context.Context, projectID string) error
}

type AuditLog interface {
	Record(ctx context.Context, e audit.Entry) error
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, ev events.StatusEvent) error
	SeenReference(ctx context.Context, reference string) (bool, error)
}

// Gate verifies externally-confirmed payments and advances project status,
// enforcing the deposit-before-balance ordering and reference idempotency.
type Gate struct {
	payments   PaymentStore
	projects   ProjectStore
	agreements AgreementStore
	verifier   Verifier
	payouts    PayoutEngine
	auditLog   AuditLog
	pub        StatusPublisher
}

func NewGate(payments PaymentStore, projects ProjectStore, agreements AgreementStore,
	verifier Verifier, payouts PayoutEngine, auditLog AuditLog, pub StatusPublisher) *Gate {
	return &Gate{
		payments:   payments,
		projects:   projects,
		agreements: agreements,
		verifier:   verifier,
		payouts:    payouts,
		auditLog:   auditLog,
		pub:        pub,
	}
}

// Confirm processes a payment callback for the given phase and returns the
// resulting project status. Safe to call more than once with the same
// reference: duplicates return the already-applied result without side
// effects.
func (g *Gate) Confirm(ctx context.Context, projectID string, phase domain.Phase, reference string) (projdomain.Status, error) {
	if !phase.Valid() {
		return "", fmt.Errorf("unknown payment phase %q", phase)
	}
	if reference == "" {
		return "", fmt.Errorf("payment reference required")
	}

	// Redis hint plus the authoritative DB check. A previously seen
	// reference that never reached a confirmed row falls through and is
	// processed normally.
	if g.pub != nil {
		if seen, err := g.pub.SeenReference(ctx, reference); err != nil {
			log.Printf("[warn] operation=confirm_payment reference=%s dedup check failed: %v", reference, err)
		} else if seen {
			log.Printf("[info] operation=confirm_payment reference=%s duplicate delivery", reference)
		}
	}

	existing, err := g.payments.GetByReference(ctx, reference)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		return "", err
	}
	if existing != nil && existing.Status == domain.StatusConfirmed {
		if existing.ProjectID != projectID || existing.Phase != phase {
			return "", fmt.Errorf("%w: reference=%s", domain.ErrReferenceReused, reference)
		}
		// The confirmed row may have landed while the status advance
		// failed, so a replayed callback re-runs the advance. The CAS
		// makes it a no-op when the transition already applied.
		status, err := g.advance(ctx, projectID, phase)
		if err != nil {
			return "", err
		}
		if phase == domain.PhaseFinalPayment {
			g.runPayout(ctx, projectID)
		}
		return status, nil
	}

	p, err := g.projects.GetByID(ctx, projectID)
	if err != nil {
		return "", err
	}

	agreement, err := g.agreements.GetActiveByProject(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load agreement: %w", err)
	}
	if !agreement.Locked {
		return "", fmt.Errorf("agreement %s not confirmed by both parties", agreement.ID)
	}

	if err := g.checkPhaseOrder(ctx, p, phase); err != nil {
		return "", err
	}

	expected := domain.PhaseAmount(agreement.Amount, phase)
	vr, err := g.verifier.VerifyTransaction(ctx, reference)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	if vr.Amount < expected {
		return "", fmt.Errorf("%w: expected %d got %d", domain.ErrVerificationFailed, expected, vr.Amount)
	}

	payment, err := g.payments.RecordConfirmed(ctx, projectID, p.ClientID, vr.Amount, phase, reference)
	if err != nil {
		return "", err
	}
	if payment.ProjectID != projectID || payment.Phase != phase {
		return "", fmt.Errorf("%w: reference=%s", domain.ErrReferenceReused, reference)
	}

	status, err := g.advance(ctx, projectID, phase)
	if err != nil {
		return "", err
	}

	g.record(ctx, projectID, "payment_confirmed", map[string]any{
		"phase": string(phase), "amount": vr.Amount, "reference": reference,
	})

	if phase == domain.PhaseFinalPayment {
		g.runPayout(ctx, projectID)
	}

	return status, nil
}

// checkPhaseOrder enforces deposit-before-balance. A final payment without a
// confirmed deposit is a data-consistency fault: the project is flagged for
// manual review and nothing is reconciled automatically.
func (g *Gate) checkPhaseOrder(ctx context.Context, p *projdomain.Project, phase domain.Phase) error {
	switch phase {
	case domain.PhaseDownPayment:
		if p.Status != projdomain.StatusPendingDownPayment {
			return fmt.Errorf("project %s in %s: %w", p.ID, p.Status, projdomain.ErrInvalidTransition)
		}
	case domain.PhaseFinalPayment:
		if _, err := g.payments.GetConfirmed(ctx, p.ID, domain.PhaseDownPayment); err != nil {
			if errors.Is(err, domain.ErrPaymentNotFound) {
				if ferr := g.projects.Flag(ctx, p.ID, "final payment received without confirmed down payment"); ferr != nil {
					log.Printf("[error] operation=confirm_payment project_id=%s flag failed: %v", p.ID, ferr)
				}
				g.record(ctx, p.ID, "phase_order_violation", map[string]any{"phase": string(phase)})
				return domain.ErrPhaseOrderViolation
			}
			return err
		}
		if p.Status != projdomain.StatusAwaitingFinal {
			return fmt.Errorf("project %s in %s: %w", p.ID, p.Status, projdomain.ErrInvalidTransition)
		}
	}
	return nil
}

func (g *Gate) advance(ctx context.Context, projectID string, phase domain.Phase) (projdomain.Status, error) {
	var from, to projdomain.Status
	switch phase {
	case domain.PhaseDownPayment:
		from, to = projdomain.StatusPendingDownPayment, projdomain.StatusInProgress
	case domain.PhaseFinalPayment:
		from, to = projdomain.StatusAwaitingFinal, projdomain.StatusCompleted
	}

	moved, err := g.projects.TransitionStatus(ctx, projectID, []projdomain.Status{from}, to)
	if err != nil {
		return "", err
	}
	if moved {
		g.publish(ctx, projectID, to)
		return to, nil
	}

	// Concurrent delivery advanced it first; report the current status.
	p, err := g.projects.GetByID(ctx, projectID)
	if err != nil {
		return "", err
	}
	return p.Status, nil
}

// runPayout invokes the payout engine and contains its failure: the payment
// confirmation stands, the payout is retried out-of-band.
func (g *Gate) runPayout(ctx context.Context, projectID string) {
	if g.payouts == nil {
		return
	}
	if err := g.payouts.Payout(ctx, projectID); err != nil {
		log.Printf("[error] operation=confirm_payment project_id=%s payout deferred: %v", projectID, err)
		g.record(ctx, projectID, "payout_deferred", map[string]any{"error": err.Error()})
	}
}

func (g *Gate) record(ctx context.Context, projectID, action string, detail map[string]any) {
	if g.auditLog == nil {
		return
	}
	if err := g.auditLog.Record(ctx, audit.Entry{ProjectID: projectID, Action: action, Detail: detail}); err != nil {
		log.Printf("[warn] operation=%s project_id=%s audit write failed: %v", action, projectID, err)
	}
}

func (g *Gate) publish(ctx context.Context, projectID string, status projdomain.Status) {
	if g.pub == nil {
		return
	}
	err := g.pub.PublishStatus(ctx, events.StatusEvent{ProjectID: projectID, Status: string(status)})
	if err != nil {
		log.Printf("[warn] operation=confirm_payment project_id=%s status publish failed: %v", projectID, err)
	}
}
