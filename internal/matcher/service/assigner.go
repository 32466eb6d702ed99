package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/craftlink/marketplace-backend/internal/audit"
	"github.com/craftlink/marketplace-backend/internal/events"
	"github.com/craftlink/marketplace-backend/internal/matcher"
	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
	"github.com/craftlink/marketplace-backend/internal/retry"
	workerdomain "github.com/craftlink/marketplace-backend/internal/workers/domain"
)

// ProjectStore is the slice of the project repository the assigner writes.
type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*projdomain.Project, error)
	TransitionStatus(ctx context.Context, id string, from []projdomain.Status, to projdomain.Status) (bool, error)
	AssignWorker(ctx context.Context, id, workerID, rationale string) (bool, error)
	MarkNoWorker(ctx context.Context, id, reason string) (bool, error)
}

// WorkerDirectory is the slice of the worker repository the assigner reads
// and claims against.
type WorkerDirectory interface {
	ListAvailable(ctx context.Context) ([]workerdomain.WorkerStats, error)
	ClaimAssignment(ctx context.Context, workerID string) error
	ReleaseClaim(ctx context.Context, workerID string) error
}

type MessagePoster interface {
	PostSystemMessage(ctx context.Context, projectID, body string) error
}

type AuditLog interface {
	Record(ctx context.Context, e audit.Entry) error
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, ev events.StatusEvent) error
}

// Assigner drives the match step: eligibility filtering, strategy selection
// and the assignment side effects, with the never-stuck fallback on every
// failure path.
type Assigner struct {
	projects ProjectStore
	workers  WorkerDirectory
	selector matcher.Selector
	chat     MessagePoster
	auditLog AuditLog
	pub      StatusPublisher
	retry    retry.Policy
}

func NewAssigner(projects ProjectStore, workers WorkerDirectory, selector matcher.Selector,
	chat MessagePoster, auditLog AuditLog, pub StatusPublisher, policy retry.Policy) *Assigner {
	if policy.MaxAttempts == 0 {
		policy = retry.Default
	}
	return &Assigner{
		projects: projects,
		workers:  workers,
		selector: selector,
		chat:     chat,
		auditLog: auditLog,
		pub:      pub,
		retry:    policy,
	}
}

// Assign matches the project to a worker. Outcomes:
//   - success: project assigned, worker claimed, Selection returned
//   - already assigned (duplicate trigger): existing assignment returned
//   - zero eligible or external dependency failure: project moved to
//     no_worker_available with a readable reason, sentinel error returned
//
// Assign never leaves a project in matching on a failure path.
func (a *Assigner) Assign(ctx context.Context, projectID string) (*matcher.Selection, error) {
	p, err := a.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if p.WorkerID != nil && p.Status.WorkerRequired() {
		// Duplicate trigger delivery; report the existing assignment.
		rationale := ""
		if p.AssignmentNote != nil {
			rationale = *p.AssignmentNote
		}
		return &matcher.Selection{WorkerID: *p.WorkerID, Rationale: rationale}, nil
	}

	if err := a.enterMatching(ctx, p); err != nil {
		return nil, err
	}

	var available []workerdomain.WorkerStats
	err = a.retry.Do(ctx, func(ctx context.Context) error {
		var lerr error
		available, lerr = a.workers.ListAvailable(ctx)
		return lerr
	})
	if err != nil {
		return nil, a.fallback(ctx, projectID, fmt.Sprintf("worker directory unavailable: %v", err), err)
	}

	eligible := matcher.EligibleWorkers(p, available)
	if len(eligible) == 0 {
		return nil, a.fallback(ctx, projectID, "no eligible worker matched category, capacity and budget filters", matcher.ErrNoEligibleWorker)
	}

	sel, err := a.selector.Select(ctx, p, eligible)
	if err != nil {
		if errors.Is(err, matcher.ErrInvalidSelection) {
			return nil, a.fallback(ctx, projectID, "ranking service selected a non-eligible worker", err)
		}
		return nil, a.fallback(ctx, projectID, fmt.Sprintf("selection failed: %v", err), err)
	}

	if err := a.workers.ClaimAssignment(ctx, sel.WorkerID); err != nil {
		return nil, a.fallback(ctx, projectID, fmt.Sprintf("selected worker could not be claimed: %v", err), err)
	}

	moved, err := a.projects.AssignWorker(ctx, projectID, sel.WorkerID, sel.Rationale)
	if err != nil || !moved {
		// Compensating action: the claim must not outlive a failed
		// assignment write.
		if rerr := a.workers.ReleaseClaim(ctx, sel.WorkerID); rerr != nil {
			log.Printf("[error] operation=assign project_id=%s release claim failed: %v", projectID, rerr)
		}
		if err != nil {
			return nil, a.fallback(ctx, projectID, fmt.Sprintf("assignment write failed: %v", err), err)
		}
		// Lost the race to a concurrent trigger; surface its result.
		cur, gerr := a.projects.GetByID(ctx, projectID)
		if gerr != nil {
			return nil, gerr
		}
		if cur.WorkerID != nil {
			rationale := ""
			if cur.AssignmentNote != nil {
				rationale = *cur.AssignmentNote
			}
			return &matcher.Selection{WorkerID: *cur.WorkerID, Rationale: rationale}, nil
		}
		return nil, fmt.Errorf("project %s in %s: %w", projectID, cur.Status, projdomain.ErrInvalidTransition)
	}

	a.afterAssign(ctx, p, sel)
	return sel, nil
}

// enterMatching moves queued and re-queued projects into matching. A project
// already in matching passes through (retried trigger).
func (a *Assigner) enterMatching(ctx context.Context, p *projdomain.Project) error {
	switch p.Status {
	case projdomain.StatusMatching:
		return nil
	case projdomain.StatusQueued, projdomain.StatusNoWorkerAvailable:
		moved, err := a.projects.TransitionStatus(ctx, p.ID,
			[]projdomain.Status{p.Status}, projdomain.StatusMatching)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("project %s: %w", p.ID, projdomain.ErrInvalidTransition)
		}
		return nil
	default:
		return fmt.Errorf("project %s in %s: %w", p.ID, p.Status, projdomain.ErrInvalidTransition)
	}
}

// fallback is the mandatory failure transition: matching →
// no_worker_available with a reason. The original error is returned so the
// caller can report it; the project is never left stuck.
func (a *Assigner) fallback(ctx context.Context, projectID, reason string, cause error) error {
	moved, err := a.projects.MarkNoWorker(ctx, projectID, reason)
	if err != nil {
		log.Printf("[error] operation=assign project_id=%s fallback transition failed: %v", projectID, err)
	} else if moved {
		a.publish(ctx, projectID, projdomain.StatusNoWorkerAvailable, reason)
	}
	return cause
}

// afterAssign runs the best-effort side effects. None of them can fail the
// assignment itself; errors are logged.
func (a *Assigner) afterAssign(ctx context.Context, p *projdomain.Project, sel *matcher.Selection) {
	if a.chat != nil {
		msg := fmt.Sprintf("A specialist has been assigned to %q and will reach out shortly.", p.Title)
		if err := a.chat.PostSystemMessage(ctx, p.ID, msg); err != nil {
			log.Printf("[warn] operation=assign project_id=%s chat message failed: %v", p.ID, err)
		}
	}
	if a.auditLog != nil {
		err := a.auditLog.Record(ctx, audit.Entry{
			ProjectID: p.ID,
			Action:    "worker_assigned",
			Detail:    map[string]any{"worker_id": sel.WorkerID, "rationale": sel.Rationale},
		})
		if err != nil {
			log.Printf("[warn] operation=assign project_id=%s audit write failed: %v", p.ID, err)
		}
	}
	a.publish(ctx, p.ID, projdomain.StatusAssigned, "")
}

func (a *Assigner) publish(ctx context.Context, projectID string, status projdomain.Status, reason string) {
	if a.pub == nil {
		return
	}
	err := a.pub.PublishStatus(ctx, events.StatusEvent{
		ProjectID: projectID,
		Status:    string(status),
		Reason:    reason,
	})
	if err != nil {
		log.Printf("[warn] operation=assign project_id=%s status publish failed: %v", projectID, err)
	}
}
