package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/craftlink/marketplace-backend/internal/audit"
	"github.com/craftlink/marketplace-backend/internal/events"
	"github.com/craftlink/marketplace-backend/internal/matcher"
	"github.com/craftlink/marketplace-backend/internal/projects/domain"
)

type ProjectStore interface {
	Create(ctx context.Context, req *domain.CreateProjectRequest) (*domain.Project, error)
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	TransitionStatus(ctx context.Context, id string, from []domain.Status, to domain.Status) (bool, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Project, error)
}

// Matchmaker triggers worker assignment for a project. Matching runs
// asynchronously from the caller's point of view; a failure lands the
// project in no_worker_available, never back in queued.
type Matchmaker interface {
	Assign(ctx context.Context, projectID string) (*matcher.Selection, error)
}

type AuditLog interface {
	Record(ctx context.Context, e audit.Entry) error
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, ev events.StatusEvent) error
}

// Service drives the non-payment parts of the project lifecycle: intake,
// matching triggers, delivery and client approval.
type Service struct {
	projects ProjectStore
	match    Matchmaker
	auditLog AuditLog
	pub      StatusPublisher
}

func NewService(projects ProjectStore, match Matchmaker, auditLog AuditLog, pub StatusPublisher) *Service {
	return &Service{projects: projects, match: match, auditLog: auditLog, pub: pub}
}

// Create validates and persists a new project, then kicks off matching in
// the background. The response never waits on worker selection.
func (s *Service) Create(ctx context.Context, req *domain.CreateProjectRequest) (*domain.Project, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.ClientID == "" {
		return nil, fmt.Errorf("client_id required")
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title required")
	}

	p, err := s.projects.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.record(ctx, p.ID, "project_created", map[string]any{"client_id": p.ClientID})
	s.publish(ctx, p.ID, p.Status)

	go s.triggerMatch(p.ID)
	return p, nil
}

// Get returns a project by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Project, error) {
	return s.projects.GetByID(ctx, id)
}

// ListByStatus returns projects in one lifecycle state, mainly for the ops
// dashboard (stranded no_worker_available queues, flagged projects).
func (s *Service) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Project, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	return s.projects.ListByStatus(ctx, status)
}

// Requeue re-runs matching for a project stranded in no_worker_available,
// typically after new workers come online.
func (s *Service) Requeue(ctx context.Context, id string) (*matcher.Selection, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case domain.StatusQueued, domain.StatusNoWorkerAvailable:
	default:
		return nil, fmt.Errorf("project %s in %s: %w", id, p.Status, domain.ErrInvalidTransition)
	}
	return s.match.Assign(ctx, id)
}

// Deliver records the worker marking the work ready for the client's review.
func (s *Service) Deliver(ctx context.Context, id, workerID string) (*domain.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.WorkerID == nil || *p.WorkerID != workerID {
		return nil, domain.ErrNotProjectWorker
	}

	moved, err := s.projects.TransitionStatus(ctx, id,
		[]domain.Status{domain.StatusInProgress}, domain.StatusReadyForReview)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("project %s in %s: %w", id, p.Status, domain.ErrInvalidTransition)
	}

	s.record(ctx, id, "work_delivered", map[string]any{"worker_id": workerID})
	s.publish(ctx, id, domain.StatusReadyForReview)
	return s.projects.GetByID(ctx, id)
}

// Approve records the client accepting the delivered work. The project then
// waits on the balance payment.
func (s *Service) Approve(ctx context.Context, id, clientID string) (*domain.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ClientID != clientID {
		return nil, domain.ErrNotProjectClient
	}

	moved, err := s.projects.TransitionStatus(ctx, id,
		[]domain.Status{domain.StatusReadyForReview}, domain.StatusApproved)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("project %s in %s: %w", id, p.Status, domain.ErrInvalidTransition)
	}
	s.record(ctx, id, "work_approved", map[string]any{"client_id": clientID})
	s.publish(ctx, id, domain.StatusApproved)

	// Approval immediately opens the balance invoice.
	moved, err = s.projects.TransitionStatus(ctx, id,
		[]domain.Status{domain.StatusApproved}, domain.StatusAwaitingFinal)
	if err != nil {
		return nil, err
	}
	if moved {
		s.publish(ctx, id, domain.StatusAwaitingFinal)
	}
	return s.projects.GetByID(ctx, id)
}

func (s *Service) triggerMatch(projectID string) {
	ctx := context.Background()
	if _, err := s.match.Assign(ctx, projectID); err != nil {
		log.Printf("[warn] operation=match_project project_id=%s matching ended without assignment: %v", projectID, err)
	}
}

func (s *Service) record(ctx context.Context, projectID, action string, detail map[string]any) {
	if s.auditLog == nil {
		return
	}
	if err := s.auditLog.Record(ctx, audit.Entry{ProjectID: projectID, Action: action, Detail: detail}); err != nil {
		log.Printf("[warn] operation=%s project_id=%s audit write failed: %v", action, projectID, err)
	}
}

func (s *Service) publish(ctx context.Context, projectID string, status domain.Status) {
	if s.pub == nil {
		return
	}
	err := s.pub.PublishStatus(ctx, events.StatusEvent{ProjectID: projectID, Status: string(status)})
	if err != nil {
		log.Printf("[warn] operation=project_update project_id=%s status publish failed: %v", projectID, err)
	}
}
