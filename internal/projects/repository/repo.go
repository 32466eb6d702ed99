package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftlink/marketplace-backend/internal/projects/domain"
)

// ProjectRepository provides persistence operations for projects. All status
// writes are compare-and-set so re-delivered triggers cannot double-apply.
type ProjectRepository struct {
	db *pgxpool.Pool
}

func NewProjectRepository(db *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `
id, client_id, worker_id, title, description, project_type, budget,
status, rejection_reason, assignment_metadata, created_at, updated_at, completed_at`

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	err := row.Scan(
		&p.ID, &p.ClientID, &p.WorkerID, &p.Title, &p.Description,
		&p.ProjectType, &p.Budget, &p.Status, &p.RejectionReason,
		&p.AssignmentNote, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new project in the queued state.
func (r *ProjectRepository) Create(ctx context.Context, req *domain.CreateProjectRequest) (*domain.Project, error) {
	if req.ClientID == "" {
		return nil, fmt.Errorf("client_id required")
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title required")
	}

	const q = `
INSERT INTO projects (id, client_id, title, description, project_type, budget, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + projectColumns + `;
`
	return scanProject(r.db.QueryRow(ctx, q,
		uuid.New().String(), req.ClientID, req.Title, req.Description,
		req.ProjectType, req.Budget, domain.StatusQueued,
	))
}

// GetByID returns a project or domain.ErrProjectNotFound.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	const q = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1;`
	return scanProject(r.db.QueryRow(ctx, q, id))
}

// TransitionStatus moves a project from any of the expected statuses to the
// target status. Returns false when no row matched, which callers use both
// for optimistic concurrency and for idempotent re-delivery.
func (r *ProjectRepository) TransitionStatus(ctx context.Context, id string, from []domain.Status, to domain.Status) (bool, error) {
	if !to.Valid() {
		return false, domain.ErrInvalidStatus
	}

	const q = `
UPDATE projects
SET status = $3,
    completed_at = CASE WHEN $3 = 'completed' THEN now() ELSE completed_at END,
    updated_at = now()
WHERE id = $1 AND status = ANY($2);
`
	fromStrs := make([]string, 0, len(from))
	for _, s := range from {
		fromStrs = append(fromStrs, string(s))
	}

	ct, err := r.db.Exec(ctx, q, id, fromStrs, string(to))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// AssignWorker records the matcher's selection: worker reference, rationale
// and the matching→assigned transition in one compare-and-set write.
func (r *ProjectRepository) AssignWorker(ctx context.Context, id, workerID, rationale string) (bool, error) {
	const q = `
UPDATE projects
SET worker_id = $2, assignment_metadata = $3, status = $4,
    rejection_reason = NULL, updated_at = now()
WHERE id = $1 AND status = $5;
`
	ct, err := r.db.Exec(ctx, q, id, workerID, rationale,
		string(domain.StatusAssigned), string(domain.StatusMatching))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// MarkNoWorker is the mandatory fallback transition: the project leaves
// matching with a human-readable reason instead of sticking there.
func (r *ProjectRepository) MarkNoWorker(ctx context.Context, id, reason string) (bool, error) {
	const q = `
UPDATE projects
SET status = $2, rejection_reason = $3, updated_at = now()
WHERE id = $1 AND status = $4;
`
	ct, err := r.db.Exec(ctx, q, id,
		string(domain.StatusNoWorkerAvailable), reason, string(domain.StatusMatching))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// Flag marks a project for manual review, recording the reason.
func (r *ProjectRepository) Flag(ctx context.Context, id, reason string) error {
	const q = `
UPDATE projects
SET status = $2, rejection_reason = $3, updated_at = now()
WHERE id = $1;
`
	_, err := r.db.Exec(ctx, q, id, string(domain.StatusFlagged), reason)
	return err
}

// ListByStatus returns projects currently in the given status, oldest first.
func (r *ProjectRepository) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Project, error) {
	const q = `SELECT ` + projectColumns + ` FROM projects WHERE status = $1 ORDER BY created_at;`
	rows, err := r.db.Query(ctx, q, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
