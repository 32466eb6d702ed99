package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftlink/marketplace-backend/internal/workers/domain"
)

// WorkerRepository reads and updates worker eligibility facts.
type WorkerRepository struct {
	db *pgxpool.Pool
}

func NewWorkerRepository(db *pgxpool.Pool) *WorkerRepository {
	return &WorkerRepository{db: db}
}

const workerColumns = `
worker_id, display_name, average_rating, active_projects, completed_projects,
max_projects_limit, is_probation, is_available, skills, minimum_price,
last_assignment_at, recipient_code`

func scanWorker(row pgx.Row) (*domain.WorkerStats, error) {
	var w domain.WorkerStats
	err := row.Scan(
		&w.WorkerID, &w.DisplayName, &w.AverageRating, &w.ActiveProjects,
		&w.CompletedProjects, &w.MaxProjectsLimit, &w.IsProbation,
		&w.IsAvailable, &w.Skills, &w.MinimumPrice, &w.LastAssignmentAt,
		&w.RecipientCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkerNotFound
		}
		return nil, err
	}
	return &w, nil
}

// GetByID returns a single worker's stats.
func (r *WorkerRepository) GetByID(ctx context.Context, workerID string) (*domain.WorkerStats, error) {
	const q = `SELECT ` + workerColumns + ` FROM worker_stats WHERE worker_id = $1;`
	return scanWorker(r.db.QueryRow(ctx, q, workerID))
}

// ListAvailable returns every available specialist. Eligibility filtering
// beyond availability (skill, probation, capacity, price floor) lives in the
// matcher so the rules stay in one place.
func (r *WorkerRepository) ListAvailable(ctx context.Context) ([]domain.WorkerStats, error) {
	const q = `
SELECT ` + workerColumns + `
FROM worker_stats
WHERE is_available = true
ORDER BY last_assignment_at NULLS FIRST, worker_id;
`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.WorkerStats, 0, 16)
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// ClaimAssignment increments the worker's active count and stamps
// last_assignment_at. The capacity invariant is enforced in SQL: the update
// only lands while active_projects < max_projects_limit.
func (r *WorkerRepository) ClaimAssignment(ctx context.Context, workerID string) error {
	const q = `
UPDATE worker_stats
SET active_projects = active_projects + 1, last_assignment_at = now()
WHERE worker_id = $1 AND active_projects < max_projects_limit;
`
	ct, err := r.db.Exec(ctx, q, workerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrAtCapacity
	}
	return nil
}

// ReleaseClaim undoes a ClaimAssignment that could not be completed, as the
// compensating action when the project-side assignment write loses a race.
func (r *WorkerRepository) ReleaseClaim(ctx context.Context, workerID string) error {
	const q = `
UPDATE worker_stats
SET active_projects = GREATEST(active_projects - 1, 0)
WHERE worker_id = $1;
`
	_, err := r.db.Exec(ctx, q, workerID)
	return err
}

// ReleaseAssignment decrements the active count and credits a completion.
// Called from completion events; floors at zero.
func (r *WorkerRepository) ReleaseAssignment(ctx context.Context, workerID string) error {
	const q = `
UPDATE worker_stats
SET active_projects = GREATEST(active_projects - 1, 0),
    completed_projects = completed_projects + 1
WHERE worker_id = $1;
`
	_, err := r.db.Exec(ctx, q, workerID)
	return err
}
