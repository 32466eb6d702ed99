package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftlink/marketplace-backend/internal/agreements/domain"
	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
)

type AgreementRepository struct {
	db *pgxpool.Pool
}

func NewAgreementRepository(db *pgxpool.Pool) *AgreementRepository {
	return &AgreementRepository{db: db}
}

const agreementColumns = `
id, project_id, proposer_id, amount, deliverables, timeline,
client_agreed, freelancer_agreed, locked, superseded_at, created_at`

func scanAgreement(row pgx.Row) (*domain.Agreement, error) {
	var a domain.Agreement
	err := row.Scan(
		&a.ID, &a.ProjectID, &a.ProposerID, &a.Amount, &a.Deliverables,
		&a.Timeline, &a.ClientAgreed, &a.FreelancerAgreed, &a.Locked,
		&a.SupersededAt, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgreementNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create supersedes any active agreement for the project and inserts the new
// proposal with the worker's side pre-accepted, in one transaction.
func (r *AgreementRepository) Create(ctx context.Context, projectID, proposerID string, amount int64, deliverables, timeline string) (*domain.Agreement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const supersede = `
UPDATE agreements SET superseded_at = now()
WHERE project_id = $1 AND superseded_at IS NULL AND locked = false;
`
	if _, err := tx.Exec(ctx, supersede, projectID); err != nil {
		return nil, fmt.Errorf("supersede active agreement: %w", err)
	}

	const insert = `
INSERT INTO agreements (id, project_id, proposer_id, amount, deliverables, timeline, freelancer_agreed)
VALUES ($1, $2, $3, $4, $5, $6, true)
RETURNING ` + agreementColumns + `;
`
	a, err := scanAgreement(tx.QueryRow(ctx, insert,
		uuid.New().String(), projectID, proposerID, amount, deliverables, timeline))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AgreementRepository) GetByID(ctx context.Context, id string) (*domain.Agreement, error) {
	const q = `SELECT ` + agreementColumns + ` FROM agreements WHERE id = $1;`
	return scanAgreement(r.db.QueryRow(ctx, q, id))
}

// GetActiveByProject returns the single non-superseded agreement.
func (r *AgreementRepository) GetActiveByProject(ctx context.Context, projectID string) (*domain.Agreement, error) {
	const q = `
SELECT ` + agreementColumns + `
FROM agreements
WHERE project_id = $1 AND superseded_at IS NULL;
`
	a, err := scanAgreement(r.db.QueryRow(ctx, q, projectID))
	if errors.Is(err, domain.ErrAgreementNotFound) {
		return nil, domain.ErrNoActiveAgreement
	}
	return a, err
}

// SetAccepted flips one side's flag and returns the row as written, so the
// both-sides decision is always made on a fresh read rather than stale
// caller state.
func (r *AgreementRepository) SetAccepted(ctx context.Context, id string, role projdomain.Role) (*domain.Agreement, error) {
	var column string
	switch role {
	case projdomain.RoleClient:
		column = "client_agreed"
	case projdomain.RoleFreelancer:
		column = "freelancer_agreed"
	default:
		return nil, domain.ErrInvalidRole
	}

	// Column name comes from the closed Role set above, never from input.
	q := `
UPDATE agreements SET ` + column + ` = true
WHERE id = $1 AND superseded_at IS NULL AND locked = false
RETURNING ` + agreementColumns + `;
`
	a, err := scanAgreement(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, domain.ErrAgreementNotFound) {
		// Distinguish a missing row from a stale one.
		existing, gerr := r.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if existing.Locked {
			return existing, domain.ErrAgreementLocked
		}
		if existing.SupersededAt != nil {
			return nil, domain.ErrNoActiveAgreement
		}
		return nil, domain.ErrAgreementNotFound
	}
	return a, err
}

// Lock is the single-winner confirm step: only one caller observes true for
// a given agreement, no matter how many accepts race.
func (r *AgreementRepository) Lock(ctx context.Context, id string) (bool, error) {
	const q = `
UPDATE agreements SET locked = true
WHERE id = $1 AND locked = false
  AND client_agreed = true AND freelancer_agreed = true
  AND superseded_at IS NULL;
`
	ct, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// Supersede clears the active agreement on rejection or reassignment.
func (r *AgreementRepository) Supersede(ctx context.Context, projectID string) error {
	const q = `
UPDATE agreements SET superseded_at = now()
WHERE project_id = $1 AND superseded_at IS NULL AND locked = false;
`
	_, err := r.db.Exec(ctx, q, projectID)
	return err
}
