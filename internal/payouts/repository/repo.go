package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftlink/marketplace-backend/internal/payouts/domain"
)

type PayoutRepository struct {
	db *pgxpool.Pool
}

func NewPayoutRepository(db *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{db: db}
}

const payoutColumns = `
id, project_id, worker_id, total_amount, worker_share, platform_fee, status,
transaction_reference, failure_reason, payout_date, created_at, updated_at`

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var p domain.Payout
	err := row.Scan(
		&p.ID, &p.ProjectID, &p.WorkerID, &p.TotalAmount, &p.WorkerShare,
		&p.PlatformFee, &p.Status, &p.TransactionReference, &p.FailureReason,
		&p.PayoutDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByProject returns the payout row for a project. At most one exists per
// project thanks to the unique constraint on project_id.
func (r *PayoutRepository) GetByProject(ctx context.Context, projectID string) (*domain.Payout, error) {
	const q = `SELECT ` + payoutColumns + ` FROM payouts WHERE project_id = $1;`
	return scanPayout(r.db.QueryRow(ctx, q, projectID))
}

// Create inserts a pending payout with the split already computed. If a row
// for the project exists it is returned unchanged, so a retried payout never
// creates a second record or recomputes shares.
func (r *PayoutRepository) Create(ctx context.Context, projectID, workerID string, totalAmount int64) (*domain.Payout, error) {
	workerShare, platformFee := domain.Split(totalAmount)

	const q = `
INSERT INTO payouts (id, project_id, worker_id, total_amount, worker_share, platform_fee, status)
VALUES ($1, $2, $3, $4, $5, $6, 'pending')
RETURNING ` + payoutColumns + `;
`
	p, err := scanPayout(r.db.QueryRow(ctx, q,
		uuid.New().String(), projectID, workerID, totalAmount, workerShare, platformFee))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return r.GetByProject(ctx, projectID)
		}
		return nil, err
	}
	return p, nil
}

// MarkPaid promotes a pending or failed payout to paid. Only the first call
// wins; a payout already paid leaves zero rows updated and the stored row is
// returned with ErrAlreadyPaid.
func (r *PayoutRepository) MarkPaid(ctx context.Context, id, transactionReference string) (*domain.Payout, error) {
	const q = `
UPDATE payouts
SET status = 'paid', transaction_reference = $2, failure_reason = NULL,
    payout_date = now(), updated_at = now()
WHERE id = $1 AND status IN ('pending', 'failed')
RETURNING ` + payoutColumns + `;
`
	p, err := scanPayout(r.db.QueryRow(ctx, q, id, transactionReference))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrPayoutNotFound) {
		return nil, err
	}

	const current = `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1;`
	p, err = scanPayout(r.db.QueryRow(ctx, current, id))
	if err != nil {
		return nil, err
	}
	if p.Status == domain.StatusPaid {
		return p, domain.ErrAlreadyPaid
	}
	return p, nil
}

// MarkFailed records a transfer failure so the sweeper can retry it. A payout
// that was paid concurrently is left alone.
func (r *PayoutRepository) MarkFailed(ctx context.Context, id, reason string) error {
	const q = `
UPDATE payouts
SET status = 'failed', failure_reason = $2, updated_at = now()
WHERE id = $1 AND status <> 'paid';
`
	_, err := r.db.Exec(ctx, q, id, reason)
	return err
}

// ListRetryable returns payouts the sweeper should attempt again, oldest
// first.
func (r *PayoutRepository) ListRetryable(ctx context.Context, limit int) ([]*domain.Payout, error) {
	const q = `
SELECT ` + payoutColumns + `
FROM payouts
WHERE status IN ('pending', 'failed')
ORDER BY created_at ASC
LIMIT $1;
`
	rows, err := r.db.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []*domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}
