package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftlink/marketplace-backend/internal/payments/domain"
)

type PaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
id, project_id, payer_id, amount, payment_type, status, reference,
created_at, confirmed_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.ProjectID, &p.PayerID, &p.Amount, &p.Phase, &p.Status,
		&p.Reference, &p.CreatedAt, &p.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByReference looks a payment up by its gateway reference.
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1;`
	return scanPayment(r.db.QueryRow(ctx, q, reference))
}

// GetConfirmed returns the confirmed payment for a (project, phase) pair.
// The partial unique index on the table guarantees at most one exists.
func (r *PaymentRepository) GetConfirmed(ctx context.Context, projectID string, phase domain.Phase) (*domain.Payment, error) {
	const q = `
SELECT ` + paymentColumns + `
FROM payments
WHERE project_id = $1 AND payment_type = $2 AND status = 'confirmed';
`
	return scanPayment(r.db.QueryRow(ctx, q, projectID, string(phase)))
}

// RecordConfirmed inserts a confirmed payment. A unique violation on the
// reference means a concurrent delivery already recorded it; the existing
// row is returned so the caller stays idempotent.
func (r *PaymentRepository) RecordConfirmed(ctx context.Context, projectID, payerID string, amount int64, phase domain.Phase, reference string) (*domain.Payment, error) {
	const q = `
INSERT INTO payments (id, project_id, payer_id, amount, payment_type, status, reference, confirmed_at)
VALUES ($1, $2, $3, $4, $5, 'confirmed', $6, now())
RETURNING ` + paymentColumns + `;
`
	p, err := scanPayment(r.db.QueryRow(ctx, q,
		uuid.New().String(), projectID, payerID, amount, string(phase), reference))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return r.GetByReference(ctx, reference)
		}
		return nil, err
	}
	return p, nil
}
