// Package audit persists the append-only trail of orchestration decisions:
// assignments, agreement confirmations, payment confirmations and payouts.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Entry struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Action    string         `json:"action"`
	ActorID   string         `json:"actor_id,omitempty"` // empty for system actions
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Record appends an audit entry. Failures are the caller's to log; audit
// writes never abort the operation they describe.
func (r *Repository) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}

	const q = `
INSERT INTO audit_log (id, project_id, action, actor_id, detail)
VALUES ($1, $2, $3, $4, $5);
`
	_, err = r.db.Exec(ctx, q, e.ID, e.ProjectID, e.Action, e.ActorID, detail)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByProject returns a project's trail, oldest first.
func (r *Repository) ListByProject(ctx context.Context, projectID string) ([]Entry, error) {
	const q = `
SELECT id, project_id, action, actor_id, detail, created_at
FROM audit_log
WHERE project_id = $1
ORDER BY created_at;
`
	rows, err := r.db.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0, 16)
	for rows.Next() {
		var e Entry
		var detail []byte
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Action, &e.ActorID, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
