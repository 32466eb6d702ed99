// Package chat posts system-authored messages into a project's
// conversation. Message storage and delivery beyond this insert belong to
// the chat backend, not the core.
package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// PostSystemMessage inserts a message with the system sender into the
// project's thread.
func (r *Repository) PostSystemMessage(ctx context.Context, projectID, body string) error {
	const q = `
INSERT INTO messages (id, project_id, sender, body)
VALUES ($1, $2, 'system', $3);
`
	if _, err := r.db.Exec(ctx, q, uuid.New().String(), projectID, body); err != nil {
		return fmt.Errorf("post system message: %w", err)
	}
	return nil
}
