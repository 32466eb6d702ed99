package domain

import (
	"errors"
	"time"
)

// WorkerStats holds the eligibility facts the matcher reads for a single
// specialist: skills, capacity, probation, pricing floor and the fairness
// rotation timestamp.
type WorkerStats struct {
	WorkerID          string     `json:"worker_id"`
	DisplayName       string     `json:"display_name"`
	AverageRating     float64    `json:"average_rating"`
	ActiveProjects    int        `json:"active_projects"`
	CompletedProjects int        `json:"completed_projects"`
	MaxProjectsLimit  int        `json:"max_projects_limit"`
	IsProbation       bool       `json:"is_probation"`
	IsAvailable       bool       `json:"is_available"`
	Skills            []string   `json:"skills"`
	MinimumPrice      int64      `json:"minimum_price"` // 0 means not set
	LastAssignmentAt  *time.Time `json:"last_assignment_at,omitempty"`
	RecipientCode     *string    `json:"recipient_code,omitempty"` // verified payout destination
}

// HasSkill reports whether the worker covers the given project category.
func (w *WorkerStats) HasSkill(category string) bool {
	for _, s := range w.Skills {
		if s == category {
			return true
		}
	}
	return false
}

var (
	ErrWorkerNotFound = errors.New("worker not found")
	ErrAtCapacity     = errors.New("worker at max active projects")
)
