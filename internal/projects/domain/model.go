package domain

import "time"

// Role identifies which side of the marketplace an actor is on.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
)

// Project is a single client request moving through the lifecycle. Projects
// are never hard-deleted; terminal statuses take that role.
type Project struct {
	ID              string     `json:"id"`
	ClientID        string     `json:"client_id"`
	WorkerID        *string    `json:"worker_id,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ProjectType     string     `json:"project_type"` // skill category: graphics, print, web
	Budget          string     `json:"budget"`       // free-text range as entered by the client
	Status          Status     `json:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	AssignmentNote  *string    `json:"assignment_metadata,omitempty"` // selection rationale
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// CreateProjectRequest carries the project-created trigger payload.
type CreateProjectRequest struct {
	ClientID    string `json:"client_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ProjectType string `json:"project_type"`
	Budget      string `json:"budget"`
}
