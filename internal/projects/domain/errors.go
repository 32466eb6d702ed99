package domain

import "errors"

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("invalid project status")
	ErrNotProjectWorker  = errors.New("caller is not the assigned worker")
	ErrNotProjectClient  = errors.New("caller is not the project client")
)
