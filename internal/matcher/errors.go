package matcher

import "errors"

var (
	// ErrNoEligibleWorker means the hard filters left zero candidates. The
	// caller converts this to the no_worker_available status, never a panic.
	ErrNoEligibleWorker = errors.New("no eligible worker for project")

	// ErrInvalidSelection means the ranking service picked a worker outside
	// the eligible set. The selection fails closed: no assignment is made.
	ErrInvalidSelection = errors.New("ranking selection outside eligible set")
)
