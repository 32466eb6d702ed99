package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftlink/marketplace-backend/internal/audit"
	"github.com/craftlink/marketplace-backend/internal/events"
	"github.com/craftlink/marketplace-backend/internal/matcher"
	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
	"github.com/craftlink/marketplace-backend/internal/retry"
	workerdomain "github.com/craftlink/marketplace-backend/internal/workers/domain"
)

type fakeProjects struct {
	project     *projdomain.Project
	noWorker    bool
	noWorkerMsg string
	assignFails bool
}

func (f *fakeProjects) GetByID(_ context.Context, _ string) (*projdomain.Project, error) {
	cp := *f.project
	return &cp, nil
}

func (f *fakeProjects) TransitionStatus(_ context.Context, _ string, from []projdomain.Status, to projdomain.Status) (bool, error) {
	for _, s := range from {
		if f.project.Status == s {
			f.project.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProjects) AssignWorker(_ context.Context, _ string, workerID, rationale string) (bool, error) {
	if f.assignFails {
		return false, nil
	}
	if f.project.Status != projdomain.StatusMatching {
		return false, nil
	}
	f.project.Status = projdomain.StatusAssigned
	f.project.WorkerID = &workerID
	f.project.AssignmentNote = &rationale
	return true, nil
}

func (f *fakeProjects) MarkNoWorker(_ context.Context, _ string, reason string) (bool, error) {
	if f.project.Status != projdomain.StatusMatching {
		return false, nil
	}
	f.project.Status = projdomain.StatusNoWorkerAvailable
	f.noWorker = true
	f.noWorkerMsg = reason
	return true, nil
}

type fakeWorkers struct {
	available []workerdomain.WorkerStats
	listErr   error

	claimed  []string
	released []string
	claimErr error
}

func (f *fakeWorkers) ListAvailable(_ context.Context) ([]workerdomain.WorkerStats, error) {
	return f.available, f.listErr
}

func (f *fakeWorkers) ClaimAssignment(_ context.Context, workerID string) error {
	if f.claimErr != nil {
		return f.claimErr
	}
	f.claimed = append(f.claimed, workerID)
	return nil
}

func (f *fakeWorkers) ReleaseClaim(_ context.Context, workerID string) error {
	f.released = append(f.released, workerID)
	return nil
}

type recordingSink struct {
	messages []string
	entries  []audit.Entry
	events   []events.StatusEvent
}

func (r *recordingSink) PostSystemMessage(_ context.Context, _ string, body string) error {
	r.messages = append(r.messages, body)
	return nil
}

func (r *recordingSink) Record(_ context.Context, e audit.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingSink) PublishStatus(_ context.Context, ev events.StatusEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func queuedProject() *projdomain.Project {
	return &projdomain.Project{
		ID:          "p-1",
		ClientID:    "c-1",
		Title:       "Brand logo",
		ProjectType: "logo_design",
		Budget:      "₦60,000",
		Status:      projdomain.StatusQueued,
	}
}

func eligibleWorker(id string) workerdomain.WorkerStats {
	return workerdomain.WorkerStats{
		WorkerID:         id,
		IsAvailable:      true,
		MaxProjectsLimit: 3,
		Skills:           []string{"logo_design"},
		MinimumPrice:     30_000,
	}
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, Delay: time.Millisecond}
}

func TestAssignHappyPath(t *testing.T) {
	projects := &fakeProjects{project: queuedProject()}
	workers := &fakeWorkers{available: []workerdomain.WorkerStats{eligibleWorker("w-1")}}
	sink := &recordingSink{}

	a := NewAssigner(projects, workers, matcher.RotationSelector{}, sink, sink, sink, fastPolicy())

	sel, err := a.Assign(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "w-1", sel.WorkerID)

	assert.Equal(t, projdomain.StatusAssigned, projects.project.Status)
	require.NotNil(t, projects.project.WorkerID)
	assert.Equal(t, "w-1", *projects.project.WorkerID)
	assert.Equal(t, []string{"w-1"}, workers.claimed)
	assert.Empty(t, workers.released)

	require.Len(t, sink.entries, 1)
	assert.Equal(t, "worker_assigned", sink.entries[0].Action)
	require.Len(t, sink.messages, 1)
	assert.Contains(t, sink.messages[0], "Brand logo")
}

func TestAssignDuplicateTriggerIsNoOp(t *testing.T) {
	p := queuedProject()
	workerID, note := "w-1", "fair rotation"
	p.Status = projdomain.StatusAssigned
	p.WorkerID = &workerID
	p.AssignmentNote = &note

	projects := &fakeProjects{project: p}
	workers := &fakeWorkers{}
	a := NewAssigner(projects, workers, matcher.RotationSelector{}, nil, nil, nil, fastPolicy())

	sel, err := a.Assign(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "w-1", sel.WorkerID)
	assert.Equal(t, "fair rotation", sel.Rationale)
	assert.Empty(t, workers.claimed)
}

func TestAssignNoEligibleFallsBack(t *testing.T) {
	projects := &fakeProjects{project: queuedProject()}
	workers := &fakeWorkers{} // nobody available
	sink := &recordingSink{}

	a := NewAssigner(projects, workers, matcher.RotationSelector{}, nil, sink, sink, fastPolicy())

	_, err := a.Assign(context.Background(), "p-1")
	assert.ErrorIs(t, err, matcher.ErrNoEligibleWorker)
	assert.Equal(t, projdomain.StatusNoWorkerAvailable, projects.project.Status)
	assert.Contains(t, projects.noWorkerMsg, "no eligible worker")

	require.NotEmpty(t, sink.events)
	assert.Equal(t, string(projdomain.StatusNoWorkerAvailable), sink.events[len(sink.events)-1].Status)
}

func TestAssignDirectoryFailureFallsBack(t *testing.T) {
	projects := &fakeProjects{project: queuedProject()}
	workers := &fakeWorkers{listErr: errors.New("connection refused")}

	a := NewAssigner(projects, workers, matcher.RotationSelector{}, nil, nil, nil, fastPolicy())

	_, err := a.Assign(context.Background(), "p-1")
	require.Error(t, err)
	assert.Equal(t, projdomain.StatusNoWorkerAvailable, projects.project.Status)
	assert.Contains(t, projects.noWorkerMsg, "worker directory unavailable")
}

func TestAssignClaimFailureFallsBack(t *testing.T) {
	projects := &fakeProjects{project: queuedProject()}
	workers := &fakeWorkers{
		available: []workerdomain.WorkerStats{eligibleWorker("w-1")},
		claimErr:  workerdomain.ErrAtCapacity,
	}

	a := NewAssigner(projects, workers, matcher.RotationSelector{}, nil, nil, nil, fastPolicy())

	_, err := a.Assign(context.Background(), "p-1")
	assert.ErrorIs(t, err, workerdomain.ErrAtCapacity)
	assert.Equal(t, projdomain.StatusNoWorkerAvailable, projects.project.Status)
}

func TestAssignLostWriteReleasesClaim(t *testing.T) {
	p := queuedProject()
	projects := &fakeProjects{project: p, assignFails: true}
	workers := &fakeWorkers{available: []workerdomain.WorkerStats{eligibleWorker("w-1")}}

	a := NewAssigner(projects, workers, matcher.RotationSelector{}, nil, nil, nil, fastPolicy())

	_, err := a.Assign(context.Background(), "p-1")
	require.Error(t, err)
	// The claim may not outlive the failed assignment write.
	assert.Equal(t, []string{"w-1"}, workers.claimed)
	assert.Equal(t, []string{"w-1"}, workers.released)
}

func TestAssignInvalidRankingSelectionFallsBack(t *testing.T) {
	projects := &fakeProjects{project: queuedProject()}
	workers := &fakeWorkers{available: []workerdomain.WorkerStats{eligibleWorker("w-1")}}

	ranker := &stubSelector{err: matcher.ErrInvalidSelection}
	a := NewAssigner(projects, workers, ranker, nil, nil, nil, fastPolicy())

	_, err := a.Assign(context.Background(), "p-1")
	assert.ErrorIs(t, err, matcher.ErrInvalidSelection)
	assert.Equal(t, projdomain.StatusNoWorkerAvailable, projects.project.Status)
	assert.Contains(t, projects.noWorkerMsg, "non-eligible")
}

type stubSelector struct {
	sel *matcher.Selection
	err error
}

func (s *stubSelector) Select(_ context.Context, _ *projdomain.Project, _ []workerdomain.WorkerStats) (*matcher.Selection, error) {
	return s.sel, s.err
}
