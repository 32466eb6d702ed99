package matcher

import (
	"context"
	"fmt"

	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
	"github.com/craftlink/marketplace-backend/internal/ranking"
	workerdomain "github.com/craftlink/marketplace-backend/internal/workers/domain"
)

// Selection is a matcher decision: the chosen worker and the human-readable
// rationale stored on the project as assignment metadata.
type Selection struct {
	WorkerID  string
	Rationale string
}

// Selector picks one worker from the fairness-sorted eligible set. Two
// strategies exist: plain rotation and a ranking-service refinement.
type Selector interface {
	Select(ctx context.Context, project *projdomain.Project, eligible []workerdomain.WorkerStats) (*Selection, error)
}

// RotationSelector takes the head of the fairness ordering: the eligible
// worker least recently assigned.
type RotationSelector struct{}

func (RotationSelector) Select(_ context.Context, _ *projdomain.Project, eligible []workerdomain.WorkerStats) (*Selection, error) {
	if len(eligible) == 0 {
		return nil, ErrNoEligibleWorker
	}

	w := eligible[0]
	return &Selection{
		WorkerID:  w.WorkerID,
		Rationale: fmt.Sprintf("fair rotation: least recently assigned of %d eligible", len(eligible)),
	}, nil
}

// Ranker is the slice of the ranking client the selector needs.
type Ranker interface {
	Rank(ctx context.Context, req ranking.RankRequest) (*ranking.RankResponse, error)
}

// RankedSelector asks the external ranking service to choose among the
// eligible candidates. The returned worker must be a member of the eligible
// set; anything else fails closed with ErrInvalidSelection.
type RankedSelector struct {
	Ranker Ranker
}

func (s *RankedSelector) Select(ctx context.Context, project *projdomain.Project, eligible []workerdomain.WorkerStats) (*Selection, error) {
	if len(eligible) == 0 {
		return nil, ErrNoEligibleWorker
	}

	candidates := make([]ranking.Candidate, 0, len(eligible))
	for _, w := range eligible {
		candidates = append(candidates, ranking.Candidate{
			WorkerID:      w.WorkerID,
			Skills:        w.Skills,
			AverageRating: w.AverageRating,
			ActiveLoad:    w.ActiveProjects,
		})
	}

	resp, err := s.Ranker.Rank(ctx, ranking.RankRequest{
		ProjectID:   project.ID,
		Title:       project.Title,
		Description: project.Description,
		ProjectType: project.ProjectType,
		Candidates:  candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("rank candidates: %w", err)
	}

	for _, w := range eligible {
		if w.WorkerID == resp.SelectedWorkerID {
			return &Selection{
				WorkerID:  resp.SelectedWorkerID,
				Rationale: fmt.Sprintf("ranked selection (confidence %.2f): %s", resp.ConfidenceScore, resp.Reasoning),
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrInvalidSelection, resp.SelectedWorkerID)
}
