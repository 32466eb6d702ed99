package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
	"github.com/craftlink/marketplace-backend/internal/ranking"
	workerdomain "github.com/craftlink/marketplace-backend/internal/workers/domain"
)

type stubRanker struct {
	resp *ranking.RankResponse
	err  error
	got  *ranking.RankRequest
}

func (s *stubRanker) Rank(_ context.Context, req ranking.RankRequest) (*ranking.RankResponse, error) {
	s.got = &req
	return s.resp, s.err
}

func TestRotationSelectorPicksHead(t *testing.T) {
	eligible := []workerdomain.WorkerStats{
		{WorkerID: "w-1"}, {WorkerID: "w-2"},
	}

	sel, err := RotationSelector{}.Select(context.Background(), &projdomain.Project{}, eligible)
	require.NoError(t, err)
	assert.Equal(t, "w-1", sel.WorkerID)
}

func TestRotationSelectorEmpty(t *testing.T) {
	_, err := RotationSelector{}.Select(context.Background(), &projdomain.Project{}, nil)
	assert.ErrorIs(t, err, ErrNoEligibleWorker)
}

func TestRankedSelectorAcceptsMember(t *testing.T) {
	ranker := &stubRanker{resp: &ranking.RankResponse{
		SelectedWorkerID: "w-2",
		ConfidenceScore:  0.91,
		Reasoning:        "highest rating within budget",
	}}
	s := &RankedSelector{Ranker: ranker}

	eligible := []workerdomain.WorkerStats{{WorkerID: "w-1"}, {WorkerID: "w-2"}}
	sel, err := s.Select(context.Background(), &projdomain.Project{ID: "p-1"}, eligible)
	require.NoError(t, err)
	assert.Equal(t, "w-2", sel.WorkerID)
	assert.Contains(t, sel.Rationale, "highest rating")

	require.NotNil(t, ranker.got)
	assert.Len(t, ranker.got.Candidates, 2)
}

func TestRankedSelectorRejectsNonMember(t *testing.T) {
	ranker := &stubRanker{resp: &ranking.RankResponse{SelectedWorkerID: "w-intruder"}}
	s := &RankedSelector{Ranker: ranker}

	_, err := s.Select(context.Background(), &projdomain.Project{ID: "p-1"},
		[]workerdomain.WorkerStats{{WorkerID: "w-1"}})
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestRankedSelectorPropagatesRankerError(t *testing.T) {
	ranker := &stubRanker{err: errors.New("ranking service unavailable")}
	s := &RankedSelector{Ranker: ranker}

	_, err := s.Select(context.Background(), &projdomain.Project{ID: "p-1"},
		[]workerdomain.WorkerStats{{WorkerID: "w-1"}})
	assert.Error(t, err)
}
