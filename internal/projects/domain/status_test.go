package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHappyPathTransitions(t *testing.T) {
	path := []Status{
		StatusQueued, StatusMatching, StatusAssigned, StatusPendingAgreement,
		StatusPendingDownPayment, StatusInProgress, StatusReadyForReview,
		StatusApproved, StatusAwaitingFinal, StatusCompleted, StatusPayoutCompleted,
	}

	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]),
			"%s -> %s should be legal", path[i], path[i+1])
	}
}

func TestSidePathTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusMatching, StatusNoWorkerAvailable))
	assert.True(t, CanTransition(StatusNoWorkerAvailable, StatusMatching))
	assert.True(t, CanTransition(StatusPendingAgreement, StatusAssigned),
		"rejection reopens the proposal cycle")
}

func TestIllegalTransitions(t *testing.T) {
	cases := []struct{ from, to Status }{
		{StatusQueued, StatusAssigned},
		{StatusMatching, StatusInProgress},
		{StatusPendingDownPayment, StatusCompleted},
		{StatusInProgress, StatusApproved},
		{StatusCompleted, StatusInProgress},
		{StatusPayoutCompleted, StatusMatching},
		{StatusQueued, Status("made_up")},
		{Status("made_up"), StatusQueued},
	}
	for _, tc := range cases {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCancelAndFlagReachability(t *testing.T) {
	for s := range transitions {
		switch {
		case s.Terminal():
			assert.False(t, CanTransition(s, StatusCancelled), "%s is terminal", s)
			assert.False(t, CanTransition(s, StatusFlagged), "%s is terminal", s)
		case s == StatusFlagged:
			assert.False(t, CanTransition(s, StatusFlagged))
		default:
			assert.True(t, CanTransition(s, StatusCancelled), "%s should cancel", s)
			assert.True(t, CanTransition(s, StatusFlagged), "%s should flag", s)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusPayoutCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusNoWorkerAvailable.Terminal(), "requeue must stay possible")
	assert.False(t, StatusCompleted.Terminal(), "payout still owed")
}

func TestWorkerRequired(t *testing.T) {
	assert.False(t, StatusQueued.WorkerRequired())
	assert.False(t, StatusMatching.WorkerRequired())
	assert.False(t, StatusNoWorkerAvailable.WorkerRequired())
	assert.True(t, StatusAssigned.WorkerRequired())
	assert.True(t, StatusInProgress.WorkerRequired())
	assert.True(t, StatusPayoutCompleted.WorkerRequired())
}
