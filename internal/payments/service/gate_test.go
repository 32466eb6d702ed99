package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agrdomain "github.com/craftlink/marketplace-backend/internal/agreements/domain"
	"github.com/craftlink/marketplace-backend/internal/audit"
	"github.com/craftlink/marketplace-backend/internal/events"
	"github.com/craftlink/marketplace-backend/internal/gateway"
	"github.com/craftlink/marketplace-backend/internal/payments/domain"
	projdomain "github.com/craftlink/marketplace-backend/internal/projects/domain"
)

type fakePayments struct {
	byReference map[string]*domain.Payment
	confirmed   map[domain.Phase]*domain.Payment
}

func newFakePayments() *fakePayments {
	return &fakePayments{
		byReference: map[string]*domain.Payment{},
		confirmed:   map[domain.Phase]*domain.Payment{},
	}
}

func (f *fakePayments) GetByReference(_ context.Context, reference string) (*domain.Payment, error) {
	if p, ok := f.byReference[reference]; ok {
		return p, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (f *fakePayments) GetConfirmed(_ context.Context, _ string, phase domain.Phase) (*domain.Payment, error) {
	if p, ok := f.confirmed[phase]; ok {
		return p, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (f *fakePayments) RecordConfirmed(_ context.Context, projectID, payerID string, amount int64, phase domain.Phase, reference string) (*domain.Payment, error) {
	if p, ok := f.byReference[reference]; ok {
		return p, nil
	}
	p := &domain.Payment{
		ID: "pay-" + reference, ProjectID: projectID, PayerID: payerID,
		Amount: amount, Phase: phase, Status: domain.StatusConfirmed, Reference: reference,
	}
	f.byReference[reference] = p
	f.confirmed[phase] = p
	return p, nil
}

type fakeGateProjects struct {
	project *projdomain.Project
	flagged string
}

func (f *fakeGateProjects) GetByID(_ context.Context, _ string) (*projdomain.Project, error) {
	cp := *f.project
	return &cp, nil
}

func (f *fakeGateProjects) TransitionStatus(_ context.Context, _ string, from []projdomain.Status, to projdomain.Status) (bool, error) {
	for _, s := range from {
		if f.project.Status == s {
			f.project.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGateProjects) Flag(_ context.Context, _, reason string) error {
	f.project.Status = projdomain.StatusFlagged
	f.flagged = reason
	return nil
}

type fakeAgreements struct {
	agreement *agrdomain.Agreement
}

func (f *fakeAgreements) GetActiveByProject(_ context.Context, _ string) (*agrdomain.Agreement, error) {
	if f.agreement == nil {
		return nil, agrdomain.ErrNoActiveAgreement
	}
	return f.agreement, nil
}

type fakeVerifier struct {
	result *gateway.VerifyResult
	err    error
}

func (f *fakeVerifier) VerifyTransaction(_ context.Context, reference string) (*gateway.VerifyResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.Reference = reference
	return &r, nil
}

type fakePayoutEngine struct {
	calls []string
	err   error
}

func (f *fakePayoutEngine) Payout(_ context.Context, projectID string) error {
	f.calls = append(f.calls, projectID)
	return f.err
}

type gateSink struct {
	entries []audit.Entry
	events  []events.StatusEvent
	seen    map[string]bool
}

func (g *gateSink) Record(_ context.Context, e audit.Entry) error {
	g.entries = append(g.entries, e)
	return nil
}

func (g *gateSink) PublishStatus(_ context.Context, ev events.StatusEvent) error {
	g.events = append(g.events, ev)
	return nil
}

func (g *gateSink) SeenReference(_ context.Context, reference string) (bool, error) {
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	prior := g.seen[reference]
	g.seen[reference] = true
	return prior, nil
}

func lockedAgreement(amount int64) *agrdomain.Agreement {
	return &agrdomain.Agreement{
		ID: "agr-1", ProjectID: "p-1", Amount: amount,
		ClientAgreed: true, FreelancerAgreed: true, Locked: true,
	}
}

func gateProject(status projdomain.Status) *fakeGateProjects {
	workerID := "w-1"
	return &fakeGateProjects{project: &projdomain.Project{
		ID: "p-1", ClientID: "c-1", WorkerID: &workerID, Status: status,
	}}
}

func newTestGate(projects *fakeGateProjects, payments *fakePayments, verifier *fakeVerifier,
	payouts *fakePayoutEngine, sink *gateSink) *Gate {
	return NewGate(payments, projects, &fakeAgreements{agreement: lockedAgreement(100_000)},
		verifier, payouts, sink, sink)
}

func TestConfirmDownPayment(t *testing.T) {
	projects := gateProject(projdomain.StatusPendingDownPayment)
	payments := newFakePayments()
	sink := &gateSink{}
	gate := newTestGate(projects, payments, &fakeVerifier{result: &gateway.VerifyResult{Status: "success", Amount: 40_000}}, &fakePayoutEngine{}, sink)

	status, err := gate.Confirm(context.Background(), "p-1", domain.PhaseDownPayment, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, projdomain.StatusInProgress, status)
	assert.Equal(t, projdomain.StatusInProgress, projects.project.Status)

	stored, err := payments.GetByReference(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, int64(40_000), stored.Amount)
}

func TestConfirmIsIdempotentPerReference(t *testing.T) {
	projects := gateProject(projdomain.StatusPendingDownPayment)
	payments := newFakePayments()
	payouts := &fakePayoutEngine{}
	gate := newTestGate(projects, payments, &fakeVerifier{result: &gateway.VerifyResult{Status: "success", Amount: 40_000}}, payouts, &gateSink{})

	_, err := gate.Confirm(context.Background(), "p-1", domain.PhaseDownPayment, "ref-1")
	require.NoError(t, err)

	// Replayed callback: same answer, no second transition, no payout.
	status, err := gate.Confirm(context.Background(), "p-1", domain.PhaseDownPayment, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, projdomain.StatusInProgress, status)
	assert.Empty(t, payouts.calls)
}

// flakyGateProjects fails the first N TransitionStatus calls to model a
// transient store error between recording the payment and advancing status.
type flakyGateProjects struct {
	fakeGateProjects
	failures int
}

func (f *flakyGateProjects) TransitionStatus(ctx context.Context, id string, from []projdomain.Status, to projdomain.Status) (bool, error) {
	if f.failures > 0 {
		f.failures--
		return false, errors.New("store unavailable")
	}
	return f.fakeGateProjects.TransitionStatus(ctx, id, from, to)
}

func TestConfirmReplayRecoversFailedAdvance(t *testing.T) {
	projects := &flakyGateProjects{fakeGateProjects: *gateProject(projdomain.StatusPendingDownPayment), failures: 1}
	payments := newFakePayments()
	gate := NewGate(payments, projects, &fakeAgreements{agreement: lockedAgreement(100_000)},
		&fakeVerifier{result: &gateway.VerifyResult{Status: "success", Amount: 40_000}}, &fakePayoutEngine{}, nil, nil)

	_, err := gate.Confirm(context.Background(), "p-1", domain.PhaseDownPayment, "ref-1")
	require.Error(t, err)

	// The payment row landed even though the advance failed.
	stored, err := payments.GetByReference(context.Background(), "ref-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, stored.Status)
	require.Equal(t, projdomain.StatusPendingDownPayment, projects.project.Status)

	// The replayed callback reconciles the stranded transition.
	status, err := gate.Confirm(context.Background(), "p-1", domain.PhaseDownPayment, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, projdomain.StatusInProgress, status)
	assert.Equal(t, projdomain.StatusInProgress, projects.project.Status)
}

func TestConfirmReplayRetriesDeferredPayout(t *testing.T) {
	projects := gateProject(projdomain.StatusAwaitingFinal)
	payments := newFakePayments()
	payments.confirmed[domain.PhaseDownPayment] = &domain.Payment{
		ProjectID: "p-1", Phase: domain.PhaseDownPayment, Status: domain.StatusConfirmed,
	}
	payouts := &fakePayoutEngine{err: errors.New("transfer service down")}
	gate := newTestGate(projects, payments, &fakeVerifier{result: &gateway.VerifyResult{Status: "success", Amount: 60_000}}, payouts, &gateSink{})

	_, err := gate.Confirm(context.Background(), "p-1", domain.PhaseFinalPayment, "ref-2")
	require.NoError(t, err)
	require.Len(t, payouts.calls, 1)

	// The replay re-triggers the payout once the engine is healthy again.
	payouts.err = nil
	status, err := gate.Confirm(context.Background(), "p-1", domain.PhaseFinalPayment, "ref-2")
	require.NoError(t, err)
	assert.Equal(t, projdomain.StatusCompleted, status)
	assert.Len(t, payouts.calls, 2)
}

func TestConfirmRejectsReusedReference(t *testing.T) {
	projects := gateProject(projdomain.StatusPendingDownPayment)
	payments := newFakePayments()
	gate := newTestGate(projects, payments, &fakeVerifier{result: &gateway.VerifyResult{Status: "success", Amount: 40_000}}, &fakePayoutEngine{}, &gateSink{})

	_, err := gate.Confirm(context.Background(), "p-1", domain.PhaseDownPayment, "ref-1")
	require.NoError(t, err)

	// Same reference arriving for the other phase is a consistency fault.
	_, err = gate.Confirm(context.Background(), "p-1", domain.PhaseFinalPayment, "ref-1")
	assert.ErrorIs(t, err, domain.ErrReferenceReused)
}

func TestConfirmFinalWithoutDepositFlagsProject(t *testing.T) {
	projects := gateProject(projdomain.StatusAwaitingFinal)
	payments := newFakePayments()
	sink := &gateSink{}
	gate := newTestGate(projects, payments, &fakeVerifier{result: &gateway.VerifyResult{Status: "success", Amount: 60_000}}, &fakePayoutEngine{}, sink)

	_, err := gate.Confirm(context.Background(), "p-1", domain.PhaseFinalPayment, "ref-2")
	assert.ErrorIs(t, err, domain.ErrPhaseOrderViolation)
	assert.Equal(t, projdomain.StatusFlagged, projects.project.Status)
	assert.Contains(t, projects.flagged, "without confirmed down payment")
}

func TestConfirmVerificationShortfall(t *testing.T) {
	projects := gateProject(projdomain.StatusPendingDownPayment)
	payments := newFakePayments()
	gate := newTestGate(projects, payments, &fakeVerifier{result: &gateway.VerifyResult{Status: "success", Amount: 39_999}}, &fakePayoutEngine{}, &gateSink{})

	_, err := gate.Confirm(context.Background(), "p-1", domain.PhaseDownPayment, "ref-1")
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)
	// Nothing recorded, nothing advanced.
	assert.Equal(t, projdomain.StatusPendingDownPayment, projects.project.Status)
	_, err = payments.GetByReference(context.Background(), "ref-1")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestConfirmGatewayFailure(t *testing.T) {
	projects := gateProject(projdomain.StatusPendingDownPayment)
	gate := newTestGate(projects, newFakePayments(), &fakeVerifier{err: errors.New("gateway timeout")}, &fakePayoutEngine{}, &gateSink{})

	_, err := gate.Confirm(context.Background(), "p-1", domain.PhaseDownPayment, "ref-1")
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)
	assert.Equal(t, projdomain.StatusPendingDownPayment, projects.project.Status)
}

func TestConfirmFinalTriggersPayout(t *testing.T) {
	projects := gateProject(projdomain.StatusAwaitingFinal)
	payments := newFakePayments()
	payments.confirmed[domain.PhaseDownPayment] = &domain.Payment{
		ProjectID: "p-1", Phase: domain.PhaseDownPayment, Status: domain.StatusConfirmed,
	}
	payouts := &fakePayoutEngine{}
	gate := newTestGate(projects, payments, &fakeVerifier{result: &gateway.VerifyResult{Status: "success", Amount: 60_000}}, payouts, &gateSink{})

	status, err := gate.Confirm(context.Background(), "p-1", domain.PhaseFinalPayment, "ref-2")
	require.NoError(t, err)
	assert.Equal(t, projdomain.StatusCompleted, status)
	assert.Equal(t, []string{"p-1"}, payouts.calls)
}

func TestConfirmPayoutFailureIsContained(t *testing.T) {
	projects := gateProject(projdomain.StatusAwaitingFinal)
	payments := newFakePayments()
	payments.confirmed[domain.PhaseDownPayment] = &domain.Payment{
		ProjectID: "p-1", Phase: domain.PhaseDownPayment, Status: domain.StatusConfirmed,
	}
	payouts := &fakePayoutEngine{err: errors.New("transfer service down")}
	sink := &gateSink{}
	gate := newTestGate(projects, payments, &fakeVerifier{result: &gateway.VerifyResult{Status: "success", Amount: 60_000}}, payouts, sink)

	status, err := gate.Confirm(context.Background(), "p-1", domain.PhaseFinalPayment, "ref-2")
	require.NoError(t, err, "payout failure must not fail the confirmation")
	assert.Equal(t, projdomain.StatusCompleted, status)

	var deferred bool
	for _, e := range sink.entries {
		if e.Action == "payout_deferred" {
			deferred = true
		}
	}
	assert.True(t, deferred)
}

func TestConfirmWrongStatus(t *testing.T) {
	projects := gateProject(projdomain.StatusAssigned)
	gate := newTestGate(projects, newFakePayments(), &fakeVerifier{result: &gateway.VerifyResult{Status: "success", Amount: 40_000}}, &fakePayoutEngine{}, &gateSink{})

	_, err := gate.Confirm(context.Background(), "p-1", domain.PhaseDownPayment, "ref-1")
	assert.ErrorIs(t, err, projdomain.ErrInvalidTransition)
}

func TestConfirmRejectsUnknownPhase(t *testing.T) {
	gate := newTestGate(gateProject(projdomain.StatusPendingDownPayment), newFakePayments(), &fakeVerifier{}, &fakePayoutEngine{}, &gateSink{})

	_, err := gate.Confirm(context.Background(), "p-1", domain.Phase("tip"), "ref-1")
	assert.Error(t, err)
}
