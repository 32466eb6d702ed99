package domain

import (
	"errors"
	"time"
)

// Phase identifies which escrow leg a payment settles.
type Phase string

const (
	PhaseDownPayment  Phase = "down_payment"
	PhaseFinalPayment Phase = "final_payment"
)

// Valid reports whether p is a member of the closed phase set.
func (p Phase) Valid() bool {
	return p == PhaseDownPayment || p == PhaseFinalPayment
}

// Deposit and balance shares of the locked agreement amount. Work starts
// after the deposit clears and completes after the balance clears.
const (
	DownPaymentPercent  = 40
	FinalPaymentPercent = 60
)

// PhaseAmount returns the expected payment for a phase, by integer
// percentage of the agreement amount.
func PhaseAmount(agreementAmount int64, phase Phase) int64 {
	switch phase {
	case PhaseDownPayment:
		return agreementAmount * DownPaymentPercent / 100
	case PhaseFinalPayment:
		return agreementAmount * FinalPaymentPercent / 100
	}
	return 0
}

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusConfirmed PaymentStatus = "confirmed"
	StatusFailed    PaymentStatus = "failed"
)

// Payment is one verified gateway transaction. Reference is the provider's
// idempotency key: globally unique, used to deduplicate callbacks.
type Payment struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	PayerID     string        `json:"payer_id"`
	Amount      int64         `json:"amount"`
	Phase       Phase         `json:"payment_type"`
	Status      PaymentStatus `json:"status"`
	Reference   string        `json:"reference"`
	CreatedAt   time.Time     `json:"created_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
}

var (
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrVerificationFailed: the gateway reported failure or a mismatched
	// amount. No state is mutated; the caller may retry the whole call.
	ErrVerificationFailed = errors.New("payment verification failed")

	// ErrPhaseOrderViolation: a final payment arrived without a confirmed
	// deposit. Reported for manual review, never silently reconciled.
	ErrPhaseOrderViolation = errors.New("final payment without confirmed down payment")

	// ErrReferenceReused: a known reference arrived for a different
	// project or phase. Data-consistency fault.
	ErrReferenceReused = errors.New("payment reference reused for different project or phase")
)
