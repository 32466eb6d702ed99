package domain

import (
	"errors"
	"time"
)

// Revenue split applied to the locked agreement amount once a project
// completes. Each share is truncated independently; any kobo lost to
// truncation stays with the platform ledger.
const (
	WorkerSharePercent = 80
	PlatformFeePercent = 20
)

// Split returns the worker share and platform fee for a total amount.
func Split(total int64) (workerShare, platformFee int64) {
	workerShare = total * WorkerSharePercent / 100
	platformFee = total * PlatformFeePercent / 100
	return workerShare, platformFee
}

type PayoutStatus string

const (
	StatusPending PayoutStatus = "pending"
	StatusPaid    PayoutStatus = "paid"
	StatusFailed  PayoutStatus = "failed"
)

type Payout struct {
	ID                   string       `json:"id"`
	ProjectID            string       `json:"project_id"`
	WorkerID             string       `json:"worker_id"`
	TotalAmount          int64        `json:"total_amount"`
	WorkerShare          int64        `json:"worker_share"`
	PlatformFee          int64        `json:"platform_fee"`
	Status               PayoutStatus `json:"status"`
	TransactionReference *string      `json:"transaction_reference,omitempty"`
	FailureReason        *string      `json:"failure_reason,omitempty"`
	PayoutDate           *time.Time   `json:"payout_date,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

var (
	ErrPayoutNotFound     = errors.New("payout not found")
	ErrDestinationMissing = errors.New("worker has no transfer destination on file")
	ErrAlreadyPaid        = errors.New("payout already completed")
)
