package payout

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the processing state of a payout request.
type Status string

const (
	Pending     Status = "pending"
	UnderReview Status = "under_review"
	Approved    Status = "approved"
	Processing  Status = "processing"
	Completed   Status = "completed"
	Rejected    Status = "rejected"
	Cancelled   Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == Completed || s == Rejected || s == Cancelled
}

// Method is how the payout is delivered.
type Method string

const (
	Crypto       Method = "crypto"
	BankTransfer Method = "bank_transfer"
	Stripe       Method = "stripe"
)

func validMethod(m Method) bool {
	switch m {
	case Crypto, BankTransfer, Stripe:
		return true
	}
	return false
}

// Payout is a withdrawal request. Amount, fee and net amount are frozen when
// the request is created; only Status and the review/processing metadata
// change afterwards, and only through Workflow transitions.
type Payout struct {
	ID        string
	AccountID string

	Amount    decimal.Decimal
	FeeAmount decimal.Decimal // 1% of Amount, fixed at request time
	NetAmount decimal.Decimal // Amount - FeeAmount

	Method      Method
	Destination string
	Currency    string

	Status Status

	// Snapshot of the account balance when the request was made.
	// Informational only; never used for balance math.
	AccountBalanceAtRequest decimal.Decimal

	ProviderTransactionID string
	AdminNotes            string
	RejectionReason       string

	RequestedAt time.Time
	ReviewedAt  time.Time
	ApprovedAt  time.Time
	ProcessedAt time.Time
	CompletedAt time.Time
	RejectedAt  time.Time
	CancelledAt time.Time
}
