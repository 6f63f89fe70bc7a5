package copytrade

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/optrade/copyledger/market"
)

// Status is the execution state of one copy-trade attempt.
type Status string

const (
	Pending  Status = "pending"
	Sent     Status = "sent"
	Executed Status = "executed"
	Failed   Status = "failed"
)

// Attempt is the audit record for one relay of an order to the broker. It is
// created before the network call goes out, so a crash mid-call still leaves
// a trail. The attempt ID is sent as client_order_id, making re-submission
// idempotent on the broker side.
type Attempt struct {
	ID        string
	AccountID string
	OrderID   string

	Action   market.IntentAction // open or close
	Symbol   string
	Side     market.Side
	Type     market.OrderType
	Quantity decimal.Decimal
	Price    decimal.Decimal

	Status Status

	BrokerOrderID  string
	BrokerResponse []byte // raw body, kept verbatim
	ResponseCode   int
	ErrorMessage   string

	RetryCount int
	MaxRetries int

	// Terminal is set when the attempt failed for good: the broker rejected
	// it outright, or the retry budget ran out. Terminal failures need
	// operator attention.
	Terminal bool

	CreatedAt  time.Time
	SentAt     time.Time
	ExecutedAt time.Time
	FailedAt   time.Time
}

// Retryable reports whether the attempt may be re-submitted.
func (a Attempt) Retryable() bool {
	return a.Status == Failed && !a.Terminal
}

// Settled reports whether the attempt will never change again.
func (a Attempt) Settled() bool {
	return a.Status == Executed || (a.Status == Failed && a.Terminal)
}
