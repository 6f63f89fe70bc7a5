// journal/journal.go
package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies a balance-affecting event.
type Type string

const (
	Deposit        Type = "deposit"
	Withdrawal     Type = "withdrawal"
	TradeProfit    Type = "trade_profit"
	TradeLoss      Type = "trade_loss"
	Fee            Type = "fee"
	PayoutApproved Type = "payout_approved"
	PayoutRejected Type = "payout_rejected"
	Adjustment     Type = "adjustment"
)

// TransactionRecord is one immutable entry in an account's transaction
// history. Once appended it is never updated or deleted. For a given account
// the records form a chain: each record's BalanceAfter equals the next
// record's BalanceBefore.
type TransactionRecord struct {
	ID            string
	AccountID     string
	Type          Type
	Amount        decimal.Decimal // signed; zero for informational records
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	ReferenceID   string // order ID, payout ID, deposit ID, ...
	Description   string
	CreatedAt     time.Time
}

// Journal is an append-only store of transaction records.
type Journal interface {
	// Append stores a record. It is the sole mutator.
	Append(TransactionRecord) error

	// Query returns a lazy, time-ordered cursor over the account's records
	// with CreatedAt in [from, to). A zero `to` means no upper bound.
	Query(accountID string, from, to time.Time) (*Cursor, error)

	Close() error
}
