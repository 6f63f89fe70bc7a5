package account

import (
	cryptoRand "crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a trading account.
type Status string

const (
	PendingKYC Status = "pending_kyc"
	Active     Status = "active"
	Suspended  Status = "suspended"
	Frozen     Status = "frozen"
	Closed     Status = "closed"
)

// Account holds the money state for one trading account.
//
// Invariant: Balance == AvailableBalance + ReservedBalance at every point a
// caller can observe. All mutation goes through the Ledger, which serializes
// writes per account; external code only ever sees copies.
type Account struct {
	ID            string
	AccountNumber string
	Name          string
	Status        Status
	Currency      string

	Balance          decimal.Decimal
	AvailableBalance decimal.Decimal
	ReservedBalance  decimal.Decimal

	TotalDeposited  decimal.Decimal
	TotalWithdrawn  decimal.Decimal
	TotalProfitLoss decimal.Decimal

	TotalTrades   int
	WinningTrades int
	LosingTrades  int

	CopyTradingEnabled bool
	BrokerAccountID    string
	LastCopyTradeAt    time.Time

	MaxPositionSize decimal.Decimal
	MaxLeverage     int

	CreatedAt   time.Time
	ActivatedAt time.Time
}

// NewAccountNumber generates an account number of the form OPT-YYYY-NNNNNN.
// Uniqueness is the caller's problem (the ledger retries on collision).
func NewAccountNumber(now time.Time) string {
	n, err := cryptoRand.Int(cryptoRand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("OPT-%d-%06d", now.Year(), n.Int64())
}

// New returns an active account with a fresh UUID and zero balances.
func New(name, currency string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:                 uuid.NewString(),
		AccountNumber:      NewAccountNumber(now),
		Name:               name,
		Status:             Active,
		Currency:           currency,
		CopyTradingEnabled: true,
		MaxPositionSize:    decimal.NewFromInt(1000),
		MaxLeverage:        10,
		CreatedAt:          now,
		ActivatedAt:        now,
	}
}
