package market

import (
	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderType distinguishes market from limit orders.
type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// Order is a locally tracked order intent, produced by a strategy or the
// upstream API layer and consumed by the copy-trade relay. It references the
// owning account by ID only.
type Order struct {
	ID       string
	Symbol   string // "BTC/USD", "EUR/USD", ...
	Side     Side
	Type     OrderType
	Quantity decimal.Decimal
	Price    decimal.Decimal // zero for market orders
}

// IntentAction says whether an intent opens a new position or closes an
// existing one.
type IntentAction string

const (
	OpenIntent  IntentAction = "open"
	CloseIntent IntentAction = "close"
)

// OrderIntent is the raw output of a strategy: a request to open or close a
// position. It carries no account state; sizing against an account happens
// downstream.
type OrderIntent struct {
	Action   IntentAction
	Symbol   string
	Side     Side
	Quantity decimal.Decimal
}
