package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Client is the downstream broker contract used by the copy-trade relay and
// the balance reconciler.
type Client interface {
	// PlaceOrder submits an order. ClientOrderID must be set by the caller;
	// the broker deduplicates on it, which makes retries idempotent.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)

	// CloseOrder closes a previously placed order by its broker-side ID.
	CloseOrder(ctx context.Context, brokerOrderID string) (OrderResult, error)

	// GetBalance fetches the broker's authoritative balance for an account.
	GetBalance(ctx context.Context, brokerAccountID string) (decimal.Decimal, error)
}

// OrderRequest is the body of POST /v1/orders.
type OrderRequest struct {
	AccountID     string
	Symbol        string
	Side          string // "BUY" / "SELL"
	Quantity      decimal.Decimal
	Type          string // "MARKET" / "LIMIT"
	Price         decimal.Decimal
	ClientOrderID string
}

// OrderResult is the tagged outcome of a broker order call. Broker payloads
// are loosely typed, so the raw body is kept verbatim and OrderID is only
// set when a well-formed order_id could be decoded.
type OrderResult struct {
	StatusCode int
	RawBody    []byte
	OrderID    string
}

var (
	// ErrTransient marks a failure worth retrying: timeout, cancellation,
	// transport error, rate limit, or a 5xx from the broker.
	ErrTransient = errors.New("transient broker failure")

	// ErrRejected marks a definitive broker rejection (4xx other than rate
	// limit). Retrying the same request will not help.
	ErrRejected = errors.New("broker rejected request")
)

// Classify maps a call outcome onto the retry taxonomy. A nil return means
// the broker accepted the request (HTTP 200/201).
func Classify(statusCode int, err error) error {
	switch {
	case err != nil:
		// Timeouts, cancellations and transport errors all land here;
		// cancellation of an in-flight call is treated identically to a
		// timeout: failed, retryable, never partial success.
		return fmt.Errorf("%w: %v", ErrTransient, err)
	case statusCode == 200 || statusCode == 201:
		return nil
	case statusCode == 429 || statusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, statusCode)
	default:
		return fmt.Errorf("%w: status %d", ErrRejected, statusCode)
	}
}
