package copytrade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/optrade/copyledger/account"
	"github.com/optrade/copyledger/broker"
	"github.com/optrade/copyledger/market"
	"github.com/optrade/copyledger/pkg/id"
)

// DefaultMaxRetries bounds re-submission of a failed attempt.
const DefaultMaxRetries = 3

var (
	// ErrAttemptInFlight guards the invariant that at most one non-settled
	// attempt exists per order at a time.
	ErrAttemptInFlight = errors.New("order already has an unsettled copy-trade attempt")

	// ErrNotRetryable rejects re-submission of an attempt that is not in a
	// retryable failed state.
	ErrNotRetryable = errors.New("attempt is not retryable")

	// ErrNoExecutedAttempt means a close was requested for an order that
	// never reached the broker.
	ErrNoExecutedAttempt = errors.New("no executed copy-trade attempt for order")

	// ErrAttemptNotFound means the attempt ID is unknown.
	ErrAttemptNotFound = errors.New("copy-trade attempt not found")
)

// Relay mirrors local orders to the external broker. Each relay attempt is a
// small state machine: pending -> sent -> executed | failed. Failed attempts
// with retry budget left are re-submitted by the caller via Resubmit, never
// automatically, so a flapping broker cannot be hammered from inside a
// single call.
//
// The relay never holds an account lock across a network call: money effects
// go through the ledger before or after the call, not during it.
type Relay struct {
	broker     broker.Client
	ledger     *account.Ledger
	maxRetries int
	log        *logrus.Entry

	mu       sync.Mutex
	attempts map[string]*Attempt   // by attempt ID
	byOrder  map[string][]*Attempt // order ID -> attempts, oldest first
}

func NewRelay(b broker.Client, ledger *account.Ledger, maxRetries int, log *logrus.Entry) *Relay {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Relay{
		broker:     b,
		ledger:     ledger,
		maxRetries: maxRetries,
		log:        log,
		attempts:   make(map[string]*Attempt),
		byOrder:    make(map[string][]*Attempt),
	}
}

// ShouldCopyTrade gates relaying: the account must have copy trading
// enabled, be active, and have funds to trade with.
func (r *Relay) ShouldCopyTrade(acct account.Account) bool {
	if !acct.CopyTradingEnabled {
		return false
	}
	if acct.Status != account.Active {
		return false
	}
	return acct.AvailableBalance.IsPositive()
}

// Execute relays an order open to the broker. The attempt record exists
// before the request goes out; the outcome is classified into executed,
// retryable failed, or terminal failed.
func (r *Relay) Execute(ctx context.Context, acct account.Account, order market.Order) (Attempt, error) {
	att := &Attempt{
		ID:         id.New(),
		AccountID:  acct.ID,
		OrderID:    order.ID,
		Action:     market.OpenIntent,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Type:       orderType(order),
		Quantity:   order.Quantity,
		Price:      order.Price,
		Status:     Pending,
		MaxRetries: r.maxRetries,
		CreatedAt:  time.Now().UTC(),
	}

	r.mu.Lock()
	for _, prev := range r.byOrder[order.ID] {
		if !prev.Settled() {
			r.mu.Unlock()
			return *prev, fmt.Errorf("order %s: %w", order.ID, ErrAttemptInFlight)
		}
	}
	r.attempts[att.ID] = att
	r.byOrder[order.ID] = append(r.byOrder[order.ID], att)
	r.mu.Unlock()

	return r.send(ctx, att, acct.BrokerAccountID)
}

// Resubmit re-runs a failed attempt, re-entering pending. The same attempt
// record (and therefore the same idempotency token) is reused.
func (r *Relay) Resubmit(ctx context.Context, attemptID string) (Attempt, error) {
	r.mu.Lock()
	att, ok := r.attempts[attemptID]
	if !ok {
		r.mu.Unlock()
		return Attempt{}, fmt.Errorf("attempt %q: %w", attemptID, ErrAttemptNotFound)
	}
	if !att.Retryable() {
		snap := *att
		r.mu.Unlock()
		return snap, fmt.Errorf("attempt %q (status %s, retries %d/%d): %w",
			attemptID, att.Status, att.RetryCount, att.MaxRetries, ErrNotRetryable)
	}
	att.Status = Pending
	att.ErrorMessage = ""
	accountID := att.AccountID
	r.mu.Unlock()

	acct, err := r.ledger.Get(accountID)
	if err != nil {
		return Attempt{}, err
	}
	return r.send(ctx, att, acct.BrokerAccountID)
}

// CloseCopyTrade relays a position close. It requires a prior executed open
// attempt carrying a broker order ID. A failed close leaves the remote
// position unresolved; the relay surfaces that for manual follow-up rather
// than reconciling on its own.
func (r *Relay) CloseCopyTrade(ctx context.Context, acct account.Account, order market.Order) (Attempt, error) {
	r.mu.Lock()
	var brokerOrderID string
	for _, prev := range r.byOrder[order.ID] {
		if !prev.Settled() {
			// Same one-unsettled-attempt-per-order rule as Execute; a failed
			// close with retry budget left goes through Resubmit.
			snap := *prev
			r.mu.Unlock()
			return snap, fmt.Errorf("order %s: %w", order.ID, ErrAttemptInFlight)
		}
		if prev.Action == market.OpenIntent && prev.Status == Executed && prev.BrokerOrderID != "" {
			brokerOrderID = prev.BrokerOrderID
		}
	}
	if brokerOrderID == "" {
		r.mu.Unlock()
		return Attempt{}, fmt.Errorf("order %s: %w", order.ID, ErrNoExecutedAttempt)
	}

	att := &Attempt{
		ID:            id.New(),
		AccountID:     acct.ID,
		OrderID:       order.ID,
		Action:        market.CloseIntent,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Type:          orderType(order),
		Quantity:      order.Quantity,
		Price:         order.Price,
		Status:        Pending,
		BrokerOrderID: brokerOrderID,
		MaxRetries:    r.maxRetries,
		CreatedAt:     time.Now().UTC(),
	}
	r.attempts[att.ID] = att
	r.byOrder[order.ID] = append(r.byOrder[order.ID], att)
	r.mu.Unlock()

	snap, err := r.send(ctx, att, acct.BrokerAccountID)
	if snap.Status == Failed {
		r.log.WithFields(logrus.Fields{
			"attempt_id":      snap.ID,
			"order_id":        snap.OrderID,
			"broker_order_id": snap.BrokerOrderID,
		}).Warn("copy-trade close failed; remote position needs manual follow-up")
	}
	return snap, err
}

// orderType defaults an unset order type to market.
func orderType(order market.Order) market.OrderType {
	if order.Type == "" {
		return market.Market
	}
	return order.Type
}

// send performs the broker call for an attempt. No relay or account lock is
// held while the request is in flight.
func (r *Relay) send(ctx context.Context, att *Attempt, brokerAccountID string) (Attempt, error) {
	r.mu.Lock()
	att.Status = Sent
	att.SentAt = time.Now().UTC()
	action := att.Action
	req := broker.OrderRequest{
		AccountID:     brokerAccountID,
		Symbol:        att.Symbol,
		Side:          strings.ToUpper(string(att.Side)),
		Quantity:      att.Quantity,
		Type:          strings.ToUpper(string(att.Type)),
		Price:         att.Price,
		ClientOrderID: att.ID,
	}
	brokerOrderID := att.BrokerOrderID
	r.mu.Unlock()

	var (
		res broker.OrderResult
		err error
	)
	if action == market.CloseIntent {
		res, err = r.broker.CloseOrder(ctx, brokerOrderID)
	} else {
		res, err = r.broker.PlaceOrder(ctx, req)
	}

	cerr := broker.Classify(res.StatusCode, err)
	if cerr == nil && action == market.OpenIntent && res.OrderID == "" {
		// 2xx without a decodable order_id is a parse failure, retryable.
		cerr = fmt.Errorf("%w: response missing order_id", broker.ErrTransient)
	}

	r.mu.Lock()
	att.ResponseCode = res.StatusCode
	att.BrokerResponse = res.RawBody

	now := time.Now().UTC()
	if cerr == nil {
		att.Status = Executed
		att.ExecutedAt = now
		if action == market.OpenIntent {
			att.BrokerOrderID = res.OrderID
		}
	} else {
		att.Status = Failed
		att.FailedAt = now
		att.ErrorMessage = cerr.Error()
		switch {
		case errors.Is(cerr, broker.ErrRejected):
			att.Terminal = true
		default:
			att.RetryCount++
			if att.RetryCount >= att.MaxRetries {
				att.Terminal = true
			}
		}
	}
	snap := *att
	r.mu.Unlock()

	if cerr == nil {
		if err := r.ledger.MarkCopyTrade(snap.AccountID, now); err != nil {
			r.log.WithError(err).WithField("account_id", snap.AccountID).
				Warn("could not stamp last copy trade time")
		}
		r.log.WithFields(logrus.Fields{
			"attempt_id":      snap.ID,
			"order_id":        snap.OrderID,
			"broker_order_id": snap.BrokerOrderID,
			"action":          string(snap.Action),
		}).Info("copy trade executed")
		return snap, nil
	}

	r.log.WithFields(logrus.Fields{
		"attempt_id":  snap.ID,
		"order_id":    snap.OrderID,
		"status_code": snap.ResponseCode,
		"retries":     fmt.Sprintf("%d/%d", snap.RetryCount, snap.MaxRetries),
		"terminal":    snap.Terminal,
	}).Warn("copy trade failed")
	return snap, cerr
}

// Get returns a copy of an attempt.
func (r *Relay) Get(attemptID string) (Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	att, ok := r.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %q: %w", attemptID, ErrAttemptNotFound)
	}
	return *att, nil
}

// History returns copies of all attempts for an account, oldest first.
func (r *Relay) History(accountID string) []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Attempt
	for _, atts := range r.byOrder {
		for _, a := range atts {
			if a.AccountID == accountID {
				out = append(out, *a)
			}
		}
	}
	// ULIDs sort by creation time.
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}
