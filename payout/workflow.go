package payout

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/optrade/copyledger/account"
)

// ErrNotFound means the payout ID is unknown.
var ErrNotFound = errors.New("payout not found")

// TransitionError rejects a state change the lifecycle does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("payout transition %s -> %s not allowed", e.From, e.To)
}

// Decision is an admin review outcome.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// Workflow drives payout requests through their lifecycle:
//
//	pending -> under_review -> approved -> processing -> completed
//	pending|under_review -> rejected
//	pending -> cancelled
//
// The requested amount is reserved out of the account's available balance
// atomically with request creation, so two concurrent requests cannot both
// pass the same balance check. The reservation is consumed on completion and
// returned on rejection or cancellation.
type Workflow struct {
	ledger  *account.Ledger
	feeRate decimal.Decimal

	mu      sync.Mutex
	payouts map[string]*Payout
}

// DefaultFeeRate is the platform payout fee: 1% of the requested amount.
var DefaultFeeRate = decimal.RequireFromString("0.01")

// NewWorkflow builds a workflow charging feeRate of every payout. A negative
// feeRate means "unset" and falls back to DefaultFeeRate; zero is a real
// configuration and is honored.
func NewWorkflow(ledger *account.Ledger, feeRate decimal.Decimal) *Workflow {
	if feeRate.IsNegative() {
		feeRate = DefaultFeeRate
	}
	return &Workflow{
		ledger:  ledger,
		feeRate: feeRate,
		payouts: make(map[string]*Payout),
	}
}

// Request creates a pending payout. The fee is computed once here and frozen;
// later fee-rate changes never touch an existing payout.
func (w *Workflow) Request(accountID string, amount decimal.Decimal, method Method, destination, currency string) (Payout, error) {
	if !amount.IsPositive() {
		return Payout{}, &account.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	if !validMethod(method) {
		return Payout{}, &account.ValidationError{Field: "payout_method", Msg: fmt.Sprintf("unsupported method %q", method)}
	}
	if destination == "" {
		return Payout{}, &account.ValidationError{Field: "destination", Msg: "must not be empty"}
	}
	if currency == "" {
		currency = "USD"
	}
	amount = amount.Round(2)

	// Reserving checks available balance and earmarks the funds in one
	// serialized ledger operation.
	if err := w.ledger.Reserve(accountID, amount); err != nil {
		return Payout{}, err
	}

	acct, err := w.ledger.Get(accountID)
	if err != nil {
		return Payout{}, err
	}

	fee := amount.Mul(w.feeRate).Round(2)
	p := &Payout{
		ID:                      uuid.NewString(),
		AccountID:               accountID,
		Amount:                  amount,
		FeeAmount:               fee,
		NetAmount:               amount.Sub(fee),
		Method:                  method,
		Destination:             destination,
		Currency:                currency,
		Status:                  Pending,
		AccountBalanceAtRequest: acct.Balance,
		RequestedAt:             time.Now().UTC(),
	}

	w.mu.Lock()
	w.payouts[p.ID] = p
	w.mu.Unlock()

	return *p, nil
}

// MarkUnderReview moves a pending payout into admin review.
func (w *Workflow) MarkUnderReview(payoutID string) (Payout, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, err := w.get(payoutID)
	if err != nil {
		return Payout{}, err
	}
	if p.Status != Pending {
		return Payout{}, &TransitionError{From: p.Status, To: UnderReview}
	}
	p.Status = UnderReview
	return *p, nil
}

// Review records an admin decision. Approve keeps the reservation in place
// for Complete; Reject returns the funds to available balance and writes a
// zero-amount payout_rejected record.
func (w *Workflow) Review(payoutID string, decision Decision, notes string) (Payout, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, err := w.get(payoutID)
	if err != nil {
		return Payout{}, err
	}
	if p.Status != Pending && p.Status != UnderReview {
		return Payout{}, &TransitionError{From: p.Status, To: Approved}
	}

	now := time.Now().UTC()
	switch decision {
	case Approve:
		p.Status = Approved
		p.AdminNotes = notes
		p.ReviewedAt = now
		p.ApprovedAt = now
		return *p, nil

	case Reject:
		if _, err := w.ledger.CancelPayoutReservation(p.AccountID, p.Amount, p.ID, notes); err != nil {
			return Payout{}, fmt.Errorf("release payout reservation: %w", err)
		}
		p.Status = Rejected
		p.RejectionReason = notes
		p.ReviewedAt = now
		p.RejectedAt = now
		return *p, nil

	default:
		return Payout{}, &account.ValidationError{Field: "decision", Msg: fmt.Sprintf("unknown decision %q", decision)}
	}
}

// Complete settles an approved payout: approved -> processing -> completed.
// The reserved amount leaves the account for good; the fee is retained by
// the platform, not refunded.
func (w *Workflow) Complete(payoutID, providerTxID string) (Payout, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, err := w.get(payoutID)
	if err != nil {
		return Payout{}, err
	}
	// Processing is accepted too: a payout parked there by an earlier failed
	// ledger commit can be retried.
	if p.Status != Approved && p.Status != Processing {
		return Payout{}, &TransitionError{From: p.Status, To: Completed}
	}

	if p.Status == Approved {
		p.Status = Processing
		p.ProcessedAt = time.Now().UTC()
	}

	if _, err := w.ledger.CommitPayout(p.AccountID, p.Amount, p.ID); err != nil {
		// Money state untouched; the payout stays retryable in processing.
		return Payout{}, fmt.Errorf("commit payout: %w", err)
	}

	p.Status = Completed
	p.ProviderTransactionID = providerTxID
	p.CompletedAt = time.Now().UTC()
	return *p, nil
}

// Cancel withdraws a pending request at the user's initiative and returns
// the reservation. No journal record is written; nothing happened to the
// balance.
func (w *Workflow) Cancel(payoutID string) (Payout, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, err := w.get(payoutID)
	if err != nil {
		return Payout{}, err
	}
	if p.Status != Pending {
		return Payout{}, &TransitionError{From: p.Status, To: Cancelled}
	}

	if err := w.ledger.Release(p.AccountID, p.Amount); err != nil {
		return Payout{}, fmt.Errorf("release payout reservation: %w", err)
	}
	p.Status = Cancelled
	p.CancelledAt = time.Now().UTC()
	return *p, nil
}

// Get returns a copy of the payout.
func (w *Workflow) Get(payoutID string) (Payout, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, err := w.get(payoutID)
	if err != nil {
		return Payout{}, err
	}
	return *p, nil
}

// List returns copies of all payouts for an account, newest first.
func (w *Workflow) List(accountID string) []Payout {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Payout
	for _, p := range w.payouts {
		if p.AccountID == accountID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].RequestedAt.After(out[b].RequestedAt)
	})
	return out
}

// get requires w.mu held.
func (w *Workflow) get(payoutID string) (*Payout, error) {
	p, ok := w.payouts[payoutID]
	if !ok {
		return nil, fmt.Errorf("payout %q: %w", payoutID, ErrNotFound)
	}
	return p, nil
}
