package account

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optrade/copyledger/journal"
	"github.com/optrade/copyledger/pkg/id"
)

// Ledger owns all account money state. Every mutation on a single account is
// serialized behind that account's lock: read current balance, validate,
// compute, append the journal record, commit, all as one unit. Mutations on
// different accounts proceed concurrently; there is no global lock around
// money movement.
//
// The journal append happens before the in-memory commit. If the append
// fails the account is left exactly at its last committed state.
type Ledger struct {
	mu       sync.Mutex // guards the accounts map only
	accounts map[string]*entry
	journal  journal.Journal
}

type entry struct {
	mu   sync.Mutex
	acct *Account
}

func NewLedger(j journal.Journal) *Ledger {
	return &Ledger{
		accounts: make(map[string]*entry),
		journal:  j,
	}
}

// Add registers an account with the ledger. The ledger takes ownership of
// the value; callers must not retain the pointer.
func (l *Ledger) Add(a *Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[a.ID] = &entry{acct: a}
}

// Open creates and registers a fresh active account.
func (l *Ledger) Open(name, currency string) Account {
	a := New(name, currency)
	l.Add(a)
	return *a
}

// Get returns a copy of the account's current state.
func (l *Ledger) Get(accountID string) (Account, error) {
	e, err := l.entry(accountID)
	if err != nil {
		return Account{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.acct, nil
}

// List returns a copy of every registered account.
func (l *Ledger) List() []Account {
	l.mu.Lock()
	entries := make([]*entry, 0, len(l.accounts))
	for _, e := range l.accounts {
		entries = append(entries, e)
	}
	l.mu.Unlock()

	out := make([]Account, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, *e.acct)
		e.mu.Unlock()
	}
	return out
}

func (l *Ledger) entry(accountID string) (*entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %q: %w", accountID, ErrNotFound)
	}
	return e, nil
}

// round2 applies the money rounding policy: half-up at 2 decimal places.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Deposit credits amount to both balance and available balance.
func (l *Ledger) Deposit(accountID string, amount decimal.Decimal, referenceID, description string) (journal.TransactionRecord, error) {
	if !amount.IsPositive() {
		return journal.TransactionRecord{}, &ValidationError{Field: "amount", Msg: "must be positive"}
	}
	amount = round2(amount)

	e, err := l.entry(accountID)
	if err != nil {
		return journal.TransactionRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.acct
	rec := l.record(a, journal.Deposit, amount, a.Balance.Add(amount), referenceID, description)
	if err := l.journal.Append(rec); err != nil {
		return journal.TransactionRecord{}, fmt.Errorf("append deposit: %w", err)
	}

	a.Balance = rec.BalanceAfter
	a.AvailableBalance = a.AvailableBalance.Add(amount)
	a.TotalDeposited = a.TotalDeposited.Add(amount)
	return rec, nil
}

// Withdraw debits amount from balance and available balance.
func (l *Ledger) Withdraw(accountID string, amount decimal.Decimal, referenceID, description string) (journal.TransactionRecord, error) {
	if !amount.IsPositive() {
		return journal.TransactionRecord{}, &ValidationError{Field: "amount", Msg: "must be positive"}
	}
	amount = round2(amount)

	e, err := l.entry(accountID)
	if err != nil {
		return journal.TransactionRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.acct
	if a.AvailableBalance.LessThan(amount) {
		return journal.TransactionRecord{}, ErrInsufficientBalance
	}

	rec := l.record(a, journal.Withdrawal, amount.Neg(), a.Balance.Sub(amount), referenceID, description)
	if err := l.journal.Append(rec); err != nil {
		return journal.TransactionRecord{}, fmt.Errorf("append withdrawal: %w", err)
	}

	a.Balance = rec.BalanceAfter
	a.AvailableBalance = a.AvailableBalance.Sub(amount)
	a.TotalWithdrawn = a.TotalWithdrawn.Add(amount)
	return rec, nil
}

// Reserve moves amount from available to reserved balance. Total balance is
// unchanged, so no journal record is written.
func (l *Ledger) Reserve(accountID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Msg: "must be positive"}
	}
	amount = round2(amount)

	e, err := l.entry(accountID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.acct
	if a.AvailableBalance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	a.AvailableBalance = a.AvailableBalance.Sub(amount)
	a.ReservedBalance = a.ReservedBalance.Add(amount)
	return nil
}

// Release is the inverse of Reserve.
func (l *Ledger) Release(accountID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Msg: "must be positive"}
	}
	amount = round2(amount)

	e, err := l.entry(accountID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.acct
	if a.ReservedBalance.LessThan(amount) {
		return fmt.Errorf("release %s exceeds reserved %s", amount, a.ReservedBalance)
	}
	a.ReservedBalance = a.ReservedBalance.Sub(amount)
	a.AvailableBalance = a.AvailableBalance.Add(amount)
	return nil
}

// ApplyTradeResult books a realized P/L: balance and available balance move
// by pnl, trade counters update, and a trade_profit or trade_loss record is
// appended.
func (l *Ledger) ApplyTradeResult(accountID string, pnl decimal.Decimal, referenceID string) (journal.TransactionRecord, error) {
	pnl = round2(pnl)

	e, err := l.entry(accountID)
	if err != nil {
		return journal.TransactionRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.acct
	typ := journal.TradeProfit
	if pnl.IsNegative() {
		typ = journal.TradeLoss
	}

	rec := l.record(a, typ, pnl, a.Balance.Add(pnl), referenceID, "realized trade result")
	if err := l.journal.Append(rec); err != nil {
		return journal.TransactionRecord{}, fmt.Errorf("append trade result: %w", err)
	}

	a.Balance = rec.BalanceAfter
	a.AvailableBalance = a.AvailableBalance.Add(pnl)
	a.TotalProfitLoss = a.TotalProfitLoss.Add(pnl)
	a.TotalTrades++
	if pnl.IsNegative() {
		a.LosingTrades++
	} else {
		a.WinningTrades++
	}
	return rec, nil
}

// RecordAdjustment forces the balance to newBalance and appends an
// adjustment record for the difference. Used by the balance reconciler; the
// broker's view wins.
func (l *Ledger) RecordAdjustment(accountID string, newBalance decimal.Decimal, reason string) (journal.TransactionRecord, error) {
	newBalance = round2(newBalance)

	e, err := l.entry(accountID)
	if err != nil {
		return journal.TransactionRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.acct
	diff := newBalance.Sub(a.Balance)

	rec := l.record(a, journal.Adjustment, diff, newBalance, "", reason)
	if err := l.journal.Append(rec); err != nil {
		return journal.TransactionRecord{}, fmt.Errorf("append adjustment: %w", err)
	}

	a.Balance = newBalance
	a.AvailableBalance = newBalance.Sub(a.ReservedBalance)
	return rec, nil
}

// CommitPayout consumes a previously reserved amount: reserved and total
// balance both drop by amount, available balance is untouched. Appends a
// payout_approved record.
func (l *Ledger) CommitPayout(accountID string, amount decimal.Decimal, payoutID string) (journal.TransactionRecord, error) {
	amount = round2(amount)

	e, err := l.entry(accountID)
	if err != nil {
		return journal.TransactionRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.acct
	if a.ReservedBalance.LessThan(amount) {
		return journal.TransactionRecord{}, fmt.Errorf("payout %s: commit %s exceeds reserved %s", payoutID, amount, a.ReservedBalance)
	}

	rec := l.record(a, journal.PayoutApproved, amount.Neg(), a.Balance.Sub(amount), payoutID, "payout completed")
	if err := l.journal.Append(rec); err != nil {
		return journal.TransactionRecord{}, fmt.Errorf("append payout: %w", err)
	}

	a.Balance = rec.BalanceAfter
	a.ReservedBalance = a.ReservedBalance.Sub(amount)
	a.TotalWithdrawn = a.TotalWithdrawn.Add(amount)
	return rec, nil
}

// CancelPayoutReservation returns a reserved amount to available balance and
// appends a zero-amount payout_rejected record so the audit trail shows the
// rejection without moving money.
func (l *Ledger) CancelPayoutReservation(accountID string, amount decimal.Decimal, payoutID, reason string) (journal.TransactionRecord, error) {
	amount = round2(amount)

	e, err := l.entry(accountID)
	if err != nil {
		return journal.TransactionRecord{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.acct
	if a.ReservedBalance.LessThan(amount) {
		return journal.TransactionRecord{}, fmt.Errorf("payout %s: release %s exceeds reserved %s", payoutID, amount, a.ReservedBalance)
	}

	rec := l.record(a, journal.PayoutRejected, decimal.Zero, a.Balance, payoutID, reason)
	if err := l.journal.Append(rec); err != nil {
		return journal.TransactionRecord{}, fmt.Errorf("append payout rejection: %w", err)
	}

	a.ReservedBalance = a.ReservedBalance.Sub(amount)
	a.AvailableBalance = a.AvailableBalance.Add(amount)
	return rec, nil
}

// SetBrokerAccount links the account to its broker-side counterpart. The
// reconciler only sweeps accounts with a broker link.
func (l *Ledger) SetBrokerAccount(accountID, brokerAccountID string) error {
	e, err := l.entry(accountID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acct.BrokerAccountID = brokerAccountID
	return nil
}

// MarkCopyTrade stamps the account's last copy trade time.
func (l *Ledger) MarkCopyTrade(accountID string, at time.Time) error {
	e, err := l.entry(accountID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acct.LastCopyTradeAt = at
	return nil
}

// record builds a journal record against the account's current state. Caller
// holds the entry lock.
func (l *Ledger) record(a *Account, typ journal.Type, amount, after decimal.Decimal, referenceID, description string) journal.TransactionRecord {
	return journal.TransactionRecord{
		ID:            id.New(),
		AccountID:     a.ID,
		Type:          typ,
		Amount:        amount,
		BalanceBefore: a.Balance,
		BalanceAfter:  after,
		ReferenceID:   referenceID,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
}
