package trading

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/optrade/copyledger/account"
	"github.com/optrade/copyledger/broker"
	"github.com/optrade/copyledger/config"
	"github.com/optrade/copyledger/copytrade"
	"github.com/optrade/copyledger/journal"
	"github.com/optrade/copyledger/market"
	"github.com/optrade/copyledger/payout"
	"github.com/optrade/copyledger/pkg/id"
	"github.com/optrade/copyledger/reconcile"
	"github.com/optrade/copyledger/report"
)

// ErrCopyTradeBlocked is returned when the account's settings or state rule
// out copy trading before any broker call is made.
var ErrCopyTradeBlocked = fmt.Errorf("account not eligible for copy trading")

// Service wires the ledger, journal, payout workflow, copy trade relay and
// balance reconciler into one explicitly constructed unit. There is no
// package-level instance; callers build one and own its lifetime.
type Service struct {
	cfg    *config.Config
	log    *logrus.Entry
	jrnl   journal.Journal
	ledger *account.Ledger
	broker broker.Client

	Payouts    *payout.Workflow
	Relay      *copytrade.Relay
	Reconciler *reconcile.Reconciler

	mu       sync.Mutex
	deposits map[string]*Deposit
}

// DepositStatus tracks a deposit from provider initiation to ledger credit.
type DepositStatus string

const (
	DepositPending DepositStatus = "pending"
	DepositSettled DepositStatus = "settled"
)

// Deposit is a pending or settled inbound transfer. Money only moves on
// settlement; a pending deposit has no ledger effect.
type Deposit struct {
	ID        string
	AccountID string
	Amount    decimal.Decimal
	Status    DepositStatus
	Reference string
	CreatedAt time.Time
	SettledAt time.Time
}

// New assembles a service from pre-built components. The broker client and
// journal are injected so tests can substitute fakes.
func New(cfg *config.Config, b broker.Client, j journal.Journal, log *logrus.Entry) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	// Negative means unset; the workflow substitutes its default. A configured
	// zero is a real free-payout setting and passes through.
	feeRate := decimal.NewFromInt(-1)
	if cfg.Payout.FeeRate != "" {
		var err error
		feeRate, err = decimal.NewFromString(cfg.Payout.FeeRate)
		if err != nil {
			return nil, fmt.Errorf("payout fee rate: %w", err)
		}
	}

	tolerance := decimal.Zero
	if cfg.Reconcile.Tolerance != "" {
		var err error
		tolerance, err = decimal.NewFromString(cfg.Reconcile.Tolerance)
		if err != nil {
			return nil, fmt.Errorf("reconcile tolerance: %w", err)
		}
	}
	interval, err := cfg.Reconcile.ParseInterval()
	if err != nil {
		return nil, fmt.Errorf("reconcile interval: %w", err)
	}

	ledger := account.NewLedger(j)

	s := &Service{
		cfg:        cfg,
		log:        log,
		jrnl:       j,
		ledger:     ledger,
		broker:     b,
		Payouts:    payout.NewWorkflow(ledger, feeRate),
		Relay:      copytrade.NewRelay(b, ledger, cfg.CopyTrade.MaxRetries, log),
		Reconciler: reconcile.New(b, ledger, interval, tolerance, log),
		deposits:   make(map[string]*Deposit),
	}
	return s, nil
}

// NewFromConfig builds the broker client and journal backend from the config
// and assembles the service around them.
func NewFromConfig(cfg *config.Config, log *logrus.Entry) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	timeout, err := cfg.Broker.ParseTimeout()
	if err != nil {
		return nil, fmt.Errorf("broker timeout: %w", err)
	}
	b := broker.NewHTTPClient(cfg.Broker.URL, cfg.Broker.APIKey, timeout)

	var j journal.Journal
	switch cfg.Journal.Type {
	case "sqlite":
		j, err = journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
	default:
		j = journal.NewMemory()
	}

	return New(cfg, b, j, log)
}

// Ledger exposes the account ledger for reads and account management.
func (s *Service) Ledger() *account.Ledger { return s.ledger }

// Journal exposes the transaction journal for queries.
func (s *Service) Journal() journal.Journal { return s.jrnl }

// OpenAccount creates an active account in the configured currency.
func (s *Service) OpenAccount(name string) account.Account {
	acct := s.ledger.Open(name, s.cfg.Account.Currency)
	s.log.WithFields(logrus.Fields{
		"account_id":     acct.ID,
		"account_number": acct.AccountNumber,
	}).Info("account opened")
	return acct
}

// CreateDeposit records an inbound transfer as pending. The ledger is not
// touched until SettleDeposit confirms the funds arrived.
func (s *Service) CreateDeposit(accountID string, amount decimal.Decimal, reference string) (Deposit, error) {
	if !amount.IsPositive() {
		return Deposit{}, &account.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	if _, err := s.ledger.Get(accountID); err != nil {
		return Deposit{}, err
	}

	d := &Deposit{
		ID:        id.New(),
		AccountID: accountID,
		Amount:    amount.Round(2),
		Status:    DepositPending,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.deposits[d.ID] = d
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"deposit_id": d.ID,
		"account_id": accountID,
		"amount":     d.Amount.String(),
	}).Info("deposit created")
	return *d, nil
}

// SettleDeposit credits a pending deposit to the account.
func (s *Service) SettleDeposit(depositID string) (Deposit, error) {
	s.mu.Lock()
	d, ok := s.deposits[depositID]
	if !ok {
		s.mu.Unlock()
		return Deposit{}, fmt.Errorf("deposit %q: %w", depositID, account.ErrNotFound)
	}
	if d.Status != DepositPending {
		s.mu.Unlock()
		return Deposit{}, fmt.Errorf("deposit %q already %s", depositID, d.Status)
	}
	s.mu.Unlock()

	desc := "deposit"
	if d.Reference != "" {
		desc = fmt.Sprintf("deposit ref %s", d.Reference)
	}
	if _, err := s.ledger.Deposit(d.AccountID, d.Amount, d.ID, desc); err != nil {
		return Deposit{}, err
	}

	s.mu.Lock()
	d.Status = DepositSettled
	d.SettledAt = time.Now().UTC()
	out := *d
	s.mu.Unlock()

	s.log.WithField("deposit_id", d.ID).Info("deposit settled")
	return out, nil
}

// Deposits lists deposits for an account, newest first.
func (s *Service) Deposits(accountID string) []Deposit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Deposit, 0)
	for _, d := range s.deposits {
		if d.AccountID == accountID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// CreatePayout requests a payout in the account's currency.
func (s *Service) CreatePayout(accountID string, amount decimal.Decimal, method payout.Method, destination string) (payout.Payout, error) {
	acct, err := s.ledger.Get(accountID)
	if err != nil {
		return payout.Payout{}, err
	}
	return s.Payouts.Request(accountID, amount, method, destination, acct.Currency)
}

// OpenCopyTrade relays an open order for the account after the eligibility
// gate passes.
func (s *Service) OpenCopyTrade(ctx context.Context, accountID string, order market.Order) (copytrade.Attempt, error) {
	acct, err := s.ledger.Get(accountID)
	if err != nil {
		return copytrade.Attempt{}, err
	}
	if !s.Relay.ShouldCopyTrade(acct) {
		return copytrade.Attempt{}, ErrCopyTradeBlocked
	}
	return s.Relay.Execute(ctx, acct, order)
}

// CloseCopyTrade relays a close for a previously executed open.
func (s *Service) CloseCopyTrade(ctx context.Context, accountID string, order market.Order) (copytrade.Attempt, error) {
	acct, err := s.ledger.Get(accountID)
	if err != nil {
		return copytrade.Attempt{}, err
	}
	return s.Relay.CloseCopyTrade(ctx, acct, order)
}

// Performance computes account performance over a named period.
func (s *Service) Performance(accountID, period string) (report.Performance, error) {
	acct, err := s.ledger.Get(accountID)
	if err != nil {
		return report.Performance{}, err
	}
	return report.Compute(s.jrnl, acct, period, time.Now().UTC())
}

// Run blocks, sweeping balances on the configured interval until the context
// is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("service started")
	s.Reconciler.Run(ctx)
	s.log.Info("service stopped")
}

// Close releases the journal backend.
func (s *Service) Close() error {
	return s.jrnl.Close()
}
