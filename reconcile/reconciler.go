package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/optrade/copyledger/account"
	"github.com/optrade/copyledger/broker"
)

// DefaultInterval is how often the reconciler sweeps all accounts.
const DefaultInterval = 5 * time.Minute

// DefaultTolerance is the largest broker/local divergence left untouched.
var DefaultTolerance = decimal.RequireFromString("0.01")

// Reconciler periodically compares each account's local balance against the
// broker's authoritative view and corrects drift through an adjustment
// transaction. Correction is one-directional: the broker wins.
//
// A cycle never retries: fetch or parse failures are logged and dropped, and
// the next scheduled sweep picks the account up again. The per-account
// ledger lock is held only for the adjustment itself, so sweeps barely
// contend with live order and payout traffic.
type Reconciler struct {
	broker    broker.Client
	ledger    *account.Ledger
	interval  time.Duration
	tolerance decimal.Decimal
	log       *logrus.Entry
}

func New(b broker.Client, ledger *account.Ledger, interval time.Duration, tolerance decimal.Decimal, log *logrus.Entry) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if tolerance.IsZero() {
		tolerance = DefaultTolerance
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reconciler{
		broker:    b,
		ledger:    ledger,
		interval:  interval,
		tolerance: tolerance,
		log:       log,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation cycle over every broker-linked account and
// returns the number of adjustments written.
func (r *Reconciler) Sweep(ctx context.Context) int {
	adjusted := 0
	for _, acct := range r.ledger.List() {
		if acct.BrokerAccountID == "" {
			continue
		}
		if ctx.Err() != nil {
			return adjusted
		}
		if r.reconcile(ctx, acct) {
			adjusted++
		}
	}
	return adjusted
}

func (r *Reconciler) reconcile(ctx context.Context, acct account.Account) bool {
	log := r.log.WithFields(logrus.Fields{
		"account_id":        acct.ID,
		"broker_account_id": acct.BrokerAccountID,
	})

	brokerBalance, err := r.broker.GetBalance(ctx, acct.BrokerAccountID)
	if err != nil {
		// Swallowed: the next cycle is the retry.
		log.WithError(err).Warn("balance fetch failed; skipping account this cycle")
		return false
	}

	diff := brokerBalance.Sub(acct.Balance)
	if diff.Abs().LessThanOrEqual(r.tolerance) {
		return false
	}

	if _, err := r.ledger.RecordAdjustment(acct.ID, brokerBalance, "balance sync with broker"); err != nil {
		log.WithError(err).Error("adjustment failed")
		return false
	}

	log.WithFields(logrus.Fields{
		"local_balance":  acct.Balance.String(),
		"broker_balance": brokerBalance.String(),
		"adjustment":     diff.String(),
	}).Info("balance adjusted to broker value")
	return true
}
