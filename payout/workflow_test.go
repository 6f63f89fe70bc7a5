package payout

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optrade/copyledger/account"
	"github.com/optrade/copyledger/journal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestWorkflow(t *testing.T, balance string) (*Workflow, *account.Ledger, *journal.Memory, account.Account) {
	t.Helper()

	j := journal.NewMemory()
	l := account.NewLedger(j)
	acct := l.Open("Test Account", "USD")
	if balance != "" {
		_, err := l.Deposit(acct.ID, dec(balance), "SEED", "")
		require.NoError(t, err)
	}
	return NewWorkflow(l, decimal.NewFromInt(-1)), l, j, acct
}

func countRecords(t *testing.T, j *journal.Memory, accountID string) int {
	t.Helper()

	cur, err := j.Query(accountID, time.Time{}, time.Time{})
	require.NoError(t, err)
	n := 0
	for cur.Next() {
		n++
	}
	require.NoError(t, cur.Err())
	return n
}

func TestRequestComputesFee(t *testing.T) {
	t.Parallel()

	w, _, _, acct := newTestWorkflow(t, "5000.00")

	p, err := w.Request(acct.ID, dec("2500.00"), Crypto, "0x742d35", "USDT")
	require.NoError(t, err)

	assert.True(t, p.FeeAmount.Equal(dec("25.00")), "fee %s", p.FeeAmount)
	assert.True(t, p.NetAmount.Equal(dec("2475.00")), "net %s", p.NetAmount)
	assert.Equal(t, Pending, p.Status)
	assert.True(t, p.AccountBalanceAtRequest.Equal(dec("5000.00")))
}

func TestRequestReservesFunds(t *testing.T) {
	t.Parallel()

	w, l, _, acct := newTestWorkflow(t, "1000.00")

	_, err := w.Request(acct.ID, dec("600.00"), BankTransfer, "DE00 1234", "EUR")
	require.NoError(t, err)

	got, err := l.Get(acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("1000.00")))
	assert.True(t, got.AvailableBalance.Equal(dec("400.00")))
	assert.True(t, got.ReservedBalance.Equal(dec("600.00")))

	// Second request against the remaining available balance fails even
	// though the first payout is still unreviewed.
	_, err = w.Request(acct.ID, dec("600.00"), BankTransfer, "DE00 1234", "EUR")
	assert.ErrorIs(t, err, account.ErrInsufficientBalance)
}

func TestConcurrentRequestsCannotDoubleWithdraw(t *testing.T) {
	t.Parallel()

	w, _, _, acct := newTestWorkflow(t, "1000.00")

	const attempts = 10
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Request(acct.ID, dec("600.00"), Crypto, "addr", "USD")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, account.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, succeeded, "only one 600.00 request can fit in a 1000.00 balance")
}

func TestRequestValidation(t *testing.T) {
	t.Parallel()

	w, _, j, acct := newTestWorkflow(t, "1000.00")

	var verr *account.ValidationError

	_, err := w.Request(acct.ID, dec("0"), Crypto, "addr", "USD")
	require.ErrorAs(t, err, &verr)

	_, err = w.Request(acct.ID, dec("10.00"), Method("paypal"), "addr", "USD")
	require.ErrorAs(t, err, &verr)

	_, err = w.Request(acct.ID, dec("2000.00"), Crypto, "addr", "USD")
	require.ErrorIs(t, err, account.ErrInsufficientBalance)

	// Rejected requests leave no payout and no transaction records beyond
	// the seed deposit.
	assert.Empty(t, w.List(acct.ID))
	assert.Equal(t, 1, countRecords(t, j, acct.ID))
}

func TestReviewApproveThenComplete(t *testing.T) {
	t.Parallel()

	w, l, j, acct := newTestWorkflow(t, "1000.00")

	p, err := w.Request(acct.ID, dec("200.00"), Stripe, "acct@example.com", "USD")
	require.NoError(t, err)

	p, err = w.MarkUnderReview(p.ID)
	require.NoError(t, err)
	assert.Equal(t, UnderReview, p.Status)

	p, err = w.Review(p.ID, Approve, "documents verified")
	require.NoError(t, err)
	assert.Equal(t, Approved, p.Status)
	assert.False(t, p.ApprovedAt.IsZero())

	p, err = w.Complete(p.ID, "ch_1abc")
	require.NoError(t, err)
	assert.Equal(t, Completed, p.Status)
	assert.Equal(t, "ch_1abc", p.ProviderTransactionID)

	got, err := l.Get(acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("800.00")))
	assert.True(t, got.ReservedBalance.IsZero())
	assert.True(t, got.AvailableBalance.Equal(dec("800.00")))

	// Seed deposit + payout_approved.
	assert.Equal(t, 2, countRecords(t, j, acct.ID))
}

func TestReviewReject(t *testing.T) {
	t.Parallel()

	w, l, j, acct := newTestWorkflow(t, "1000.00")

	p, err := w.Request(acct.ID, dec("300.00"), Crypto, "addr", "USD")
	require.NoError(t, err)

	p, err = w.Review(p.ID, Reject, "destination flagged")
	require.NoError(t, err)
	assert.Equal(t, Rejected, p.Status)
	assert.Equal(t, "destination flagged", p.RejectionReason)

	got, err := l.Get(acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("1000.00")))
	assert.True(t, got.AvailableBalance.Equal(dec("1000.00")))
	assert.True(t, got.ReservedBalance.IsZero())

	// The rejection record carries amount 0: the trail shows the event,
	// the balance chain is undisturbed.
	cur, err := j.Query(acct.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	var last journal.TransactionRecord
	for cur.Next() {
		last = cur.Record()
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, journal.PayoutRejected, last.Type)
	assert.True(t, last.Amount.IsZero())
	assert.True(t, last.BalanceBefore.Equal(last.BalanceAfter))
}

func TestCancelPending(t *testing.T) {
	t.Parallel()

	w, l, _, acct := newTestWorkflow(t, "1000.00")

	p, err := w.Request(acct.ID, dec("300.00"), Crypto, "addr", "USD")
	require.NoError(t, err)

	p, err = w.Cancel(p.ID)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, p.Status)

	got, err := l.Get(acct.ID)
	require.NoError(t, err)
	assert.True(t, got.AvailableBalance.Equal(dec("1000.00")))
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	t.Parallel()

	w, _, _, acct := newTestWorkflow(t, "1000.00")

	p, err := w.Request(acct.ID, dec("100.00"), Crypto, "addr", "USD")
	require.NoError(t, err)
	_, err = w.Review(p.ID, Reject, "no")
	require.NoError(t, err)

	var terr *TransitionError
	_, err = w.Review(p.ID, Approve, "changed my mind")
	assert.ErrorAs(t, err, &terr)

	_, err = w.Complete(p.ID, "tx")
	assert.ErrorAs(t, err, &terr)

	_, err = w.Cancel(p.ID)
	assert.ErrorAs(t, err, &terr)
}

func TestZeroFeeRateIsHonored(t *testing.T) {
	t.Parallel()

	l := account.NewLedger(journal.NewMemory())
	acct := l.Open("Free Account", "USD")
	_, err := l.Deposit(acct.ID, dec("1000.00"), "SEED", "")
	require.NoError(t, err)

	w := NewWorkflow(l, decimal.Zero)
	p, err := w.Request(acct.ID, dec("500.00"), Crypto, "addr", "USD")
	require.NoError(t, err)

	assert.True(t, p.FeeAmount.IsZero(), "fee %s", p.FeeAmount)
	assert.True(t, p.NetAmount.Equal(dec("500.00")))
}

// faultyJournal fails one Append on demand, then behaves normally.
type faultyJournal struct {
	*journal.Memory
	failNext bool
}

func (f *faultyJournal) Append(r journal.TransactionRecord) error {
	if f.failNext {
		f.failNext = false
		return errors.New("disk full")
	}
	return f.Memory.Append(r)
}

func TestCompleteRetriesAfterLedgerFailure(t *testing.T) {
	t.Parallel()

	j := &faultyJournal{Memory: journal.NewMemory()}
	l := account.NewLedger(j)
	acct := l.Open("Flaky Account", "USD")
	_, err := l.Deposit(acct.ID, dec("1000.00"), "SEED", "")
	require.NoError(t, err)

	w := NewWorkflow(l, decimal.NewFromInt(-1))
	p, err := w.Request(acct.ID, dec("200.00"), Crypto, "addr", "USD")
	require.NoError(t, err)
	_, err = w.Review(p.ID, Approve, "ok")
	require.NoError(t, err)

	j.failNext = true
	_, err = w.Complete(p.ID, "tx-1")
	require.Error(t, err)

	// The failure parks the payout in processing with the funds still
	// reserved; nothing was committed.
	p, err = w.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, Processing, p.Status)
	got, err := l.Get(acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("1000.00")))
	assert.True(t, got.ReservedBalance.Equal(dec("200.00")))

	// Once the journal recovers, Complete can be retried to completion.
	p, err = w.Complete(p.ID, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, Completed, p.Status)
	assert.Equal(t, "tx-1", p.ProviderTransactionID)

	got, err = l.Get(acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("800.00")))
	assert.True(t, got.ReservedBalance.IsZero())
}

func TestCompleteRequiresApproval(t *testing.T) {
	t.Parallel()

	w, _, _, acct := newTestWorkflow(t, "1000.00")

	p, err := w.Request(acct.ID, dec("100.00"), Crypto, "addr", "USD")
	require.NoError(t, err)

	var terr *TransitionError
	_, err = w.Complete(p.ID, "tx")
	assert.ErrorAs(t, err, &terr)
}
