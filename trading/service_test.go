package trading

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optrade/copyledger/account"
	"github.com/optrade/copyledger/broker"
	"github.com/optrade/copyledger/config"
	"github.com/optrade/copyledger/journal"
	"github.com/optrade/copyledger/market"
	"github.com/optrade/copyledger/payout"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeBroker accepts every order and reports a fixed balance.
type fakeBroker struct {
	orders  int
	closes  int
	balance decimal.Decimal
}

func (f *fakeBroker) PlaceOrder(context.Context, broker.OrderRequest) (broker.OrderResult, error) {
	f.orders++
	return broker.OrderResult{StatusCode: 201, OrderID: "BRK-1"}, nil
}

func (f *fakeBroker) CloseOrder(context.Context, string) (broker.OrderResult, error) {
	f.closes++
	return broker.OrderResult{StatusCode: 200}, nil
}

func (f *fakeBroker) GetBalance(context.Context, string) (decimal.Decimal, error) {
	return f.balance, nil
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func newTestService(t *testing.T) (*Service, *fakeBroker) {
	t.Helper()

	cfg := config.Default()
	cfg.Journal.Type = "memory"
	cfg.Journal.DBPath = ""

	b := &fakeBroker{}
	s, err := New(cfg, b, journal.NewMemory(), quietLog())
	require.NoError(t, err)
	return s, b
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Broker.URL = ""
	_, err := New(cfg, &fakeBroker{}, journal.NewMemory(), quietLog())
	assert.Error(t, err)
}

func TestDepositLifecycle(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	acct := s.OpenAccount("alice")

	d, err := s.CreateDeposit(acct.ID, dec("250.00"), "WIRE-77")
	require.NoError(t, err)
	assert.Equal(t, DepositPending, d.Status)

	// Pending deposits move no money.
	got, err := s.Ledger().Get(acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())

	d, err = s.SettleDeposit(d.ID)
	require.NoError(t, err)
	assert.Equal(t, DepositSettled, d.Status)
	assert.False(t, d.SettledAt.IsZero())

	got, err = s.Ledger().Get(acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("250.00")))
	assert.True(t, got.AvailableBalance.Equal(dec("250.00")))

	// Settling twice is rejected and does not double-credit.
	_, err = s.SettleDeposit(d.ID)
	assert.Error(t, err)
	got, err = s.Ledger().Get(acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("250.00")))

	ds := s.Deposits(acct.ID)
	require.Len(t, ds, 1)
	assert.Equal(t, d.ID, ds[0].ID)
}

func TestCreateDepositValidation(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	acct := s.OpenAccount("alice")

	var verr *account.ValidationError
	_, err := s.CreateDeposit(acct.ID, dec("-1"), "")
	assert.ErrorAs(t, err, &verr)

	_, err = s.CreateDeposit("nope", dec("10"), "")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestCreatePayoutUsesAccountCurrency(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	acct := s.OpenAccount("alice")
	d, err := s.CreateDeposit(acct.ID, dec("5000.00"), "")
	require.NoError(t, err)
	_, err = s.SettleDeposit(d.ID)
	require.NoError(t, err)

	p, err := s.CreatePayout(acct.ID, dec("2500.00"), payout.BankTransfer, "DE89 3704 0044 0532 0130 00")
	require.NoError(t, err)

	assert.Equal(t, "USD", p.Currency)
	assert.True(t, p.FeeAmount.Equal(dec("25.00")))
	assert.True(t, p.NetAmount.Equal(dec("2475.00")))

	got, err := s.Ledger().Get(acct.ID)
	require.NoError(t, err)
	assert.True(t, got.ReservedBalance.Equal(dec("2500.00")))
}

func TestOpenCopyTradeGate(t *testing.T) {
	t.Parallel()

	s, b := newTestService(t)
	acct := s.OpenAccount("alice")

	// Zero available balance blocks the relay before any broker call.
	_, err := s.OpenCopyTrade(context.Background(), acct.ID, market.Order{ID: "ORD-1", Symbol: "BTC/USD", Side: market.Buy, Type: market.Market, Quantity: dec("0.1")})
	assert.True(t, errors.Is(err, ErrCopyTradeBlocked))
	assert.Zero(t, b.orders)
}

func TestOpenAndCloseCopyTrade(t *testing.T) {
	t.Parallel()

	s, b := newTestService(t)
	acct := s.OpenAccount("alice")
	d, err := s.CreateDeposit(acct.ID, dec("1000.00"), "")
	require.NoError(t, err)
	_, err = s.SettleDeposit(d.ID)
	require.NoError(t, err)
	require.NoError(t, s.Ledger().SetBrokerAccount(acct.ID, "BA-9"))

	order := market.Order{ID: "ORD-1", Symbol: "BTC/USD", Side: market.Buy, Type: market.Market, Quantity: dec("0.1")}

	att, err := s.OpenCopyTrade(context.Background(), acct.ID, order)
	require.NoError(t, err)
	assert.Equal(t, "BRK-1", att.BrokerOrderID)
	assert.Equal(t, 1, b.orders)

	att, err = s.CloseCopyTrade(context.Background(), acct.ID, order)
	require.NoError(t, err)
	assert.Equal(t, 1, b.closes)
	assert.Equal(t, market.CloseIntent, att.Action)
}

func TestPerformance(t *testing.T) {
	t.Parallel()

	s, _ := newTestService(t)
	acct := s.OpenAccount("alice")
	d, err := s.CreateDeposit(acct.ID, dec("1000.00"), "")
	require.NoError(t, err)
	_, err = s.SettleDeposit(d.ID)
	require.NoError(t, err)
	_, err = s.Ledger().ApplyTradeResult(acct.ID, dec("120.00"), "T1")
	require.NoError(t, err)

	p, err := s.Performance(acct.ID, "all")
	require.NoError(t, err)
	assert.True(t, p.ProfitLoss.Equal(dec("1120.00")), "p/l %s", p.ProfitLoss)
	assert.True(t, p.EndingBalance.Equal(dec("1120.00")))
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Journal.Type = "memory"
	cfg.Journal.DBPath = ""
	cfg.Reconcile.Interval = "5ms"

	s, err := New(cfg, &fakeBroker{}, journal.NewMemory(), quietLog())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}
