package strategies

import (
	"github.com/optrade/copyledger/market"
)

func init() {
	Register("noop", func() Strategy { return NoopStrategy{} })
}

// NoopStrategy does nothing. Useful as a placeholder and in tests.
type NoopStrategy struct{}

func (NoopStrategy) Name() string { return "noop" }

func (NoopStrategy) OnCandle(market.Candle) []market.OrderIntent { return nil }

func (NoopStrategy) Params() map[string]any { return map[string]any{} }

func (NoopStrategy) SerializeState() ([]byte, error) { return []byte("{}"), nil }

func (NoopStrategy) LoadState([]byte) error { return nil }

func (NoopStrategy) Reset() {}
