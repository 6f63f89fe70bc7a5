package strategies

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/optrade/copyledger/market"
)

func init() {
	Register("emacross", func() Strategy { return NewEMACross(EMACrossConfigDefaults()) })
}

// EMACross generates signals from a fast/slow EMA crossover on closes.
// - Cross up while flat: open a buy
// - Cross down while long: close
// Long-only; the intent consumer decides sizing against the account.
type EMACross struct {
	cfg EMACrossConfig
	st  emaCrossState
}

type EMACrossConfig struct {
	Symbol       string  `json:"symbol"`
	FastPeriod   int     `json:"fast_period"` // 20
	SlowPeriod   int     `json:"slow_period"` // 50
	PositionSize float64 `json:"position_size"`
}

// emaCrossState is everything that mutates between candles; it is the unit
// of serialization.
type emaCrossState struct {
	FastEMA float64 `json:"fast_ema"`
	SlowEMA float64 `json:"slow_ema"`
	Count   int     `json:"count"`
	Long    bool    `json:"long"`

	LastDiff     float64 `json:"last_diff"`
	HaveLastDiff bool    `json:"have_last_diff"`
}

func EMACrossConfigDefaults() EMACrossConfig {
	return EMACrossConfig{
		Symbol:       "BTC/USD",
		FastPeriod:   20,
		SlowPeriod:   50,
		PositionSize: 0.1,
	}
}

func NewEMACross(cfg EMACrossConfig) *EMACross {
	if cfg.FastPeriod <= 0 {
		cfg.FastPeriod = 20
	}
	if cfg.SlowPeriod <= 0 {
		cfg.SlowPeriod = 50
	}
	if cfg.PositionSize <= 0 {
		cfg.PositionSize = 0.1
	}
	return &EMACross{cfg: cfg}
}

func (s *EMACross) Name() string { return "emacross" }

func (s *EMACross) Params() map[string]any {
	return map[string]any{
		"symbol":        s.cfg.Symbol,
		"fast_period":   s.cfg.FastPeriod,
		"slow_period":   s.cfg.SlowPeriod,
		"position_size": s.cfg.PositionSize,
	}
}

func ema(prev, price float64, period, count int) float64 {
	if count == 0 {
		return price
	}
	k := 2.0 / (float64(period) + 1.0)
	return prev + k*(price-prev)
}

func (s *EMACross) OnCandle(c market.Candle) []market.OrderIntent {
	price := c.Close

	s.st.FastEMA = ema(s.st.FastEMA, price, s.cfg.FastPeriod, s.st.Count)
	s.st.SlowEMA = ema(s.st.SlowEMA, price, s.cfg.SlowPeriod, s.st.Count)
	s.st.Count++

	// Wait until the slow EMA has seen a full period.
	if s.st.Count < s.cfg.SlowPeriod {
		return nil
	}

	diff := s.st.FastEMA - s.st.SlowEMA
	if !s.st.HaveLastDiff {
		s.st.LastDiff = diff
		s.st.HaveLastDiff = true
		return nil
	}

	crossedUp := s.st.LastDiff <= 0 && diff > 0
	crossedDown := s.st.LastDiff >= 0 && diff < 0
	s.st.LastDiff = diff

	qty := decimal.NewFromFloat(s.cfg.PositionSize)

	switch {
	case crossedUp && !s.st.Long:
		s.st.Long = true
		return []market.OrderIntent{{
			Action:   market.OpenIntent,
			Symbol:   s.cfg.Symbol,
			Side:     market.Buy,
			Quantity: qty,
		}}

	case crossedDown && s.st.Long:
		s.st.Long = false
		return []market.OrderIntent{{
			Action:   market.CloseIntent,
			Symbol:   s.cfg.Symbol,
			Side:     market.Sell,
			Quantity: qty,
		}}
	}
	return nil
}

func (s *EMACross) SerializeState() ([]byte, error) {
	return json.Marshal(s.st)
}

func (s *EMACross) LoadState(data []byte) error {
	return json.Unmarshal(data, &s.st)
}

func (s *EMACross) Reset() {
	s.st = emaCrossState{}
}
