package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/optrade/copyledger/market"
)

// Strategy is the capability set a signal generator must implement. A
// strategy is a pure producer of order intents: it never touches account or
// ledger state, and it owns no state beyond what it is explicitly given.
type Strategy interface {
	Name() string

	// OnCandle consumes one candle and returns zero or more order intents.
	OnCandle(c market.Candle) []market.OrderIntent

	// Params returns the strategy's configuration for display/persistence.
	Params() map[string]any

	// SerializeState snapshots mutable state so a strategy can be resumed
	// across restarts.
	SerializeState() ([]byte, error)
	LoadState(data []byte) error

	Reset()
}

var (
	mu       sync.Mutex
	registry = make(map[string]func() Strategy)
)

// Register makes a strategy constructor available by name.
func Register(name string, ctor func() Strategy) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// New builds a fresh strategy instance by registered name.
func New(name string) (Strategy, error) {
	mu.Lock()
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (registered: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Names lists registered strategies.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
