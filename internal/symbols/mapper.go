package symbols

import "sync"

// Mapper resolves broker-native identifiers into canonical symbol and
// exchange names. Bare numeric feed tokens go through ResolveBrokerSymbol
// before a tick is accepted.
type Mapper interface {
	ResolveBrokerSymbol(rawToken string) (string, bool)
	ResolveBrokerExchange(symbol string) (string, bool)
}

// Table is an in-memory Mapper backed by configured lookup tables.
type Table struct {
	mu         sync.RWMutex
	byToken    map[string]string
	byExchange map[string]string
}

func NewTable() *Table {
	return &Table{
		byToken:    make(map[string]string),
		byExchange: make(map[string]string),
	}
}

// Add registers one broker token with its canonical symbol and exchange.
func (t *Table) Add(token, symbol, exchange string) {
	t.mu.Lock()
	t.byToken[token] = symbol
	t.byExchange[symbol] = exchange
	t.mu.Unlock()
}

func (t *Table) ResolveBrokerSymbol(rawToken string) (string, bool) {
	t.mu.RLock()
	symbol, ok := t.byToken[rawToken]
	t.mu.RUnlock()
	return symbol, ok
}

func (t *Table) ResolveBrokerExchange(symbol string) (string, bool) {
	t.mu.RLock()
	exchange, ok := t.byExchange[symbol]
	t.mu.RUnlock()
	return exchange, ok
}
