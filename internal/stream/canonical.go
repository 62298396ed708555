package stream

import (
	"strconv"
	"strings"
	"time"

	"main/internal/model"
	"main/internal/symbols"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

var (
	ErrInvalidPrice     = errors.New("stream: non-positive last price")
	ErrUnresolvedSymbol = errors.New("stream: unresolvable symbol or exchange")
)

// canonicalizer turns heterogeneously named raw feed fields into canonical
// ticks. The upstream uses vendor short codes: lp (last price), o/h/l/c,
// v (volume), oi, bp1/sp1 (best bid/ask), ft (feed time), tk (token),
// e (exchange).
type canonicalizer struct {
	mapper symbols.Mapper
	now    func() time.Time
}

func newCanonicalizer(mapper symbols.Mapper) *canonicalizer {
	return &canonicalizer{mapper: mapper, now: time.Now}
}

// Canonicalize builds a Tick from one raw event. Ticks without a strictly
// positive last price, or whose symbol cannot be resolved, are rejected.
func (c *canonicalizer) Canonicalize(topic string, fields map[string]any) (model.Tick, error) {
	symbol, exchange := splitTopic(topic)

	if symbol == "" {
		symbol = stringField(fields, "symbol", "tk")
	}
	if exchange == "" {
		exchange = stringField(fields, "exchange", "e")
	}

	if symbol != "" && isNumericToken(symbol) && c.mapper != nil {
		resolved, ok := c.mapper.ResolveBrokerSymbol(symbol)
		if !ok {
			return model.Tick{}, ErrUnresolvedSymbol
		}
		symbol = resolved
		if exchange == "" {
			if ex, ok := c.mapper.ResolveBrokerExchange(symbol); ok {
				exchange = ex
			}
		}
	}
	if symbol == "" || exchange == "" {
		return model.Tick{}, ErrUnresolvedSymbol
	}

	ltp := decimalField(fields, "lp", "ltp")
	if ltp.Sign() <= 0 {
		return model.Tick{}, ErrInvalidPrice
	}

	closePx := decimalField(fields, "c", "close")
	if closePx.IsZero() {
		closePx = ltp
	}

	feedTS := intField(fields, "timestamp", "ft")
	if feedTS == 0 {
		feedTS = c.now().UnixMilli()
	}

	return model.Tick{
		Symbol:   symbol,
		Exchange: exchange,
		LTP:      ltp,
		Open:     decimalField(fields, "o", "open"),
		High:     decimalField(fields, "h", "high"),
		Low:      decimalField(fields, "l", "low"),
		Close:    closePx,
		Volume:   intField(fields, "v", "volume"),
		OI:       intField(fields, "oi"),
		Bid:      decimalField(fields, "bp1", "bid"),
		Ask:      decimalField(fields, "sp1", "ask"),
		FeedTS:   feedTS,
	}, nil
}

// splitTopic parses "EXCHANGE_SYMBOL" or "EXCHANGE_SYMBOL_MODE" topics.
func splitTopic(topic string) (symbol, exchange string) {
	parts := strings.Split(topic, "_")
	if len(parts) < 2 {
		return "", ""
	}
	return parts[1], parts[0]
}

func isNumericToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func stringField(fields map[string]any, names ...string) string {
	for _, name := range names {
		switch v := fields[name].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func decimalField(fields map[string]any, names ...string) decimal.Decimal {
	for _, name := range names {
		switch v := fields[name].(type) {
		case float64:
			if v != 0 {
				return decimal.NewFromFloat(v)
			}
		case string:
			if d, err := decimal.NewFromString(v); err == nil && !d.IsZero() {
				return d
			}
		case int64:
			if v != 0 {
				return decimal.NewFromInt(v)
			}
		}
	}
	return decimal.Zero
}

func intField(fields map[string]any, names ...string) int64 {
	for _, name := range names {
		switch v := fields[name].(type) {
		case float64:
			if v != 0 {
				return int64(v)
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n != 0 {
				return n
			}
		case int64:
			if v != 0 {
				return v
			}
		case int:
			if v != 0 {
				return int64(v)
			}
		}
	}
	return 0
}
