package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"main/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"
)

const defaultTTL = 2 * time.Minute

var ErrNoPrice = errors.New("cache: no price cached")

// LatestPrice mirrors the freshest tick per key into redis so sidecar
// consumers can read current prices without touching the store. Entries
// expire on their own; a stale cache is treated as empty.
type LatestPrice struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLatestPrice(client *redis.Client, ttl time.Duration) *LatestPrice {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &LatestPrice{client: client, ttl: ttl}
}

func key(symbol, exchange string) string {
	return fmt.Sprintf("latest:%s:%s", symbol, exchange)
}

// Publish overwrites the cached tick for the tick's key.
func (l *LatestPrice) Publish(ctx context.Context, tick model.Tick) error {
	raw, err := json.Marshal(tick)
	if err != nil {
		return errors.Wrap(err, "marshal tick")
	}
	if err := l.client.Set(ctx, key(tick.Symbol, tick.Exchange), raw, l.ttl).Err(); err != nil {
		return errors.Wrap(err, "set latest price")
	}
	return nil
}

// Latest returns the cached tick for a key, or ErrNoPrice when the entry
// is missing or expired.
func (l *LatestPrice) Latest(ctx context.Context, symbol, exchange string) (model.Tick, error) {
	raw, err := l.client.Get(ctx, key(symbol, exchange)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return model.Tick{}, ErrNoPrice
		}
		return model.Tick{}, errors.Wrap(err, "get latest price")
	}

	var tick model.Tick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return model.Tick{}, errors.Wrap(err, "unmarshal cached tick")
	}
	return tick, nil
}

// Ping reports cache connectivity.
func (l *LatestPrice) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
