package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openpredict/marketd/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each
// condition's last clearing price is stored as a hash at key
// "price:{conditionID}" with fields "price" (millibucks) and "ts" (Unix
// nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(cond domain.ConditionID) string {
	return "price:" + string(cond)
}

// SetPrice stores the latest clearing price and timestamp for a condition.
func (pc *PriceCache) SetPrice(ctx context.Context, cond domain.ConditionID, price domain.Price, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatInt(int64(price), 10),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(cond), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", cond, err)
	}
	return nil
}

// GetPrice retrieves the latest clearing price and timestamp for a condition.
// It returns domain.ErrNotFound when no trade has been cached yet.
func (pc *PriceCache) GetPrice(ctx context.Context, cond domain.ConditionID) (domain.Price, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(cond)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", cond, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseInt(priceStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", cond, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", cond, err)
	}

	return domain.Price(price), time.Unix(0, tsNano), nil
}

// GetPrices retrieves the latest clearing prices for multiple conditions
// using a pipeline. Conditions that have never traded are silently omitted
// from the result map.
func (pc *PriceCache) GetPrices(ctx context.Context, conds []domain.ConditionID) (map[domain.ConditionID]domain.Price, error) {
	if len(conds) == 0 {
		return map[domain.ConditionID]domain.Price{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[domain.ConditionID]*redis.MapStringStringCmd, len(conds))
	for _, id := range conds {
		cmds[id] = pipe.HGetAll(ctx, priceKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[domain.ConditionID]domain.Price, len(conds))
	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		priceStr, ok := vals["price"]
		if !ok {
			continue
		}
		price, err := strconv.ParseInt(priceStr, 10, 64)
		if err != nil {
			continue
		}
		result[id] = domain.Price(price)
	}

	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
