package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// gasTTL expires cached gas observations so a dead refresh loop cannot
// serve hour-old prices as current.
const gasTTL = 15 * time.Minute

// GasCache implements domain.GasCache using one Redis hash per chain at
// key "gas:{chain}" with fields "gwei" and "ts" (Unix nanoseconds).
type GasCache struct {
	rdb *redis.Client
}

// NewGasCache creates a GasCache backed by the given Client.
func NewGasCache(c *Client) *GasCache {
	return &GasCache{rdb: c.Underlying()}
}

func gasKey(chain domain.Chain) string {
	return "gas:" + string(chain)
}

// SetGasPrice stores the latest gas observation for a chain.
func (gc *GasCache) SetGasPrice(ctx context.Context, chain domain.Chain, gwei float64, ts time.Time) error {
	key := gasKey(chain)
	fields := map[string]interface{}{
		"gwei": strconv.FormatFloat(gwei, 'f', -1, 64),
		"ts":   strconv.FormatInt(ts.UnixNano(), 10),
	}

	pipe := gc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, gasTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set gas price %s: %w", chain, err)
	}
	return nil
}

// GetGasPrice retrieves the latest gas observation for a chain. It returns
// domain.ErrNotFound when no fresh observation exists.
func (gc *GasCache) GetGasPrice(ctx context.Context, chain domain.Chain) (float64, time.Time, error) {
	vals, err := gc.rdb.HGetAll(ctx, gasKey(chain)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get gas price %s: %w", chain, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	gweiStr, ok := vals["gwei"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	gwei, err := strconv.ParseFloat(gweiStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse gwei %s: %w", chain, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", chain, err)
	}

	return gwei, time.Unix(0, tsNano).UTC(), nil
}

// Compile-time interface check.
var _ domain.GasCache = (*GasCache)(nil)
