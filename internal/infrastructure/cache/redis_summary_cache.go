// Package cache implementa la caché de resúmenes de stock sobre Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/traslados-api/internal/application/ports"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/pkg/config"
)

var _ ports.StockSummaryCache = (*RedisSummaryCache)(nil)

const keyPrefix = "traslados:stock-summary:"

// NewClient abre la conexión a Redis y verifica con PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// RedisSummaryCache guarda el resumen de cada stock como JSON con TTL.
// Es solo una copia de lectura: el libro de lotes sigue siendo la fuente de verdad.
type RedisSummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSummaryCache construye la caché. ttl <= 0 usa un minuto.
func NewRedisSummaryCache(rdb *redis.Client, ttl time.Duration) *RedisSummaryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisSummaryCache{rdb: rdb, ttl: ttl}
}

// Get devuelve (nil, nil) si la entrada no existe.
func (c *RedisSummaryCache) Get(ctx context.Context, stockID string) (*entity.StockSummary, error) {
	raw, err := c.rdb.Get(ctx, key(stockID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get summary: %w", err)
	}
	var s entity.StockSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		// entrada corrupta: se descarta y se recalcula
		_ = c.rdb.Del(ctx, key(stockID)).Err()
		return nil, nil
	}
	return &s, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, s entity.StockSummary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: encode summary: %w", err)
	}
	if err := c.rdb.Set(ctx, key(s.StockID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set summary: %w", err)
	}
	return nil
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, stockIDs ...string) error {
	if len(stockIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stockIDs))
	for _, id := range stockIDs {
		keys = append(keys, key(id))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate summaries: %w", err)
	}
	return nil
}

func key(stockID string) string { return keyPrefix + stockID }
