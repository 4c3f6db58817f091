package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/config"
	apperrors "github.com/chain-ledger/internal/errors"
)

const priceKeyPrefix = "ledger:price:"

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.MaxConnections,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisPriceStore keeps resolved prices in Redis so that separate processes
// (the server and the CLI) share one price history. Prices are stored as
// decimal strings.
type RedisPriceStore struct {
	client *redis.Client
}

// NewRedisPriceStore wraps an existing client
func NewRedisPriceStore(client *redis.Client) *RedisPriceStore {
	return &RedisPriceStore{client: client}
}

// Get returns the stored price of key, reporting false when absent
func (s *RedisPriceStore) Get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	raw, err := s.client.Get(ctx, priceKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, apperrors.NewCacheError("price get", err)
	}

	p, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, apperrors.NewCacheError("price decode", err)
	}
	return p, true, nil
}

// Set stores a price. Historical prices are written with ttl 0 and never
// overwritten; current prices expire after ttl.
func (s *RedisPriceStore) Set(ctx context.Context, key string, price decimal.Decimal, ttl time.Duration) error {
	var err error
	if ttl == 0 {
		err = s.client.SetNX(ctx, priceKeyPrefix+key, price.String(), 0).Err()
	} else {
		err = s.client.Set(ctx, priceKeyPrefix+key, price.String(), ttl).Err()
	}
	if err != nil {
		return apperrors.NewCacheError("price set", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (s *RedisPriceStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
