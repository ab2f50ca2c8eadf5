package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// KVCache is a string-keyed store scoped per user identity. It mirrors the
// client-side history page, the generation-attempt marker and the last-viewed
// post reference.
type KVCache interface {
	Get(ctx context.Context, userID, key string) (string, error)
	Set(ctx context.Context, userID, key, value string) error
	Del(ctx context.Context, userID, key string) error
	Close() error
}

type kvCache struct {
	log       *logger.Logger
	rdb       *goredis.Client
	keyPrefix string
}

func NewKVCache(log *logger.Logger) (KVCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(os.Getenv("REDIS_KEY_PREFIX"))
	if prefix == "" {
		prefix = "kolink"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &kvCache{
		log:       log.With("service", "RedisKVCache"),
		rdb:       rdb,
		keyPrefix: prefix,
	}, nil
}

func (c *kvCache) fullKey(userID, key string) string {
	return c.keyPrefix + ":" + userID + ":" + key
}

func (c *kvCache) Get(ctx context.Context, userID, key string) (string, error) {
	if c == nil || c.rdb == nil {
		return "", fmt.Errorf("kv cache not initialized")
	}
	val, err := c.rdb.Get(ctx, c.fullKey(userID, key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return val, nil
}

func (c *kvCache) Set(ctx context.Context, userID, key, value string) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("kv cache not initialized")
	}
	return c.rdb.Set(ctx, c.fullKey(userID, key), value, 0).Err()
}

func (c *kvCache) Del(ctx context.Context, userID, key string) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("kv cache not initialized")
	}
	return c.rdb.Del(ctx, c.fullKey(userID, key)).Err()
}

func (c *kvCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
