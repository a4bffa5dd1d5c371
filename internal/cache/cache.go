package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/linemk/gomarket/internal/service"
)

// Cache — обёртка над Redis для read-through кэширования каталога.
// Если Redis не сконфигурирован или недоступен, кэш молча выключен:
// Get всегда промахивается, записи игнорируются. Ошибки Redis
// логируются и никогда не доходят до вызывающего.
type Cache struct {
	log *slog.Logger
	rdb *redis.Client
}

// интерфейсная проверка: кэш подходит сервисам
var _ service.Cache = (*Cache)(nil)

// New подключается к Redis по URL; пустой URL означает отключённый кэш
func New(log *slog.Logger, redisURL string) (*Cache, error) {
	if redisURL == "" {
		log.Info("redis is not configured, caching disabled")
		return &Cache{log: log}, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("redis connected")
	return &Cache{log: log, rdb: rdb}, nil
}

func (c *Cache) enabled() bool {
	return c.rdb != nil
}

// Get читает значение в dest; возвращает true только при попадании
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.enabled() {
		return false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache get failed", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.log.Warn("cache unmarshal failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.enabled() {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache marshal failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.enabled() || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("cache delete failed", slog.Any("error", err))
	}
}

// DeletePattern удаляет все ключи по маске; используется для инвалидации
// каталога после любой записи
func (c *Cache) DeletePattern(ctx context.Context, pattern string) {
	if !c.enabled() {
		return
	}
	keys, err := c.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		c.log.Warn("cache keys lookup failed", slog.String("pattern", pattern), slog.Any("error", err))
		return
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			c.log.Warn("cache delete failed", slog.Any("error", err))
		}
	}
}

// Close закрывает подключение к Redis
func (c *Cache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Close()
}
