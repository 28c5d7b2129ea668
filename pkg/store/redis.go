package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abworrall/longexpo/pkg/emath"
)

// RedisStore keeps encoded rasters in redis, under a key prefix, with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
	})

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "longexpo:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: cfg.TTL}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w: %v", emath.ErrResource, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (emath.Raster, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return emath.Raster{}, false, nil
	} else if err != nil {
		return emath.Raster{}, false, fmt.Errorf("redis get '%s': %w: %v", key, emath.ErrResource, err)
	}

	r, err := DecodeBytes(data)
	if err != nil {
		return emath.Raster{}, false, fmt.Errorf("redis '%s': %w", key, err)
	}
	return r, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, r emath.Raster) error {
	data, err := EncodeBytes(r)
	if err != nil {
		return fmt.Errorf("redis '%s': %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set '%s': %w: %v", key, emath.ErrResource, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
