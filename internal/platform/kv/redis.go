// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/unpuff/internal/platform/constants"
)

// RedisStore is a [Store] backed by Redis. Values never expire.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore namespaces every key under the client KV prefix and namespace,
// so several users can share one Redis without colliding.
func NewRedisStore(client redis.Cmdable, namespace string) *RedisStore {
	prefix := constants.RedisPrefixClientKV
	if namespace != "" {
		prefix += namespace + ":"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (store *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := store.client.Get(ctx, store.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv_redis_get_failed: %w", err)
	}
	return value, nil
}

func (store *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := store.client.Set(ctx, store.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv_redis_set_failed: %w", err)
	}
	return nil
}

func (store *RedisStore) Delete(ctx context.Context, key string) error {
	if err := store.client.Del(ctx, store.prefix+key).Err(); err != nil {
		return fmt.Errorf("kv_redis_delete_failed: %w", err)
	}
	return nil
}
