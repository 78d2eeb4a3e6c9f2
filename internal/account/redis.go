// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/unpuff/internal/platform/apperr"
	"github.com/taibuivan/unpuff/internal/platform/constants"
)

// RedisTokenRepository implements [TokenRepository] using Redis.
type RedisTokenRepository struct {
	client redis.Cmdable
}

// NewRedisTokenRepository creates a new Redis-backed TokenRepository.
func NewRedisTokenRepository(client redis.Cmdable) *RedisTokenRepository {
	return &RedisTokenRepository{client: client}
}

// # Sessions

/*
SaveSession stores a live session keyed by the access token's jti.

Parameters:
  - ctx: context.Context
  - tokenID: string
  - accountID: string
  - ttl: time.Duration (matches the access token lifetime)

Returns:
  - error: Storage failures
*/
func (repository *RedisTokenRepository) SaveSession(ctx context.Context, tokenID, accountID string, ttl time.Duration) error {
	key := constants.RedisPrefixSession + tokenID

	if err := repository.client.Set(ctx, key, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_session_set_failed: %w", err)
	}
	return nil
}

/*
FindSession resolves a live session to its account ID.

Description: Returns apperr.NotFound if the session expired or was revoked.
*/
func (repository *RedisTokenRepository) FindSession(ctx context.Context, tokenID string) (string, error) {
	key := constants.RedisPrefixSession + tokenID

	accountID, err := repository.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Session")
		}
		return "", fmt.Errorf("redis_session_get_failed: %w", err)
	}
	return accountID, nil
}

// RevokeSession deletes the session.
func (repository *RedisTokenRepository) RevokeSession(ctx context.Context, tokenID string) error {
	key := constants.RedisPrefixSession + tokenID

	if err := repository.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis_session_delete_failed: %w", err)
	}
	return nil
}

// # Verification Tokens

// SaveVerifyToken stores an email confirmation token hash with its account ID.
func (repository *RedisTokenRepository) SaveVerifyToken(ctx context.Context, tokenHash, accountID string, ttl time.Duration) error {
	key := constants.RedisPrefixVerifyToken + tokenHash

	if err := repository.client.Set(ctx, key, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_verify_token_set_failed: %w", err)
	}
	return nil
}

/*
ConsumeVerifyToken atomically reads and deletes a confirmation token, so a
link works exactly once.

Returns:
  - string: Account ID
  - error: apperr.NotFound or connectivity errors
*/
func (repository *RedisTokenRepository) ConsumeVerifyToken(ctx context.Context, tokenHash string) (string, error) {
	key := constants.RedisPrefixVerifyToken + tokenHash

	accountID, err := repository.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Verification token")
		}
		return "", fmt.Errorf("redis_verify_token_consume_failed: %w", err)
	}
	return accountID, nil
}

// # OAuth State

// SaveOAuthState stores a pending OAuth flow under its state parameter.
func (repository *RedisTokenRepository) SaveOAuthState(ctx context.Context, state string, pending OAuthState, ttl time.Duration) error {
	key := constants.RedisPrefixOAuthState + state

	payload, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("redis_oauth_state_encode_failed: %w", err)
	}
	if err := repository.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_oauth_state_set_failed: %w", err)
	}
	return nil
}

// ConsumeOAuthState atomically reads and deletes a pending OAuth flow.
func (repository *RedisTokenRepository) ConsumeOAuthState(ctx context.Context, state string) (*OAuthState, error) {
	key := constants.RedisPrefixOAuthState + state

	payload, err := repository.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("OAuth state")
		}
		return nil, fmt.Errorf("redis_oauth_state_consume_failed: %w", err)
	}

	var pending OAuthState
	if err := json.Unmarshal(payload, &pending); err != nil {
		return nil, fmt.Errorf("redis_oauth_state_decode_failed: %w", err)
	}
	return &pending, nil
}
