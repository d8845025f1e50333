package user

import (
	"context"
	"errors"
	"time"

	"dmchat/internal/apperror"

	"github.com/redis/go-redis/v9"
)

// ResetTokenTTL bounds how long a password-reset link stays usable.
const ResetTokenTTL = 15 * time.Minute

// ResetTokenStore hands out single-use password-reset tokens.
type ResetTokenStore interface {
	Save(ctx context.Context, token, userID string, ttl time.Duration) error
	// Consume returns the owning user id and invalidates the token.
	Consume(ctx context.Context, token string) (string, error)
}

// RedisTokenStore keeps reset tokens in Redis; the TTL does the expiry
// bookkeeping so no expires-at column is needed on the user row.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) key(token string) string {
	return "reset:" + token
}

func (s *RedisTokenStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(token), userID, ttl).Err()
}

func (s *RedisTokenStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperror.NotFound("reset token", token)
		}
		return "", err
	}
	return userID, nil
}
