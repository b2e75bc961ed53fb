// Package session tracks active login sessions per account so that archival
// and permanent deletion can revoke them. Session issuance lives in the
// authentication service; this package only indexes and revokes.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "archivist/pkg/domain"
)

const (
	sessionKeyPrefix      = "session:"
	accountIndexKeyPrefix = "sessions:account:"
)

// RedisStore is the production session index. Each session is a plain key
// with the login TTL, and every account keeps a set of its session IDs so
// revocation can find them without scanning.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Register indexes a new session for the account.
func (s *RedisStore) Register(ctx context.Context, accountID id.AccountID, sessionID string, ttl time.Duration) error {
	if sessionID == "" {
		return nil
	}
	indexKey := accountIndexKeyPrefix + uuid.UUID(accountID).String()

	pipe := s.client.Pipeline()
	pipe.Set(ctx, sessionKeyPrefix+sessionID, uuid.UUID(accountID).String(), ttl)
	pipe.SAdd(ctx, indexKey, sessionID)
	pipe.Expire(ctx, indexKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return nil
}

// ActiveCount reports how many sessions of the account are still live.
// Index entries whose session key has already expired are not counted.
func (s *RedisStore) ActiveCount(ctx context.Context, accountID id.AccountID) (int, error) {
	indexKey := accountIndexKeyPrefix + uuid.UUID(accountID).String()
	sessionIDs, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	active := 0
	for _, sessionID := range sessionIDs {
		exists, err := s.client.Exists(ctx, sessionKeyPrefix+sessionID).Result()
		if err != nil {
			return 0, fmt.Errorf("check session: %w", err)
		}
		if exists > 0 {
			active++
		}
	}
	return active, nil
}

// RevokeByAccount deletes every session of the account and its index, and
// reports how many sessions were revoked.
func (s *RedisStore) RevokeByAccount(ctx context.Context, accountID id.AccountID) (int, error) {
	indexKey := accountIndexKeyPrefix + uuid.UUID(accountID).String()
	sessionIDs, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions for revocation: %w", err)
	}

	pipe := s.client.Pipeline()
	for _, sessionID := range sessionIDs {
		pipe.Del(ctx, sessionKeyPrefix+sessionID)
	}
	pipe.Del(ctx, indexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return len(sessionIDs), nil
}
