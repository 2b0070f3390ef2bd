package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPattern = "session:state:%d"
	sessionScanMatch  = "session:state:*"
	scanBatchCount    = 100
)

// RedisStorage persists sessions as JSON documents with a TTL.
type RedisStorage struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *slog.Logger
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage initializes a Redis-backed Storage implementation.
func NewRedisStorage(client redis.UniversalClient, ttl time.Duration, log *slog.Logger) *RedisStorage {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisStorage{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func (s *RedisStorage) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}

		s.log.Error("failed to get session from redis", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		s.log.Error("failed to decode session", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.Data == nil {
		session.Data = make(map[string]string)
	}

	return &session, nil
}

func (s *RedisStorage) Save(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(session.UserID), data, s.ttl).Err(); err != nil {
		s.log.Error("failed to save session in redis", slog.Int64("user_id", session.UserID), slog.Any("error", err))
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		s.log.Error("failed to delete session", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// List scans every session key. Sessions that vanish or fail to decode mid-scan are skipped.
func (s *RedisStorage) List(ctx context.Context) ([]*Session, error) {
	var (
		cursor uint64
		result []*Session
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionScanMatch, scanBatchCount).Result()
		if err != nil {
			s.log.Error("failed to scan sessions", slog.Any("error", err))
			return nil, fmt.Errorf("scan sessions: %w", err)
		}

		for _, key := range keys {
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return nil, fmt.Errorf("get session %s: %w", key, err)
			}

			var session Session
			if err := json.Unmarshal(data, &session); err != nil {
				s.log.Warn("skipping undecodable session", slog.String("key", key), slog.Any("error", err))
				continue
			}
			result = append(result, &session)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return result, nil
}

func sessionKey(userID int64) string {
	return fmt.Sprintf(sessionKeyPattern, userID)
}
