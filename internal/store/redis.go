package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var errValueChanged = errors.New("value changed")

// RedisStore keeps state in Redis. Conditional writes use WATCH/MULTI so a
// concurrent writer on the same key aborts the transaction instead of being
// overwritten.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *logrus.Logger
}

func NewRedisStore(client *redis.Client, prefix string, logger *logrus.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

func (s *RedisStore) setKey(set string) string {
	return s.prefix + "set:" + set
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to get key from Redis")
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to store key in Redis")
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error) {
	k := s.key(key)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		if err := s.matches(ctx, tx, k, old); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, value, ttl)
			return nil
		})
		return err
	}, k)
	return s.conditionalResult(key, err)
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, key string, old []byte) (bool, error) {
	k := s.key(key)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		if old == nil {
			return errValueChanged
		}
		if err := s.matches(ctx, tx, k, old); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, k)
			return nil
		})
		return err
	}, k)
	return s.conditionalResult(key, err)
}

// matches checks the watched key against the expected value.
func (s *RedisStore) matches(ctx context.Context, tx *redis.Tx, k string, old []byte) error {
	current, err := tx.Get(ctx, k).Bytes()
	switch {
	case err == redis.Nil:
		if old != nil {
			return errValueChanged
		}
		return nil
	case err != nil:
		return err
	case old == nil || !bytes.Equal(current, old):
		return errValueChanged
	}
	return nil
}

func (s *RedisStore) conditionalResult(key string, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errValueChanged), errors.Is(err, redis.TxFailedErr):
		return false, nil
	default:
		s.logger.WithError(err).WithField("key", key).Error("Conditional write to Redis failed")
		return false, fmt.Errorf("conditional write %s: %w", key, err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) AddMember(ctx context.Context, set, member string) error {
	if err := s.client.SAdd(ctx, s.setKey(set), member).Err(); err != nil {
		return fmt.Errorf("failed to add %s to %s: %w", member, set, err)
	}
	return nil
}

func (s *RedisStore) RemoveMember(ctx context.Context, set, member string) error {
	if err := s.client.SRem(ctx, s.setKey(set), member).Err(); err != nil {
		return fmt.Errorf("failed to remove %s from %s: %w", member, set, err)
	}
	return nil
}

func (s *RedisStore) IsMember(ctx context.Context, set, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.setKey(set), member).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s in %s: %w", member, set, err)
	}
	return ok, nil
}

func (s *RedisStore) Members(ctx context.Context, set string) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.setKey(set)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", set, err)
	}
	sort.Strings(members)
	return members, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
