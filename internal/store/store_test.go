package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return NewRedisStore(client, "test:", logger), mr
}

func backends(t *testing.T) map[string]Backend {
	redisStore, _ := setupTestRedis(t)
	return map[string]Backend{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func TestBackend_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Put(ctx, "k", []byte("v1"), 0))
			got, err := b.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			require.NoError(t, b.Delete(ctx, "k"))
			_, err = b.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			// deleting twice is fine
			assert.NoError(t, b.Delete(ctx, "k"))
		})
	}
}

func TestBackend_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := b.CompareAndSwap(ctx, "k", nil, []byte("a"), 0)
			require.NoError(t, err)
			assert.True(t, ok, "create when absent")

			ok, err = b.CompareAndSwap(ctx, "k", nil, []byte("b"), 0)
			require.NoError(t, err)
			assert.False(t, ok, "create must fail when present")

			ok, err = b.CompareAndSwap(ctx, "k", []byte("stale"), []byte("b"), 0)
			require.NoError(t, err)
			assert.False(t, ok, "stale old value")

			ok, err = b.CompareAndSwap(ctx, "k", []byte("a"), []byte("b"), 0)
			require.NoError(t, err)
			assert.True(t, ok)

			got, err := b.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("b"), got)

			ok, err = b.CompareAndDelete(ctx, "k", []byte("a"))
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = b.CompareAndDelete(ctx, "k", []byte("b"))
			require.NoError(t, err)
			assert.True(t, ok)

			_, err = b.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBackend_Sets(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			members, err := b.Members(ctx, "verified")
			require.NoError(t, err)
			assert.Empty(t, members)

			require.NoError(t, b.AddMember(ctx, "verified", "+912222222222"))
			require.NoError(t, b.AddMember(ctx, "verified", "+911111111111"))
			require.NoError(t, b.AddMember(ctx, "verified", "+911111111111"))

			ok, err := b.IsMember(ctx, "verified", "+911111111111")
			require.NoError(t, err)
			assert.True(t, ok)

			members, err = b.Members(ctx, "verified")
			require.NoError(t, err)
			assert.Equal(t, []string{"+911111111111", "+912222222222"}, members)

			require.NoError(t, b.RemoveMember(ctx, "verified", "+911111111111"))
			require.NoError(t, b.RemoveMember(ctx, "verified", "+911111111111"))

			ok, err = b.IsMember(ctx, "verified", "+911111111111")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore().WithClock(func() time.Time { return now })

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(59 * time.Second)
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.CompareAndSwap(ctx, "k", nil, []byte("fresh"), 0)
	require.NoError(t, err)
	assert.True(t, ok, "expired key counts as absent")
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	s, mr := setupTestRedis(t)

	ok, err := s.CompareAndSwap(ctx, "k", nil, []byte("v"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	mr.FastForward(time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	errReported := errors.New("reported")

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := Update(ctx, b, "counter", 0, func(cur []byte, found bool) ([]byte, Op, error) {
				assert.False(t, found)
				return []byte("1"), OpPut, nil
			})
			require.NoError(t, err)

			err = Update(ctx, b, "counter", 0, func(cur []byte, found bool) ([]byte, Op, error) {
				assert.True(t, found)
				assert.Equal(t, []byte("1"), cur)
				return nil, OpDelete, errReported
			})
			assert.ErrorIs(t, err, errReported, "fn error is returned after the delete commits")

			_, err = b.Get(ctx, "counter")
			assert.ErrorIs(t, err, ErrNotFound)

			err = Update(ctx, b, "counter", 0, func(cur []byte, found bool) ([]byte, Op, error) {
				return nil, OpNone, errReported
			})
			assert.ErrorIs(t, err, errReported)
		})
	}
}

// flakyKV fails the first n conditional writes as if another writer got there first.
type flakyKV struct {
	KV
	failures int
}

func (f *flakyKV) CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error) {
	if f.failures > 0 {
		f.failures--
		return false, nil
	}
	return f.KV.CompareAndSwap(ctx, key, old, value, ttl)
}

func TestUpdate_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{KV: NewMemoryStore(), failures: 3}

	calls := 0
	err := Update(ctx, kv, "k", 0, func(cur []byte, found bool) ([]byte, Op, error) {
		calls++
		return []byte("v"), OpPut, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)

	kv.failures = maxUpdateRetries
	err = Update(ctx, kv, "k2", 0, func(cur []byte, found bool) ([]byte, Op, error) {
		return []byte("v"), OpPut, nil
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdate_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 8
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := Update(ctx, b, "n", 0, func(cur []byte, found bool) ([]byte, Op, error) {
						return append(cur, 'x'), OpPut, nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			got, err := b.Get(ctx, "n")
			require.NoError(t, err)
			assert.Len(t, got, workers)
		})
	}
}
