package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryRunsUntilDone(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", func(attempt int) (bool, error) {
		calls++
		assert.Equal(t, calls, attempt)
		return attempt == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), "op", func(int) (bool, error) {
		calls++
		return false, boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestRetryGivesUpWithConflict(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Retry(context.Background(), "op", func(int) (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, maxAttempts, calls)
	assert.Greater(t, time.Since(start), initialBackoff, "attempts are spaced out")
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, "op", func(int) (bool, error) {
		calls++
		cancel()
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestKeyLocksSerializeOneKey(t *testing.T) {
	var locks keyLocks
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.LockKey("k")
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locks.size(), "released locks are dropped")

	unlockA := locks.LockKey("a")
	unlockB := locks.LockKey("b")
	assert.Equal(t, 2, locks.size(), "different keys do not block each other")
	unlockA()
	unlockB()
}

func TestLockKeyWithoutLockerIsNoop(t *testing.T) {
	unlock := LockKey(&racingStore{Store: NewMemory()}, "k")
	unlock()
}

// Two Redis clients on one server stand in for two API processes; each
// queues its own writers, the processes race through compare-and-swap.
func TestMutateContentionAcrossRedisClients(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	var procs []*Redis
	for i := 0; i < 2; i++ {
		s := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
		t.Cleanup(func() { _ = s.Close() })
		procs = append(procs, s)
	}

	const writers = 60
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := Mutate(ctx, procs[n%2], KeyMessages, func(cur *[]string, _ bool) error {
				*cur = append(*cur, fmt.Sprint(n))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := Load[[]string](ctx, procs[0], KeyMessages)
	require.NoError(t, err)
	assert.Len(t, got.Value, writers)
}
