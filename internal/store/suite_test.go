package store

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite checks the behaviour every backend must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)
		v, ok, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, v)
	})

	t.Run("set get remove", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, KeyLanguage, []byte(`"fr"`)))

		v, ok, err := s.Get(ctx, KeyLanguage)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `"fr"`, string(v))

		require.NoError(t, s.Set(ctx, KeyLanguage, []byte(`"ar"`)))
		v, _, err = s.Get(ctx, KeyLanguage)
		require.NoError(t, err)
		assert.Equal(t, `"ar"`, string(v))

		require.NoError(t, s.Remove(ctx, KeyLanguage))
		_, ok, err = s.Get(ctx, KeyLanguage)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.NoError(t, s.Remove(ctx, KeyLanguage), "removing an absent key")
	})

	t.Run("compare and swap", func(t *testing.T) {
		s := newStore(t)
		key := "activeAttendance:LEFR"

		ok, err := s.CompareAndSwap(ctx, key, nil, []byte(`{"v":1}`))
		require.NoError(t, err)
		assert.True(t, ok, "insert when absent")

		ok, err = s.CompareAndSwap(ctx, key, nil, []byte(`{"v":2}`))
		require.NoError(t, err)
		assert.False(t, ok, "insert when present")

		ok, err = s.CompareAndSwap(ctx, key, []byte(`{"v":9}`), []byte(`{"v":2}`))
		require.NoError(t, err)
		assert.False(t, ok, "stale prev")

		ok, err = s.CompareAndSwap(ctx, key, []byte(`{"v":1}`), []byte(`{"v":2}`))
		require.NoError(t, err)
		assert.True(t, ok, "matching prev")

		v, _, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, string(v))

		ok, err = s.CompareAndSwap(ctx, key, []byte(`{"v":1}`), nil)
		require.NoError(t, err)
		assert.False(t, ok, "remove with stale prev")

		ok, err = s.CompareAndSwap(ctx, key, []byte(`{"v":2}`), nil)
		require.NoError(t, err)
		assert.True(t, ok, "remove with matching prev")

		_, exists, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists)

		ok, err = s.CompareAndSwap(ctx, key, nil, nil)
		require.NoError(t, err)
		assert.True(t, ok, "absent stays absent")
	})

	t.Run("concurrent mutations keep every append", func(t *testing.T) {
		s := newStore(t)
		const writers = 10

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, err := Mutate(ctx, s, KeyMessages, func(cur *[]int, _ bool) error {
					*cur = append(*cur, n)
					return nil
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		snap, err := Load[[]int](ctx, s, KeyMessages)
		require.NoError(t, err)
		got := snap.Value
		sort.Ints(got)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	})
}
