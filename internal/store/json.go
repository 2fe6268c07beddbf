package store

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/shrimpsizemoose/trekker/logger"

	"campusroll/internal/metrics"
)

// Snapshot is a decoded value together with the exact bytes it was read from.
// Raw is nil when the key was absent.
type Snapshot[T any] struct {
	Value T
	Raw   []byte
}

func (s Snapshot[T]) Exists() bool { return s.Raw != nil }

// Load reads and decodes the value at key.
func Load[T any](ctx context.Context, s Store, key string) (Snapshot[T], error) {
	var snap Snapshot[T]
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return snap, err
	}
	if err := json.Unmarshal(raw, &snap.Value); err != nil {
		return Snapshot[T]{}, fail("decode", key, err)
	}
	snap.Raw = raw
	return snap, nil
}

// Save encodes v and replaces the value at key unconditionally.
func Save(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fail("encode", key, err)
	}
	return s.Set(ctx, key, raw)
}

// Mutate runs a read-modify-write cycle on key. fn receives a copy of the
// current value and edits it in place; returning an error aborts without
// writing. The write is a compare-and-swap against the bytes that were read,
// and the whole cycle is retried with backoff when another writer got there
// first. Writers in the same process queue on a per-key lock when the
// backend offers one. If fn leaves the encoded value unchanged nothing is
// written.
func Mutate[T any](ctx context.Context, s Store, key string, fn func(cur *T, exists bool) error) (Snapshot[T], error) {
	unlock := LockKey(s, key)
	defer unlock()

	var out Snapshot[T]
	err := Retry(ctx, "mutate "+key, func(attempt int) (bool, error) {
		snap, err := Load[T](ctx, s, key)
		if err != nil {
			return false, err
		}
		cur := snap.Value
		if err := fn(&cur, snap.Exists()); err != nil {
			return false, err
		}
		next, err := json.Marshal(cur)
		if err != nil {
			return false, fail("encode", key, err)
		}
		if snap.Exists() && bytes.Equal(next, snap.Raw) {
			out = Snapshot[T]{Value: cur, Raw: snap.Raw}
			return true, nil
		}
		swapped, err := s.CompareAndSwap(ctx, key, snap.Raw, next)
		if err != nil {
			return false, err
		}
		if swapped {
			out = Snapshot[T]{Value: cur, Raw: next}
			return true, nil
		}
		metrics.StoreConflicts.WithLabelValues(family(key)).Inc()
		logger.Debug.Printf("store: conflict on %s, attempt %d", key, attempt)
		return false, nil
	})
	if err != nil {
		return Snapshot[T]{}, err
	}
	return out, nil
}

// Put writes v at key only if the key currently holds exactly prev
// (nil for absent). It returns the bytes written.
func Put(ctx context.Context, s Store, key string, prev []byte, v any) ([]byte, bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false, fail("encode", key, err)
	}
	swapped, err := s.CompareAndSwap(ctx, key, prev, raw)
	if err != nil || !swapped {
		return nil, false, err
	}
	return raw, true, nil
}

// RemoveIf deletes key only if it still holds exactly raw.
func RemoveIf(ctx context.Context, s Store, key string, raw []byte) (bool, error) {
	if raw == nil {
		return false, nil
	}
	return s.CompareAndSwap(ctx, key, raw, nil)
}
