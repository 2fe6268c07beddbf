package store

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

const (
	maxAttempts    = 32
	initialBackoff = time.Millisecond
	maxBackoff     = 50 * time.Millisecond
)

// Retry runs op until it reports done, sleeping a jittered, exponentially
// growing interval between attempts. It fails with ErrConflict after
// maxAttempts and with the context error when ctx ends first.
func Retry(ctx context.Context, what string, op func(attempt int) (done bool, err error)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		done, err := op(attempt)
		if err != nil || done {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		t := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Wrap(ctx.Err(), what)
		case <-t.C:
		}
	}
	return errors.Wrap(ErrConflict, what)
}

// KeyLocker is implemented by backends that queue same-process writers of a
// key, so compare-and-swap only races against other processes.
type KeyLocker interface {
	LockKey(key string) (unlock func())
}

// LockKey locks key on s when s supports it; otherwise it is a no-op.
func LockKey(s Store, key string) func() {
	if kl, ok := s.(KeyLocker); ok {
		return kl.LockKey(key)
	}
	return func() {}
}

// keyLocks hands out one mutex per key and drops it when nobody holds or
// waits for it.
type keyLocks struct {
	mu   sync.Mutex
	held map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (k *keyLocks) LockKey(key string) func() {
	k.mu.Lock()
	if k.held == nil {
		k.held = make(map[string]*keyLock)
	}
	l, ok := k.held[key]
	if !ok {
		l = &keyLock{}
		k.held[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.held, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.held)
}
