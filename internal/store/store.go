// Package store is the key-value persistence layer shared by every core
// component. Values are JSON documents addressed by string keys.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"campusroll/internal/model"
)

// Canonical keys.
const (
	KeyUsers             = "users"
	KeySession           = "session"
	KeyMessages          = "messages"
	KeyExams             = "exams"
	KeyAttendanceHistory = "attendanceHistory"
	KeyLanguage          = "language"

	activeAttendancePrefix = "activeAttendance:"
)

// ActiveAttendanceKey is the key holding the current session of a section.
func ActiveAttendanceKey(section model.Section) string {
	return activeAttendancePrefix + string(section)
}

var (
	// ErrFailure matches every error raised by a backend.
	ErrFailure = errors.New("store failure")
	// ErrConflict is returned when a compare-and-swap loop gives up.
	ErrConflict = errors.New("store conflict: too many concurrent writers")
)

// Store is a string-keyed byte store. Each call is atomic on its own key;
// there are no multi-key transactions.
type Store interface {
	// Get returns the value at key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// CompareAndSwap writes next only if the current value equals prev.
	// A nil prev means the key must be absent; a nil next removes the key.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Error wraps a backend error with the operation and key that raised it.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrFailure }

func fail(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Key: key, Err: err}
}

// family collapses per-section keys so metric labels stay bounded.
func family(key string) string {
	if strings.HasPrefix(key, activeAttendancePrefix) {
		return strings.TrimSuffix(activeAttendancePrefix, ":")
	}
	return key
}
