package attendance

import (
	"context"

	"campusroll/internal/model"
	"campusroll/internal/store"
)

// Repository persists open sessions and the attendance history in the
// key-value store.
type Repository struct {
	kv store.Store
}

// NewRepository creates a repo.
func NewRepository(kv store.Store) *Repository {
	return &Repository{kv: kv}
}

// Active reads activeAttendance:<section>.
func (r *Repository) Active(ctx context.Context, section model.Section) (store.Snapshot[model.AttendanceSession], error) {
	return store.Load[model.AttendanceSession](ctx, r.kv, store.ActiveAttendanceKey(section))
}

// Create writes a new session only if the section has none.
func (r *Repository) Create(ctx context.Context, s model.AttendanceSession) (bool, error) {
	_, ok, err := store.Put(ctx, r.kv, store.ActiveAttendanceKey(s.Section), nil, s)
	return ok, err
}

// Replace swaps the session stored as prev for s and returns the new bytes.
func (r *Repository) Replace(ctx context.Context, prev []byte, s model.AttendanceSession) ([]byte, bool, error) {
	return store.Put(ctx, r.kv, store.ActiveAttendanceKey(s.Section), prev, s)
}

// MutateActive runs a compare-and-swap cycle on the section's session.
func (r *Repository) MutateActive(ctx context.Context, section model.Section, fn func(s *model.AttendanceSession, exists bool) error) error {
	_, err := store.Mutate(ctx, r.kv, store.ActiveAttendanceKey(section), fn)
	return err
}

// LockActive queues same-process writers of the section's session key.
func (r *Repository) LockActive(section model.Section) func() {
	return store.LockKey(r.kv, store.ActiveAttendanceKey(section))
}

// Clear removes the section's session if it still holds raw.
func (r *Repository) Clear(ctx context.Context, section model.Section, raw []byte) (bool, error) {
	return store.RemoveIf(ctx, r.kv, store.ActiveAttendanceKey(section), raw)
}

// Archive appends the records of one session to attendanceHistory. A session
// whose records are already present is not appended again.
func (r *Repository) Archive(ctx context.Context, sessionID string, records []model.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := store.Mutate(ctx, r.kv, store.KeyAttendanceHistory, func(history *[]model.AttendanceRecord, _ bool) error {
		for _, rec := range *history {
			if rec.SessionID == sessionID {
				return nil
			}
		}
		*history = append(*history, records...)
		return nil
	})
	return err
}

// History returns every archived record in append order.
func (r *Repository) History(ctx context.Context) ([]model.AttendanceRecord, error) {
	snap, err := store.Load[[]model.AttendanceRecord](ctx, r.kv, store.KeyAttendanceHistory)
	return snap.Value, err
}
