// Package attendance runs roll-call sessions: a professor opens a session
// for a section, students of that section mark themselves present, and the
// close archives one record per enrolled student.
package attendance

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/shrimpsizemoose/trekker/logger"

	"campusroll/internal/clock"
	"campusroll/internal/ids"
	"campusroll/internal/metrics"
	"campusroll/internal/model"
	"campusroll/internal/store"
)

var (
	ErrSessionAlreadyOpen = errors.New("an attendance session is already open for this section")
	ErrNoActiveSession    = errors.New("no active attendance session for this section")
	ErrSectionMismatch    = errors.New("student is not enrolled in the session's section")
	ErrNotSessionOwner    = errors.New("session was opened by another professor")
)

// Directory resolves accounts with role narrowing.
type Directory interface {
	Student(ctx context.Context, id string) (model.Account, error)
	Professor(ctx context.Context, id string) (model.Account, error)
}

// Roster lists the students currently enrolled in a section.
type Roster interface {
	StudentsIn(ctx context.Context, section model.Section) ([]model.Account, error)
}

// Manager owns the single-active-session-per-section lifecycle.
type Manager struct {
	repo     *Repository
	accounts Directory
	roster   Roster
	clock    clock.Clock
	newID    func() string
}

type Option func(*Manager)

func WithClock(c clock.Clock) Option { return func(m *Manager) { m.clock = c } }

func WithIDs(fn func() string) Option { return func(m *Manager) { m.newID = fn } }

// NewManager creates a manager backed by a repository.
func NewManager(repo *Repository, accounts Directory, roster Roster, opts ...Option) *Manager {
	m := &Manager{repo: repo, accounts: accounts, roster: roster, clock: clock.System, newID: ids.New}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenSession starts a session for section. When one is already open it is
// returned together with ErrSessionAlreadyOpen.
func (m *Manager) OpenSession(ctx context.Context, section model.Section, professorID string) (model.AttendanceSession, error) {
	if !section.Valid() {
		return model.AttendanceSession{}, model.ErrUnknownSection
	}
	prof, err := m.accounts.Professor(ctx, professorID)
	if err != nil {
		return model.AttendanceSession{}, err
	}

	var opened model.AttendanceSession
	err = store.Retry(ctx, "open session "+string(section), func(int) (bool, error) {
		snap, err := m.repo.Active(ctx, section)
		if err != nil {
			return false, errors.Wrap(err, "open session")
		}
		if snap.Exists() {
			if snap.Value.IsOpen() {
				opened = snap.Value
				return false, ErrSessionAlreadyOpen
			}
			// a close that stopped before clearing the key
			return false, m.archive(ctx, snap)
		}

		sess := model.AttendanceSession{
			SessionID:           m.newID(),
			Section:             section,
			Subject:             prof.Subject,
			OpenedAt:            m.clock.Now(),
			OpenedByProfessorID: prof.ID,
			State:               model.SessionOpen,
			MarkedStudentIDs:    []string{},
			Records:             []model.SessionRecord{},
		}
		created, err := m.repo.Create(ctx, sess)
		if err != nil {
			return false, errors.Wrap(err, "open session")
		}
		if created {
			opened = sess
		}
		return created, nil
	})
	if errors.Is(err, ErrSessionAlreadyOpen) {
		return opened, err
	}
	if err != nil {
		return model.AttendanceSession{}, err
	}
	metrics.AttendanceSessions.WithLabelValues(string(section), "opened").Inc()
	logger.Info.Printf("attendance: %s opened session %s for %s", prof.ID, opened.SessionID, section)
	return opened, nil
}

// ActiveSession returns the open session of section.
func (m *Manager) ActiveSession(ctx context.Context, section model.Section) (model.AttendanceSession, error) {
	if !section.Valid() {
		return model.AttendanceSession{}, model.ErrUnknownSection
	}
	snap, err := m.repo.Active(ctx, section)
	if err != nil {
		return model.AttendanceSession{}, errors.Wrap(err, "active session")
	}
	if !snap.Exists() || !snap.Value.IsOpen() {
		return model.AttendanceSession{}, ErrNoActiveSession
	}
	return snap.Value, nil
}

// MarkPresent records studentID as present in the open session of section.
// Marking twice returns the first record without writing again.
func (m *Manager) MarkPresent(ctx context.Context, section model.Section, studentID string) (model.SessionRecord, error) {
	if !section.Valid() {
		return model.SessionRecord{}, model.ErrUnknownSection
	}
	stu, err := m.accounts.Student(ctx, studentID)
	if err != nil {
		return model.SessionRecord{}, err
	}

	var (
		rec       model.SessionRecord
		duplicate bool
		sessionID string
	)
	err = m.repo.MutateActive(ctx, section, func(s *model.AttendanceSession, exists bool) error {
		if !exists || !s.IsOpen() {
			return ErrNoActiveSession
		}
		sessionID = s.SessionID
		if stu.Section != s.Section {
			return ErrSectionMismatch
		}
		if existing, ok := s.Marked(stu.ID); ok {
			rec, duplicate = existing, true
			return nil
		}
		rec = model.SessionRecord{
			StudentID:   stu.ID,
			StudentName: stu.DisplayName(),
			Timestamp:   m.clock.Now(),
			Status:      model.StatusPresent,
		}
		duplicate = false
		s.MarkedStudentIDs = append(s.MarkedStudentIDs, stu.ID)
		s.Records = append(s.Records, rec)
		return nil
	})
	switch {
	case errors.Is(err, ErrSectionMismatch):
		metrics.AttendanceMarks.WithLabelValues(string(section), "mismatch").Inc()
		logger.Error.Printf("attendance: student %s of %s tried to mark session %s of %s", stu.ID, stu.Section, sessionID, section)
		return model.SessionRecord{}, err
	case errors.Is(err, ErrNoActiveSession):
		metrics.AttendanceMarks.WithLabelValues(string(section), "no_session").Inc()
		return model.SessionRecord{}, err
	case err != nil:
		return model.SessionRecord{}, errors.Wrap(err, "mark present")
	}

	if duplicate {
		metrics.AttendanceMarks.WithLabelValues(string(section), "duplicate").Inc()
	} else {
		metrics.AttendanceMarks.WithLabelValues(string(section), "present").Inc()
	}
	return rec, nil
}

// CloseSession ends the open session of section. Every student enrolled at
// close time who did not mark present gets an absent record.
func (m *Manager) CloseSession(ctx context.Context, section model.Section, professorID string) (model.AttendanceSession, error) {
	if !section.Valid() {
		return model.AttendanceSession{}, model.ErrUnknownSection
	}

	var snap store.Snapshot[model.AttendanceSession]
	err := store.Retry(ctx, "close session "+string(section), func(int) (bool, error) {
		unlock := m.repo.LockActive(section)
		defer unlock()

		var err error
		snap, err = m.repo.Active(ctx, section)
		if err != nil {
			return false, errors.Wrap(err, "close session")
		}
		if !snap.Exists() {
			return false, ErrNoActiveSession
		}
		sess := snap.Value
		if sess.OpenedByProfessorID != professorID {
			logger.Error.Printf("attendance: %s tried to close session %s of %s opened by %s",
				professorID, sess.SessionID, section, sess.OpenedByProfessorID)
			return false, ErrNotSessionOwner
		}
		if !sess.IsOpen() {
			return true, nil
		}
		closed, err := m.closeOut(ctx, sess)
		if err != nil {
			return false, err
		}
		raw, swapped, err := m.repo.Replace(ctx, snap.Raw, closed)
		if err != nil {
			return false, errors.Wrap(err, "close session")
		}
		if swapped {
			snap = store.Snapshot[model.AttendanceSession]{Value: closed, Raw: raw}
		}
		// not swapped: a mark from another process landed after the read
		return swapped, nil
	})
	if err != nil {
		return model.AttendanceSession{}, err
	}

	if err := m.archive(ctx, snap); err != nil {
		return model.AttendanceSession{}, err
	}
	absent := len(snap.Value.Records) - len(snap.Value.MarkedStudentIDs)
	metrics.AttendanceSessions.WithLabelValues(string(section), "closed").Inc()
	metrics.AttendanceAbsences.WithLabelValues(string(section)).Add(float64(absent))
	logger.Info.Printf("attendance: closed session %s for %s, %d present, %d absent",
		snap.Value.SessionID, section, len(snap.Value.MarkedStudentIDs), absent)
	return snap.Value, nil
}

// closeOut returns sess in closed state with absent records appended.
func (m *Manager) closeOut(ctx context.Context, sess model.AttendanceSession) (model.AttendanceSession, error) {
	enrolled, err := m.roster.StudentsIn(ctx, sess.Section)
	if err != nil {
		return model.AttendanceSession{}, errors.Wrap(err, "close session roster")
	}
	closedAt := m.clock.Now()

	marked := make(map[string]bool, len(sess.MarkedStudentIDs))
	for _, id := range sess.MarkedStudentIDs {
		marked[id] = true
	}
	records := append([]model.SessionRecord(nil), sess.Records...)
	for _, st := range enrolled {
		if marked[st.ID] {
			continue
		}
		records = append(records, model.SessionRecord{
			StudentID:   st.ID,
			StudentName: st.DisplayName(),
			Timestamp:   closedAt,
			Status:      model.StatusAbsent,
		})
	}

	sess.Records = records
	sess.State = model.SessionClosed
	sess.ClosedAt = &closedAt
	return sess, nil
}

// archive copies a closed session into the history and clears its key.
func (m *Manager) archive(ctx context.Context, snap store.Snapshot[model.AttendanceSession]) error {
	sess := snap.Value
	records := make([]model.AttendanceRecord, 0, len(sess.Records))
	for _, r := range sess.Records {
		records = append(records, model.AttendanceRecord{
			SessionID:   sess.SessionID,
			StudentID:   r.StudentID,
			StudentName: r.StudentName,
			Section:     sess.Section,
			Date:        r.Timestamp,
			Status:      r.Status,
			Subject:     sess.Subject,
		})
	}
	if err := m.repo.Archive(ctx, sess.SessionID, records); err != nil {
		return errors.Wrapf(err, "archive session %s", sess.SessionID)
	}
	if _, err := m.repo.Clear(ctx, sess.Section, snap.Raw); err != nil {
		return errors.Wrapf(err, "clear session %s", sess.SessionID)
	}
	return nil
}

// HistoryFor returns every archived record of studentID, oldest first.
func (m *Manager) HistoryFor(ctx context.Context, studentID string) ([]model.AttendanceRecord, error) {
	return m.history(ctx, func(r model.AttendanceRecord) bool { return r.StudentID == studentID })
}

// SectionHistory returns every archived record of section, oldest first.
func (m *Manager) SectionHistory(ctx context.Context, section model.Section) ([]model.AttendanceRecord, error) {
	if !section.Valid() {
		return nil, model.ErrUnknownSection
	}
	return m.history(ctx, func(r model.AttendanceRecord) bool { return r.Section == section })
}

func (m *Manager) history(ctx context.Context, keep func(model.AttendanceRecord) bool) ([]model.AttendanceRecord, error) {
	all, err := m.repo.History(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}
	out := make([]model.AttendanceRecord, 0)
	for _, r := range all {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
