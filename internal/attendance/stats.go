package attendance

import (
	"context"

	"campusroll/internal/model"
)

// Summary aggregates a student's archived attendance.
type Summary struct {
	TotalClasses   int     `json:"totalClasses"`
	PresentCount   int     `json:"presentCount"`
	AbsentCount    int     `json:"absentCount"`
	AttendanceRate float64 `json:"attendanceRate"`
}

// Summarize counts records; the rate is a percentage, 0 with no records.
func Summarize(records []model.AttendanceRecord) Summary {
	var s Summary
	for _, r := range records {
		s.TotalClasses++
		switch r.Status {
		case model.StatusPresent:
			s.PresentCount++
		case model.StatusAbsent:
			s.AbsentCount++
		}
	}
	if s.TotalClasses > 0 {
		s.AttendanceRate = float64(s.PresentCount) / float64(s.TotalClasses) * 100
	}
	return s
}

func (m *Manager) Summary(ctx context.Context, studentID string) (Summary, error) {
	records, err := m.HistoryFor(ctx, studentID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(records), nil
}
