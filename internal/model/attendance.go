package model

import "time"

type SessionState string

const (
	SessionOpen   SessionState = "open"
	SessionClosed SessionState = "closed"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
)

// SessionRecord is one roll-call line inside a session.
type SessionRecord struct {
	StudentID   string           `json:"studentId"`
	StudentName string           `json:"studentName"`
	Timestamp   time.Time        `json:"timestamp"`
	Status      AttendanceStatus `json:"status"`
}

// AttendanceSession is the value stored at activeAttendance:<SECTION>.
type AttendanceSession struct {
	SessionID           string          `json:"sessionId"`
	Section             Section         `json:"section"`
	Subject             string          `json:"subject,omitempty"`
	OpenedAt            time.Time       `json:"openedAt"`
	ClosedAt            *time.Time      `json:"closedAt,omitempty"`
	OpenedByProfessorID string          `json:"openedByProfessorId"`
	State               SessionState    `json:"state"`
	MarkedStudentIDs    []string        `json:"markedStudentIds"`
	Records             []SessionRecord `json:"records"`
}

func (s AttendanceSession) IsOpen() bool { return s.State == SessionOpen }

// Marked returns the record for studentID if the student already marked present.
func (s AttendanceSession) Marked(studentID string) (SessionRecord, bool) {
	for _, id := range s.MarkedStudentIDs {
		if id != studentID {
			continue
		}
		for _, rec := range s.Records {
			if rec.StudentID == studentID {
				return rec, true
			}
		}
	}
	return SessionRecord{}, false
}

// AttendanceRecord is an archived roll-call line in attendanceHistory.
type AttendanceRecord struct {
	SessionID   string           `json:"sessionId"`
	StudentID   string           `json:"studentId"`
	StudentName string           `json:"studentName"`
	Section     Section          `json:"section"`
	Date        time.Time        `json:"date"`
	Status      AttendanceStatus `json:"status"`
	Subject     string           `json:"subject,omitempty"`
}
