package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AccountsRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusroll_accounts_registered_total",
			Help: "Accounts created by registration",
		},
		[]string{"role"},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusroll_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{"role", "outcome"},
	)

	AttendanceSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusroll_attendance_sessions_total",
			Help: "Attendance sessions opened and closed",
		},
		[]string{"section", "event"},
	)

	AttendanceMarks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusroll_attendance_marks_total",
			Help: "markPresent calls by outcome",
		},
		[]string{"section", "outcome"},
	)

	AttendanceAbsences = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusroll_attendance_absences_total",
			Help: "Absent records synthesized at session close",
		},
		[]string{"section"},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusroll_messages_sent_total",
			Help: "Messages appended to the conversation log",
		},
		[]string{"section", "sender_role"},
	)

	ExamsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusroll_exams_published_total",
			Help: "Exams published",
		},
		[]string{"section", "type"},
	)

	StoreConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusroll_store_cas_conflicts_total",
			Help: "Compare-and-swap attempts lost to a concurrent writer",
		},
		[]string{"key"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campusroll_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
