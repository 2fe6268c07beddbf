package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"campusroll/internal/attendance"
	"campusroll/internal/model"
)

func (a *api) sectionCounts(c *gin.Context) {
	counts, err := a.Roster.Counts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (a *api) sectionStudents(c *gin.Context) {
	section, ok := sectionParam(c)
	if !ok {
		return
	}
	students, err := a.Roster.StudentsIn(c.Request.Context(), section)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": section, "students": students})
}

func (a *api) openSession(c *gin.Context) {
	section, ok := sectionParam(c)
	if !ok {
		return
	}
	sess, err := a.Attendance.OpenSession(c.Request.Context(), section, caller(c).AccountID())
	if errors.Is(err, attendance.ErrSessionAlreadyOpen) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "SessionAlreadyOpen", "session": sess})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (a *api) activeSession(c *gin.Context) {
	section, ok := sectionParam(c)
	if !ok {
		return
	}
	sess, err := a.Attendance.ActiveSession(c.Request.Context(), section)
	if err != nil {
		writeError(c, err)
		return
	}
	if caller(c).Role == model.RoleStudent {
		// students see only whether they are marked
		_, marked := sess.Marked(caller(c).AccountID())
		c.JSON(http.StatusOK, gin.H{
			"sessionId": sess.SessionID,
			"section":   sess.Section,
			"subject":   sess.Subject,
			"openedAt":  sess.OpenedAt,
			"marked":    marked,
		})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (a *api) markPresent(c *gin.Context) {
	section, ok := sectionParam(c)
	if !ok {
		return
	}
	rec, err := a.Attendance.MarkPresent(c.Request.Context(), section, caller(c).AccountID())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (a *api) closeSession(c *gin.Context) {
	section, ok := sectionParam(c)
	if !ok {
		return
	}
	sess, err := a.Attendance.CloseSession(c.Request.Context(), section, caller(c).AccountID())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (a *api) sectionHistory(c *gin.Context) {
	section, ok := sectionParam(c)
	if !ok {
		return
	}
	records, err := a.Attendance.SectionHistory(c.Request.Context(), section)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": section, "records": records})
}

// studentAttendance is open to the student themself and to professors.
func (a *api) studentAttendance(c *gin.Context) {
	id := c.Param("id")
	who := caller(c)
	if who.Role == model.RoleStudent && who.AccountID() != id {
		forbidden(c, "students can only read their own attendance")
		return
	}
	if _, err := a.Accounts.Student(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	records, err := a.Attendance.HistoryFor(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "summary": attendance.Summarize(records)})
}
