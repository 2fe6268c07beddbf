package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shrimpsizemoose/trekker/logger"

	"campusroll/internal/attendance"
	"campusroll/internal/conversation"
	"campusroll/internal/exam"
	"campusroll/internal/identity"
	"campusroll/internal/model"
	"campusroll/internal/prefs"
	"campusroll/internal/store"
)

var errorTable = []struct {
	target error
	status int
	code   string
}{
	{identity.ErrEmailTaken, http.StatusConflict, "EmailTaken"},
	{identity.ErrNoSuchAccount, http.StatusNotFound, "NoSuchAccount"},
	{identity.ErrImmutableField, http.StatusUnprocessableEntity, "ImmutableField"},
	{identity.ErrRoleMismatch, http.StatusForbidden, "RoleMismatch"},
	{identity.ErrInvalidRole, http.StatusBadRequest, "InvalidRole"},
	{identity.ErrNotLoggedIn, http.StatusUnauthorized, "NotLoggedIn"},
	{model.ErrUnknownSection, http.StatusBadRequest, "UnknownSection"},
	{attendance.ErrSessionAlreadyOpen, http.StatusConflict, "SessionAlreadyOpen"},
	{attendance.ErrNoActiveSession, http.StatusNotFound, "NoActiveSession"},
	{attendance.ErrSectionMismatch, http.StatusForbidden, "SectionMismatch"},
	{attendance.ErrNotSessionOwner, http.StatusForbidden, "NotSessionOwner"},
	{conversation.ErrInvalidParties, http.StatusBadRequest, "InvalidParties"},
	{conversation.ErrEmptyContent, http.StatusBadRequest, "EmptyContent"},
	{exam.ErrInvalidExam, http.StatusBadRequest, "InvalidExam"},
	{exam.ErrNotFound, http.StatusNotFound, "ExamNotFound"},
	{prefs.ErrUnsupportedLanguage, http.StatusBadRequest, "UnsupportedLanguage"},
	{store.ErrConflict, http.StatusConflict, "StoreConflict"},
	{store.ErrFailure, http.StatusServiceUnavailable, "StoreFailure"},
}

// writeError maps a core error to a status and a stable code.
func writeError(c *gin.Context, err error) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			if e.status >= http.StatusInternalServerError {
				logger.Error.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
			}
			c.AbortWithStatusJSON(e.status, gin.H{"error": err.Error(), "code": e.code})
			return
		}
	}
	logger.Error.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "Internal"})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "BadRequest"})
}

func forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msg, "code": "Forbidden"})
}
