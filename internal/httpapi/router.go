// Package httpapi exposes the core components over HTTP with gin.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusroll/internal/attendance"
	"campusroll/internal/auth"
	"campusroll/internal/cloudinary"
	"campusroll/internal/conversation"
	"campusroll/internal/exam"
	"campusroll/internal/httpmiddleware"
	"campusroll/internal/identity"
	"campusroll/internal/model"
	"campusroll/internal/prefs"
	"campusroll/internal/roster"
	"campusroll/internal/store"
)

// Deps are the components the API serves. Uploads may be nil, in which case
// photo and exam file uploads answer 503.
type Deps struct {
	Store      store.Store
	Accounts   *identity.Registry
	Roster     *roster.Index
	Attendance *attendance.Manager
	Messages   *conversation.Log
	Exams      *exam.Service
	Prefs      *prefs.Preferences
	Signer     *auth.Signer
	Uploads    cloudinary.Uploader
	Limiter    *httpmiddleware.TokenBucket
}

type api struct {
	Deps
}

// NewRouter wires every route onto a new gin engine.
func NewRouter(d Deps) *gin.Engine {
	a := &api{Deps: d}
	if a.Limiter == nil {
		a.Limiter = httpmiddleware.NewTokenBucket(120, 120)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS(), httpmiddleware.SecurityHeaders(), httpmiddleware.RequestMetrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", a.health)

	public := r.Group("/v1", a.Limiter.GinMiddleware())
	public.POST("/accounts", a.register)
	public.POST("/sessions", a.login)
	public.POST("/tokens/refresh", a.refresh)

	v1 := r.Group("/v1", auth.Authenticate(a.Signer), a.Limiter.GinMiddleware())
	professor := auth.RequireRole(model.RoleProfessor)
	student := auth.RequireRole(model.RoleStudent)

	v1.DELETE("/sessions", a.logout)
	v1.GET("/accounts/me", a.me)
	v1.PATCH("/accounts/me", a.updateMe)
	v1.POST("/accounts/me/photo", a.uploadPhoto)

	v1.GET("/sections", a.sectionCounts)
	v1.GET("/sections/:section/students", professor, a.sectionStudents)
	v1.POST("/sections/:section/attendance", professor, a.openSession)
	v1.GET("/sections/:section/attendance", a.activeSession)
	v1.POST("/sections/:section/attendance/marks", student, a.markPresent)
	v1.POST("/sections/:section/attendance/close", professor, a.closeSession)
	v1.GET("/sections/:section/attendance/history", professor, a.sectionHistory)
	v1.GET("/students/:id/attendance", a.studentAttendance)

	v1.POST("/messages", a.sendMessage)
	v1.GET("/messages/search", a.searchMessages)
	v1.GET("/conversations", a.threads)
	v1.GET("/conversations/:counterpartId", a.conversation)

	v1.POST("/exams", professor, a.publishExam)
	v1.GET("/exams/mine", professor, a.myExams)
	v1.GET("/exams/:id", a.getExam)
	v1.GET("/sections/:section/exams", a.sectionExams)

	v1.GET("/preferences/language", a.language)
	v1.PUT("/preferences/language", a.setLanguage)

	return r
}

func (a *api) health(c *gin.Context) {
	if err := a.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": true})
}

// caller returns the claims of the authenticated request.
func caller(c *gin.Context) auth.Claims {
	claims, _ := auth.ClaimsFrom(c)
	return claims
}

// sectionParam parses :section and answers 400 when it is unknown.
func sectionParam(c *gin.Context) (model.Section, bool) {
	s, err := model.ParseSection(c.Param("section"))
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return s, true
}
