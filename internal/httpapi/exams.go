package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shrimpsizemoose/trekker/logger"

	"campusroll/internal/cloudinary"
	"campusroll/internal/exam"
	"campusroll/internal/model"
)

// publishExam accepts a JSON draft, or a multipart form whose file is
// uploaded first and referenced by the exam.
func (a *api) publishExam(c *gin.Context) {
	var draft exam.Draft
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		data, name, ok := a.readUpload(c, "file")
		if !ok {
			return
		}
		draft = exam.Draft{
			Title:       c.PostForm("title"),
			Description: c.PostForm("description"),
			Section:     model.Section(strings.ToUpper(c.PostForm("section"))),
			Type:        model.ExamFile,
			FileName:    name,
		}
		if due := c.PostForm("dueDate"); due != "" {
			t, err := time.Parse(time.RFC3339, due)
			if err != nil {
				badRequest(c, errors.Wrap(err, "dueDate"))
				return
			}
			draft.DueDate = &t
		}
		res, err := a.Uploads.Upload(c.Request.Context(), data, name, cloudinary.ResourceRaw)
		if err != nil {
			logger.Error.Printf("api: exam file upload for %s: %v", caller(c).AccountID(), err)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "file upload failed", "code": "UploadFailed"})
			return
		}
		draft.FileRef = res.SecureURL
	} else if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, err)
		return
	}

	ex, err := a.Exams.Publish(c.Request.Context(), caller(c).AccountID(), draft)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ex)
}

func (a *api) sectionExams(c *gin.Context) {
	section, ok := sectionParam(c)
	if !ok {
		return
	}
	who := caller(c)
	if who.Role == model.RoleStudent {
		stu, err := a.Accounts.Student(c.Request.Context(), who.AccountID())
		if err != nil {
			writeError(c, err)
			return
		}
		if stu.Section != section {
			forbidden(c, "students can only list their own section's exams")
			return
		}
	}
	exams, err := a.Exams.ForSection(c.Request.Context(), section)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exams": exams})
}

func (a *api) myExams(c *gin.Context) {
	exams, err := a.Exams.ByProfessor(c.Request.Context(), caller(c).AccountID())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exams": exams})
}

func (a *api) getExam(c *gin.Context) {
	ex, err := a.Exams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ex)
}
